package securitymetrics

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

var alertBody = template.Must(template.New("alert").Parse(`Login failure rate is {{printf "%.2f" .LoginFailureRate}}% over the last {{.WindowHours}}h.

Attempts: {{.LoginAttempts}}
Failed:   {{.LoginFailedAttempts}}
Window:   {{.WindowStart.Format "2006-01-02 15:04:05"}} to {{.WindowEnd.Format "2006-01-02 15:04:05"}} UTC
{{if .TopIPAttempts}}
Top source addresses:
{{range .TopIPAttempts}}  {{.IPAddress}}  {{.Attempts}} attempts, {{.FailedAttempts}} failed ({{printf "%.2f" .FailureRate}}%)
{{end}}{{end}}{{if .TopUserAttempts}}
Top accounts:
{{range .TopUserAttempts}}  {{.UserEmail}}  {{.Attempts}} attempts, {{.FailedAttempts}} failed ({{printf "%.2f" .FailureRate}}%)
{{end}}{{end}}`))

// Alerter mails the configured recipients when a snapshot crosses the
// failure-rate threshold.
type Alerter struct {
	mailer Mailer
	cfg    config.AlertConfig
	app    string
	logger *logging.Service
}

func NewAlerter(mailer Mailer, cfg *config.Config, logger *logging.Service) *Alerter {
	return &Alerter{mailer: mailer, cfg: cfg.Alert, app: cfg.App.Name, logger: logger}
}

// ShouldAlert requires both enough attempts and a high enough failure rate.
func (a *Alerter) ShouldAlert(s *Snapshot) bool {
	if a == nil || a.mailer == nil || len(a.cfg.Recipients) == 0 || s == nil {
		return false
	}
	return s.LoginAttempts >= a.cfg.MinAttempts && s.LoginFailureRate >= a.cfg.FailureRate
}

// Evaluate sends an alert when warranted. Delivery failures are logged and
// reported to the caller.
func (a *Alerter) Evaluate(ctx context.Context, s *Snapshot) (bool, error) {
	if !a.ShouldAlert(s) {
		return false, nil
	}

	var body bytes.Buffer
	if err := alertBody.Execute(&body, s); err != nil {
		return false, fmt.Errorf("render alert: %w", err)
	}

	subject := fmt.Sprintf("[%s] login failure rate %.2f%%", a.app, s.LoginFailureRate)
	if err := a.mailer.Send(ctx, a.cfg.Recipients, subject, body.String()); err != nil {
		a.logger.Error("failed to send login failure alert", zap.Error(err))
		return false, fmt.Errorf("send alert: %w", err)
	}

	a.logger.Warn("login failure alert sent",
		zap.Float64("failure_rate", s.LoginFailureRate),
		zap.Int64("login_attempts", s.LoginAttempts),
		zap.Int("recipients", len(a.cfg.Recipients)))
	return true, nil
}
