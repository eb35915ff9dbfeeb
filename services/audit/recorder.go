package audit

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/instrumentation"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout    = 2 * time.Second
	defaultDetailsMaxLen   = 1000
	defaultUserAgentMaxLen = 512
)

// Recorder appends audit events on a best-effort basis: a failed write is
// logged and counted, never returned to the caller.
type Recorder struct {
	store        Store
	logger       *logging.Service
	metrics      *instrumentation.Metrics
	timeout      time.Duration
	detailsMax   int
	userAgentMax int
	now          func() time.Time
}

func NewRecorder(store Store, cfg *config.Config, logger *logging.Service) *Recorder {
	r := &Recorder{
		store:        store,
		logger:       logger,
		timeout:      defaultWriteTimeout,
		detailsMax:   defaultDetailsMaxLen,
		userAgentMax: defaultUserAgentMaxLen,
		now:          time.Now,
	}
	if cfg != nil {
		if cfg.Audit.WriteTimeout > 0 {
			r.timeout = cfg.Audit.WriteTimeout
		}
		if cfg.Audit.DetailsMaxLen > 0 {
			r.detailsMax = cfg.Audit.DetailsMaxLen
		}
		if cfg.Audit.UserAgentMaxLen > 0 {
			r.userAgentMax = cfg.Audit.UserAgentMaxLen
		}
	}
	return r
}

func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Recorder) SetMetrics(m *instrumentation.Metrics) {
	r.metrics = m
}

// Record writes one event. The write is detached from ctx cancellation so a
// client disconnect does not drop the row, but it is bounded by the
// configured timeout.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}

	event := r.build(entry)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	if err := r.store.Append(writeCtx, event); err != nil {
		r.metrics.AuditWrite(entry.EventType, false)
		r.logger.Warn("failed to write audit event",
			zap.String("event_type", entry.EventType),
			zap.Bool("success", entry.Success),
			zap.Uint("user_id", entry.UserID),
			zap.String("session_id", entry.SessionID),
			zap.Error(err))
		return
	}
	r.metrics.AuditWrite(entry.EventType, true)
}

func (r *Recorder) build(entry Entry) *Event {
	event := &Event{
		ID:        uuid.NewString(),
		EventType: entry.EventType,
		Success:   entry.Success,
		UserEmail: optional(strings.ToLower(strings.TrimSpace(entry.UserEmail))),
		SessionID: optional(entry.SessionID),
		IPAddress: optional(strings.TrimSpace(entry.IPAddress)),
		UserAgent: optional(Truncate(entry.UserAgent, r.userAgentMax)),
		Details:   optional(Truncate(entry.Details, r.detailsMax)),
		CreatedAt: r.now().UTC(),
	}
	if entry.UserID != 0 {
		id := entry.UserID
		event.UserID = &id
	}
	return event
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
