package mail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tech-arch1tect/condoaccess/config"
	"github.com/tech-arch1tect/condoaccess/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

var ErrNoRecipients = errors.New("no recipients")

// Client is the part of *mail.Client the service uses.
type Client interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config *config.MailConfig
	client Client
	logger *logging.Service
}

func NewService(cfg *config.MailConfig, logger *logging.Service) (*Service, error) {
	logger.Info("initializing mail service",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("encryption", cfg.Encryption),
		zap.String("from_address", cfg.FromAddress))

	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	client, err := mail.NewClient(cfg.Host, clientOptions(cfg)...)
	if err != nil {
		logger.Error("failed to create mail client",
			zap.Error(err),
			zap.String("host", cfg.Host),
			zap.Int("port", cfg.Port))
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}

	return NewServiceWithClient(cfg, logger, client)
}

// NewServiceWithClient builds a service around an existing client.
func NewServiceWithClient(cfg *config.MailConfig, logger *logging.Service, client Client) (*Service, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}
	if client == nil {
		return nil, fmt.Errorf("mail client is required")
	}
	return &Service{config: cfg, client: client, logger: logger}, nil
}

func clientOptions(cfg *config.MailConfig) []mail.Option {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(10 * time.Second),
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}
	return opts
}

func (s *Service) newMessage(to []string, subject string) (*mail.Msg, error) {
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}

	message := mail.NewMsg()
	if err := message.FromFormat(s.config.FromName, s.config.FromAddress); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to...); err != nil {
		return nil, fmt.Errorf("failed to set TO addresses: %w", err)
	}
	message.Subject(subject)
	return message, nil
}

// Send delivers a plain text message.
func (s *Service) Send(ctx context.Context, to []string, subject, body string) error {
	message, err := s.newMessage(to, subject)
	if err != nil {
		s.logger.Error("failed to build email", zap.Error(err), zap.Strings("recipients", to))
		return err
	}
	message.SetBodyString(mail.TypeTextPlain, body)

	start := time.Now()
	if err := s.client.DialAndSendWithContext(ctx, message); err != nil {
		s.logger.Error("failed to send email",
			zap.Error(err),
			zap.Strings("recipients", to),
			zap.Duration("attempt_duration", time.Since(start)))
		return err
	}

	s.logger.Info("email sent",
		zap.Strings("recipients", to),
		zap.String("subject", subject),
		zap.Duration("send_duration", time.Since(start)))
	return nil
}
