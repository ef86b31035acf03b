package email

import (
	"context"
	"strings"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// RecipientResolver turns a user id into a deliverable address.
type RecipientResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// DomainResolver passes addresses through and maps bare ids to id@Domain.
type DomainResolver struct {
	Domain string
}

func (r DomainResolver) Resolve(ctx context.Context, userID string) (string, error) {
	id := strings.TrimSpace(userID)
	if id == "" {
		return "", PermanentError{msg: "empty recipient"}
	}
	if strings.Contains(id, "@") {
		return id, nil
	}
	d := strings.TrimPrefix(strings.TrimSpace(r.Domain), "@")
	if d == "" {
		return "", PermanentError{msg: "no address for recipient " + id}
	}
	return id + "@" + d, nil
}

type SMTPSender struct {
	lg       zerolog.Logger
	resolver RecipientResolver

	host     string
	port     int
	user     string
	pass     string
	from     string
	insecure bool

	timeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
	Insecure bool
}

func NewSMTPSender(cfg SMTPConfig, resolver RecipientResolver, lg zerolog.Logger) *SMTPSender {
	return &SMTPSender{
		lg:       lg.With().Str("component", "smtp_sender").Logger(),
		resolver: resolver,
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.Username,
		pass:     cfg.Password,
		from:     cfg.From,
		insecure: cfg.Insecure,
		timeout:  cfg.Timeout,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg domain.Message) error {
	to, err := s.resolver.Resolve(ctx, msg.To)
	if err != nil {
		return err
	}

	m, err := s.buildMsg(to, msg)
	if err != nil {
		return err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	c, err := mail.NewClient(s.host, s.clientOptions()...)
	if err != nil {
		return PermanentError{msg: "smtp client init failed: " + err.Error()}
	}

	s.lg.Debug().Str("host", s.host).Int("port", s.port).Str("to", to).Str("subject", msg.Subject).Msg("attempting smtp send")
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		s.lg.Error().Err(err).Str("to", to).Msg("smtp send failed")
		return classifySMTPError(err)
	}

	s.lg.Info().Str("to", to).Msg("smtp send ok")
	return nil
}

func (s *SMTPSender) buildMsg(to string, msg domain.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, PermanentError{msg: "invalid from address: " + err.Error()}
	}
	if err := m.To(to); err != nil {
		return nil, PermanentError{msg: "invalid to address: " + err.Error()}
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) clientOptions() []mail.Option {
	tlsPolicy := mail.TLSMandatory
	if s.insecure {
		tlsPolicy = mail.TLSOpportunistic
	}

	opts := []mail.Option{
		mail.WithPort(s.port),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if s.user != "" {
		opts = append(opts, mail.WithSMTPAuth(mail.SMTPAuthPlain), mail.WithUsername(s.user), mail.WithPassword(s.pass))
	}
	return opts
}

func classifySMTPError(err error) error {
	msg := err.Error()
	if containsAny(msg, "535", "5.7.8", "550", "553", "authentication", "Username and Password not accepted") {
		return PermanentError{msg: "smtp rejected: " + msg}
	}
	return TemporaryError{msg: "smtp transient failure: " + msg}
}

func containsAny(s string, subs ...string) bool {
	for _, x := range subs {
		if x != "" && strings.Contains(s, x) {
			return true
		}
	}
	return false
}
