package delivery

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/smtp"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/xenking/order-relay/internal/domain/order"
)

// SMTPConfig configures the e-mail dispatcher.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	// Timeout bounds the whole SMTP session. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// mailSender transmits one composed message.
type mailSender interface {
	Send(ctx context.Context, m *gomail.Message) error
}

var _ Dispatcher = (*SMTP)(nil)

// SMTP delivers documents as e-mail attachments.
type SMTP struct {
	from    string
	to      []string
	timeout time.Duration
	sender  mailSender
	now     func() time.Time
}

// NewSMTP creates an SMTP dispatcher.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Host == "" {
		return nil, errors.New("smtp host is required")
	}
	if cfg.From == "" || len(cfg.To) == 0 {
		return nil, errors.New("smtp sender and at least one recipient are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &SMTP{
		from:    cfg.From,
		to:      cfg.To,
		timeout: cfg.Timeout,
		sender: &smtpSender{
			host:     cfg.Host,
			port:     cfg.Port,
			username: cfg.Username,
			password: cfg.Password,
		},
		now: time.Now,
	}, nil
}

// Channel implements Dispatcher.
func (s *SMTP) Channel() string { return "E-mail" }

// Deliver implements Dispatcher.
func (s *SMTP) Deliver(ctx context.Context, path string, o *order.Order, total decimal.Decimal) (bool, error) {
	f, err := openArtifact(path)
	if err != nil {
		return false, err
	}
	_ = f.Close()

	lg := zctx.From(ctx).With(zap.String("order", o.Number), zap.String("stage", "deliver"))
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := ctx.Err(); err != nil {
		lg.Error("E-mail delivery aborted", zap.Error(err))
		return false, nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", s.to...)
	m.SetHeader("Subject", "Pedido "+o.Number)
	m.SetBody("text/plain", PlainCaption(o, total, s.now()))
	m.Attach(path, gomail.Rename(filepath.Base(path)))

	if err := s.sender.Send(ctx, m); err != nil {
		lg.Error("E-mail delivery failed", zap.Error(err))
		return false, nil
	}
	lg.Info("Document sent by e-mail", zap.String("path", path), zap.Strings("to", s.to))
	return true, nil
}

// smtpSender speaks SMTP over a connection whose deadline follows ctx.
// gomail.Dialer only bounds the TCP dial, so a server that stalls after
// accepting would block forever.
type smtpSender struct {
	host     string
	port     int
	username string
	password string
}

func (s *smtpSender) Send(ctx context.Context, m *gomail.Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return errors.Wrap(err, "dial")
	}
	defer func() { _ = conn.Close() }()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return errors.Wrap(err, "set deadline")
		}
	}
	// Cancellation before the deadline unblocks pending reads as well.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	tlsConfig := &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}
	if s.port == 465 {
		conn = tls.Client(conn, tlsConfig)
	}
	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		return errors.Wrap(err, "greeting")
	}
	defer func() { _ = c.Close() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(tlsConfig); err != nil {
			return errors.Wrap(err, "starttls")
		}
	}
	if s.username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return errors.Wrap(err, "auth")
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := c.Mail(from); err != nil {
			return errors.Wrap(err, "mail from")
		}
		for _, rcpt := range to {
			if err := c.Rcpt(rcpt); err != nil {
				return errors.Wrapf(err, "rcpt %s", rcpt)
			}
		}
		w, err := c.Data()
		if err != nil {
			return errors.Wrap(err, "data")
		}
		if _, err := msg.WriteTo(w); err != nil {
			_ = w.Close()
			return errors.Wrap(err, "write message")
		}
		return w.Close()
	})
	if err := gomail.Send(send, m); err != nil {
		return err
	}
	return c.Quit()
}
