package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/core/port"
	"github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/config"
	applogger "github.com/tarantellijacob3-Alfred/cardinal-track-sub001/internal/infra/logger"
)

// SMTPMailer delivers verification codes over plain SMTP with opportunistic
// STARTTLS. Works with MailHog in development (no auth) and real servers
// (PlainAuth).
type SMTPMailer struct {
	host   string
	port   int
	user   string
	pass   string
	from   string
	logger *zap.Logger
	// If true, skip TLS certificate verification (local dev only).
	InsecureSkipVerify bool
}

// NewSMTPMailer constructs the outbound mailer.
func NewSMTPMailer(cfg config.SMTPSettings, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		host:   cfg.Host,
		port:   cfg.Port,
		user:   cfg.Username,
		pass:   cfg.Password,
		from:   cfg.From,
		logger: logger,
	}
}

// SendVerificationCode mails the six digit code with its expiry.
func (m *SMTPMailer) SendVerificationCode(ctx context.Context, to, displayName, code string, expiresAt time.Time) error {
	greeting := "Hello"
	if strings.TrimSpace(displayName) != "" {
		greeting = "Hello " + html.EscapeString(displayName)
	}

	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}

	body := fmt.Sprintf(
		`<h2>Verify your email</h2><p>%s,</p><p>Your verification code is <b>%s</b>.</p><p>The code expires in %d minutes. If you did not request it, you can ignore this message.</p>`,
		greeting, code, minutes,
	)

	if err := m.send(ctx, to, "Your verification code", body); err != nil {
		m.logger.Warn("verification mail delivery failed",
			zap.String("to", applogger.MaskEmail(to)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	headers := []string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}
	var sb strings.Builder
	for _, h := range headers {
		sb.WriteString(h + "\r\n")
	}
	sb.WriteString("\r\n")
	sb.WriteString(htmlBody)

	var auth smtp.Auth
	if m.user != "" {
		auth = smtp.PlainAuth("", m.user, m.pass, m.host)
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	addr := net.JoinHostPort(m.host, strconv.Itoa(m.port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer func() {
		if err := c.Quit(); err != nil {
			m.logger.Debug("smtp quit failed", zap.Error(err))
		}
	}()

	// Extension triggers the initial EHLO, and StartTLS re-issues it over
	// the encrypted channel. Client.Hello may only be called once, so the
	// implicit handshakes are the only safe way to refresh extensions.
	if ok, _ := c.Extension("STARTTLS"); ok {
		cfg := &tls.Config{
			ServerName:         m.host,
			InsecureSkipVerify: m.InsecureSkipVerify,
		}
		if err := c.StartTLS(cfg); err != nil {
			return err
		}
	}

	if auth != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(auth); err != nil {
				return err
			}
		}
	}

	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(sb.String())); err != nil {
		return err
	}
	return w.Close()
}

var _ port.CodeMailer = (*SMTPMailer)(nil)
