package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"
	"strings"
	"time"

	"github.com/redmonkez12/cicero/internal/logging"
)

var ErrNotConfigured = errors.New("smtp host is not configured")

type Config struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FrontendURL  string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type Service struct {
	cfg    Config
	from   string
	send   sendFunc
	now    func() time.Time
	logger *logging.Logger
}

func NewService(cfg Config, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		cfg:    cfg,
		from:   cfg.SMTPUser,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger,
	}
}

// SendPasswordResetEmail mails a reset link for token. It blocks until the
// SMTP exchange finishes; callers that must not wait run it in a goroutine.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, token string, expiresAt time.Time) error {
	if s.cfg.SMTPHost == "" {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := s.renderPasswordReset(s.resetLink(token), expiresAt)
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	msg := buildMessage(s.from, toEmail, "Reset your Cicero password", body)
	var auth smtp.Auth
	if s.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort
	if err := s.send(addr, auth, s.from, []string{toEmail}, msg); err != nil {
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("password reset email sent", "email", toEmail)
	return nil
}

func (s *Service) resetLink(token string) string {
	return strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}

func buildMessage(from, to, subject, body string) []byte {
	return []byte(fmt.Sprintf(
		"From: Cicero <%s>\r\n"+
			"To: %s\r\n"+
			"Subject: %s\r\n"+
			"MIME-Version: 1.0\r\n"+
			"Content-Type: text/html; charset=UTF-8\r\n"+
			"\r\n"+
			"%s\r\n",
		from, to, subject, body,
	))
}

func (s *Service) renderPasswordReset(resetLink string, expiresAt time.Time) (string, error) {
	data := struct {
		ResetLink string
		ValidFor  string
	}{
		ResetLink: resetLink,
		ValidFor:  validFor(expiresAt.Sub(s.now())),
	}

	var buf bytes.Buffer
	if err := passwordResetTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

// validFor rounds d to whole hours for display, or minutes below one hour.
func validFor(d time.Duration) string {
	switch {
	case d >= 90*time.Minute:
		return fmt.Sprintf("%d hours", int(d.Round(time.Hour).Hours()))
	case d >= 45*time.Minute:
		return "1 hour"
	case d > time.Minute:
		return fmt.Sprintf("%d minutes", int(d.Round(time.Minute).Minutes()))
	default:
		return "a few moments"
	}
}

var passwordResetTemplate = template.Must(template.New("passwordReset").Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body {
            font-family: Georgia, serif;
            line-height: 1.6;
            color: #333;
            max-width: 600px;
            margin: 0 auto;
            padding: 20px;
        }
        .header {
            background-color: #1F4E5F;
            color: white;
            padding: 20px;
            text-align: center;
            border-radius: 5px 5px 0 0;
        }
        .content {
            background-color: #f7f5f0;
            padding: 30px;
            border-radius: 0 0 5px 5px;
        }
        .button {
            display: inline-block;
            background-color: #1F4E5F;
            color: white !important;
            padding: 12px 30px;
            text-decoration: none;
            border-radius: 5px;
            margin: 20px 0;
        }
        .footer {
            margin-top: 30px;
            font-size: 12px;
            color: #666;
            text-align: center;
        }
    </style>
</head>
<body>
    <div class="header">
        <h1>Cicero</h1>
    </div>
    <div class="content">
        <h2>Reset your password</h2>
        <p>Someone asked to reset the password of your Cicero account. Use the button below to choose a new one.</p>

        <a href="{{.ResetLink}}" class="button" style="color: white !important;">Choose a new password</a>

        <p>Or copy and paste this link into your browser:</p>
        <p style="word-break: break-all; color: #1F4E5F;">{{.ResetLink}}</p>

        <p style="margin-top: 30px;">If you did not ask for this, ignore this email. Your password stays as it is.</p>
    </div>
    <div class="footer">
        <p>The link can be used once and expires in {{.ValidFor}}.</p>
    </div>
</body>
</html>
`))
