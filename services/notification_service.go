package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/Dosada05/bracket-engine/config"
	"github.com/Dosada05/bracket-engine/models"
)

// DisputeNotifier tells tournament admins about disputes. Failures are logged, never returned
// to the player who triggered them.
type DisputeNotifier interface {
	DisputeReported(ctx context.Context, m *models.Match)
	DisputeResolved(ctx context.Context, m *models.Match)
}

type mailSender func(to []string, subject, body string) error

type EmailNotifier struct {
	cfg        *config.Config
	recipients []string
	send       mailSender
	logger     *slog.Logger
}

var (
	disputeReportedTmpl = template.Must(template.New("reported").Parse(
		`<p>Match #{{.Match.ID}} ({{.Match.RoundName}}) in tournament #{{.Match.TournamentID}} was disputed by participant #{{.Dispute.ReportedBy}}.</p>
<p>Reason: {{.Dispute.Reason}}</p>
{{if .Dispute.Evidence}}<ul>{{range .Dispute.Evidence}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{end}}`))

	disputeResolvedTmpl = template.Must(template.New("resolved").Parse(
		`<p>The dispute on match #{{.Match.ID}} in tournament #{{.Match.TournamentID}} was resolved.</p>
<p>Outcome: {{.Match.Status}}{{if .Match.WinnerID}}, winner participant #{{.Match.WinnerID}}{{end}}</p>
{{if .Dispute.Resolution}}<p>Resolution: {{.Dispute.Resolution}}</p>{{end}}`))
)

// NewEmailNotifier returns a notifier that mails cfg.NotifyAdminEmails. When SMTP is not
// configured every call is a no-op.
func NewEmailNotifier(cfg *config.Config, logger *slog.Logger) *EmailNotifier {
	n := &EmailNotifier{cfg: cfg, logger: loggerOrDefault(logger)}
	if cfg != nil && cfg.EmailEnabled() {
		n.recipients = cfg.NotifyAdminEmails
		n.send = n.sendSMTP
	}
	return n
}

func (n *EmailNotifier) DisputeReported(ctx context.Context, m *models.Match) {
	n.notify(ctx, m, "Match #%d disputed", disputeReportedTmpl)
}

func (n *EmailNotifier) DisputeResolved(ctx context.Context, m *models.Match) {
	n.notify(ctx, m, "Dispute on match #%d resolved", disputeResolvedTmpl)
}

func (n *EmailNotifier) notify(ctx context.Context, m *models.Match, subjectFormat string, tmpl *template.Template) {
	if n.send == nil || len(n.recipients) == 0 || m == nil || m.Dispute == nil {
		return
	}
	if ctx.Err() != nil {
		return
	}
	body, err := renderDisputeEmail(tmpl, m)
	if err != nil {
		n.logger.Error("failed to render dispute email", slog.Int("match_id", m.ID), slog.Any("error", err))
		return
	}
	subject := fmt.Sprintf(subjectFormat, m.ID)
	if err := n.send(n.recipients, subject, body); err != nil {
		n.logger.Error("failed to send dispute email", slog.Int("match_id", m.ID), slog.Any("error", err))
		return
	}
	n.logger.Info("dispute email sent", slog.Int("match_id", m.ID), slog.Int("recipients", len(n.recipients)))
}

func renderDisputeEmail(tmpl *template.Template, m *models.Match) (string, error) {
	data := struct {
		Match   *models.Match
		Dispute *models.Dispute
	}{Match: m, Dispute: m.Dispute}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("ошибка выполнения шаблона %s: %w", tmpl.Name(), err)
	}
	return body.String(), nil
}

func (n *EmailNotifier) sendSMTP(to []string, subject string, body string) error {
	auth := smtp.PlainAuth("", n.cfg.SMTPUser, n.cfg.SMTPPass, n.cfg.SMTPHost)

	msg := []byte("To: " + strings.Join(to, ", ") + "\r\n" +
		"From: " + n.cfg.SMTPFrom + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-version: 1.0;\r\nContent-Type: text/html; charset=\"UTF-8\";\r\n" +
		"\r\n" +
		body + "\r\n")

	addr := fmt.Sprintf("%s:%d", n.cfg.SMTPHost, n.cfg.SMTPPort)
	tlsconfig := &tls.Config{ServerName: n.cfg.SMTPHost}

	var client *smtp.Client
	if n.cfg.SMTPPort == 465 {
		// Прямое TLS-соединение
		conn, err := tls.Dial("tcp", addr, tlsconfig)
		if err != nil {
			return fmt.Errorf("ошибка TLS соединения: %w", err)
		}
		client, err = smtp.NewClient(conn, n.cfg.SMTPHost)
		if err != nil {
			conn.Close()
			return fmt.Errorf("ошибка создания SMTP клиента: %w", err)
		}
	} else {
		// STARTTLS
		c, err := smtp.Dial(addr)
		if err != nil {
			return fmt.Errorf("ошибка соединения SMTP: %w", err)
		}
		client = c
		if err = client.StartTLS(tlsconfig); err != nil {
			client.Close()
			return fmt.Errorf("ошибка команды STARTTLS: %w", err)
		}
	}
	defer client.Quit()

	if n.cfg.SMTPUser != "" {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("ошибка аутентификации SMTP: %w", err)
		}
	}
	if err := client.Mail(n.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("ошибка MAIL FROM: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("ошибка RCPT TO: %w", err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("ошибка команды DATA: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("ошибка записи сообщения: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("ошибка закрытия DATA: %w", err)
	}
	return nil
}
