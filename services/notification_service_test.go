package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Dosada05/bracket-engine/config"
	"github.com/Dosada05/bracket-engine/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

func newCapturingNotifier(fail bool) (*EmailNotifier, *[]sentMail) {
	var sent []sentMail
	n := NewEmailNotifier(&config.Config{}, nil)
	n.recipients = []string{"admin@example.com", "ops@example.com"}
	n.send = func(to []string, subject, body string) error {
		sent = append(sent, sentMail{to: to, subject: subject, body: body})
		if fail {
			return errors.New("smtp unavailable")
		}
		return nil
	}
	return n, &sent
}

func disputedMatch() *models.Match {
	return &models.Match{
		ID:           42,
		TournamentID: 7,
		RoundName:    "Semifinal",
		Status:       models.MatchDisputed,
		Dispute: &models.Dispute{
			ReportedBy: 3,
			Reason:     "<b>lag</b> abuse",
			Evidence:   []string{"https://cdn.example.com/clip.mp4"},
			Status:     models.DisputeOpen,
		},
	}
}

func TestEmailNotifier_DisputeReported(t *testing.T) {
	n, sent := newCapturingNotifier(false)
	n.DisputeReported(context.Background(), disputedMatch())

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, []string{"admin@example.com", "ops@example.com"}, mail.to)
	assert.Equal(t, "Match #42 disputed", mail.subject)
	assert.Contains(t, mail.body, "Match #42 (Semifinal) in tournament #7")
	assert.Contains(t, mail.body, "participant #3")
	assert.Contains(t, mail.body, "&lt;b&gt;lag&lt;/b&gt; abuse")
	assert.Contains(t, mail.body, `href="https://cdn.example.com/clip.mp4"`)
}

func TestEmailNotifier_DisputeResolved(t *testing.T) {
	n, sent := newCapturingNotifier(false)
	m := disputedMatch()
	m.Status = models.MatchCompleted
	m.WinnerID = intPtr(5)
	m.Dispute.Status = models.DisputeResolved
	m.Dispute.Resolution = "replay reviewed"

	n.DisputeResolved(context.Background(), m)

	require.Len(t, *sent, 1)
	assert.Equal(t, "Dispute on match #42 resolved", (*sent)[0].subject)
	assert.Contains(t, (*sent)[0].body, "winner participant #5")
	assert.Contains(t, (*sent)[0].body, "Resolution: replay reviewed")
}

func TestEmailNotifier_SkipsWhenNothingToSend(t *testing.T) {
	n, sent := newCapturingNotifier(false)
	n.DisputeReported(context.Background(), &models.Match{ID: 1})
	n.DisputeReported(context.Background(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n.DisputeReported(ctx, disputedMatch())
	assert.Empty(t, *sent)

	// Unconfigured SMTP never sends.
	disabled := NewEmailNotifier(&config.Config{}, nil)
	assert.Nil(t, disabled.send)
	disabled.DisputeReported(context.Background(), disputedMatch())
}

func TestEmailNotifier_SendFailureIsSwallowed(t *testing.T) {
	n, sent := newCapturingNotifier(true)
	assert.NotPanics(t, func() {
		n.DisputeResolved(context.Background(), disputedMatch())
	})
	assert.Len(t, *sent, 1)
}

func TestNewEmailNotifierUsesConfiguredRecipients(t *testing.T) {
	cfg := &config.Config{
		SMTPHost:          "smtp.example.com",
		SMTPPort:          587,
		SMTPFrom:          "noreply@example.com",
		NotifyAdminEmails: []string{"admin@example.com"},
	}
	n := NewEmailNotifier(cfg, nil)
	assert.NotNil(t, n.send)
	assert.Equal(t, []string{"admin@example.com"}, n.recipients)
}
