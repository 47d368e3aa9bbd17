package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"pharchive/models"
)

const requestTimeout = 10 * time.Second

// Notifier delivers a single pre-formatted message, best effort. Delivery
// problems are logged and never escalated to the pipeline.
type Notifier interface {
	Notify(message string)
}

// Telegram sends messages through the Telegram bot API.
type Telegram struct {
	Token  string
	ChatID string
	Client *http.Client
}

// NewTelegram returns a Telegram notifier, or a noop notifier when either
// credential is missing. Missing credentials are not an error; they just
// disable notification.
func NewTelegram(token string, chatID string) Notifier {
	if token == "" || chatID == "" {
		log.Info("Telegram bot token or chat ID not set; skipping notification.")
		return Noop{}
	}
	return &Telegram{
		Token:  token,
		ChatID: chatID,
		Client: &http.Client{Timeout: requestTimeout},
	}
}

func (t *Telegram) Notify(message string) {
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.Token)
	data := url.Values{
		"chat_id":    {t.ChatID},
		"text":       {message},
		"parse_mode": {"Markdown"},
	}

	resp, err := t.Client.PostForm(endpoint, data)
	if err != nil {
		log.Errorf("Exception sending Telegram message: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("Failed to send Telegram message: status %d", resp.StatusCode)
	}
}

// Noop drops every message.
type Noop struct{}

func (Noop) Notify(string) {}

// FormatFailureReport renders the batched failure notification sent at the
// end of a run.
func FormatFailureReport(failures []models.Failure) string {
	lines := []string{fmt.Sprintf("*Capture Failures* (%s UTC):", time.Now().UTC().Format(time.RFC3339))}
	for _, failure := range failures {
		lines = append(lines, failure.Message())
	}
	return strings.Join(lines, "\n")
}
