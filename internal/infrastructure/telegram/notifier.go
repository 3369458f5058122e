package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PaperScanner/internal/domain"
	"PaperScanner/internal/ports"
)

const defaultAPIURL = "https://api.telegram.org"

// Notifier sends run digests to a Telegram chat via bot API.
type Notifier struct {
	apiURL   string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.RunNotifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty apiURL targets api.telegram.org.
func NewNotifier(apiURL, botToken, chatID string) *Notifier {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &Notifier{
		apiURL:   strings.TrimRight(apiURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// NotifyRun posts a Markdown summary of a finished run.
func (n *Notifier) NotifyRun(ctx context.Context, stats domain.RunStats) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiURL, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", Digest(stats))
	form.Set("parse_mode", "Markdown")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}

// Digest renders stats as a short Markdown message.
func Digest(stats domain.RunStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*PaperScanner run* `%s`\n", stats.RunID)
	fmt.Fprintf(&b, "stored %d of %d fetched\n", stats.Stored, stats.TotalFetched)
	fmt.Fprintf(&b, "confidence: high %d, medium %d, low %d\n", stats.HighConfidence, stats.MediumConfidence, stats.LowConfidence)
	if len(stats.FailedCategories) > 0 {
		fmt.Fprintf(&b, "failed: %s\n", strings.Join(stats.FailedCategories, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
