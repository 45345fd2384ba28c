package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultTelegramAPI is the Bot API root.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramSender posts to a chat through the Bot API.
type TelegramSender struct {
	apiURL string
	token  string
	chatID string
	client *http.Client
}

// NewTelegramSender creates a TelegramSender. An empty apiURL uses
// DefaultTelegramAPI.
func NewTelegramSender(apiURL, token, chatID string) *TelegramSender {
	if apiURL == "" {
		apiURL = DefaultTelegramAPI
	}
	return &TelegramSender{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: newHTTPClient(),
	}
}

// Send posts title in bold followed by body.
func (t *TelegramSender) Send(ctx context.Context, title, body string) error {
	return postJSON(ctx, t.client, t.Name(), fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token), map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, body),
		"parse_mode": "Markdown",
	})
}

// Name returns "telegram".
func (t *TelegramSender) Name() string { return "telegram" }
