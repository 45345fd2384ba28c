package notify

import (
	"context"
	"fmt"
	"net/http"
)

// DiscordSender posts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{webhookURL: webhookURL, client: newHTTPClient()}
}

// Send posts title in bold followed by body. Discord answers 204 on success.
func (d *DiscordSender) Send(ctx context.Context, title, body string) error {
	return postJSON(ctx, d.client, d.Name(), d.webhookURL, map[string]string{
		"content": fmt.Sprintf("**%s**\n%s", title, body),
	})
}

// Name returns "discord".
func (d *DiscordSender) Name() string { return "discord" }
