package alert

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"sui-invariant-monitor/internal/model"
)

type WebhookSink struct {
	url    string
	client *http.Client
	newID  func() string
}

func NewWebhookSink(url string, client *http.Client) *WebhookSink {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookSink{url: url, client: client, newID: uuid.NewString}
}

func (s *WebhookSink) Name() string { return "webhook" }

func (s *WebhookSink) Send(ctx context.Context, r model.Result) error {
	if err := postJSON(ctx, s.client, s.url, NewWebhookPayload(r, s.newID())); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (s *WebhookSink) Close(context.Context) error { return nil }

type DiscordSink struct {
	url    string
	client *http.Client
}

func NewDiscordSink(url string, client *http.Client) *DiscordSink {
	if client == nil {
		client = &http.Client{}
	}
	return &DiscordSink{url: url, client: client}
}

func (s *DiscordSink) Name() string { return "discord" }

func (s *DiscordSink) Send(ctx context.Context, r model.Result) error {
	if err := postJSON(ctx, s.client, s.url, NewDiscordMessage(r)); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (s *DiscordSink) Close(context.Context) error { return nil }
