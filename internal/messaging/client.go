package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Notifier delivers escalation messages to an external chat system.
type Notifier interface {
	Notify(ctx context.Context, route, text string) error
}

// chatMessage is the payload posted to the chat webhook.
type chatMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// ChatClient posts messages to an incoming chat webhook URL.
type ChatClient struct {
	webhookURL string
	timeout    time.Duration
	logger     *zap.Logger
}

// NewChatClient creates a client for the given webhook URL.
func NewChatClient(webhookURL string, logger *zap.Logger) *ChatClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatClient{
		webhookURL: webhookURL,
		timeout:    10 * time.Second,
		logger:     logger,
	}
}

// Notify posts the text to the configured webhook, addressed to route.
func (c *ChatClient) Notify(ctx context.Context, route, text string) error {
	agent := fiber.Post(c.webhookURL)
	agent.Timeout(c.timeout)
	agent.JSON(chatMessage{Channel: route, Text: text})

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("chat webhook post: %w", errs[0])
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("chat webhook returned status %d", code)
	}
	c.logger.Debug("chat notification delivered",
		zap.String("route", route),
		zap.Int("status", code),
	)
	return nil
}

// NoopNotifier drops messages. Used when no chat webhook is configured.
type NoopNotifier struct {
	logger *zap.Logger
}

// NewNoopNotifier creates a notifier that only logs.
func NewNoopNotifier(logger *zap.Logger) *NoopNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NoopNotifier{logger: logger}
}

// Notify logs the message instead of delivering it.
func (n *NoopNotifier) Notify(_ context.Context, route, text string) error {
	n.logger.Info("escalation (chat webhook not configured)",
		zap.String("route", route),
		zap.String("text", text),
	)
	return nil
}
