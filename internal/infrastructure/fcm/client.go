package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// Options carry the service account, as a file path or inline JSON.
type Options struct {
	CredentialsPath string
	CredentialsJSON string
}

type Client struct {
	client *messaging.Client
	logger zerolog.Logger
}

// NewClient initializes Firebase Cloud Messaging. Without credentials the
// returned client is disabled and every send is refused.
func NewClient(ctx context.Context, opts Options, logger zerolog.Logger) (*Client, error) {
	logger = logger.With().Str("component", "fcm").Logger()

	var opt option.ClientOption
	switch {
	case opts.CredentialsPath != "":
		opt = option.WithCredentialsFile(opts.CredentialsPath)
	case opts.CredentialsJSON != "":
		opt = option.WithCredentialsJSON([]byte(opts.CredentialsJSON))
	default:
		logger.Warn().Msg("No Firebase credentials found. FCM disabled.")
		return &Client{logger: logger}, nil
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	logger.Info().Msg("Firebase Cloud Messaging initialized successfully")
	return &Client{client: client, logger: logger}, nil
}

// SendMulticast sends notification to multiple tokens
func (c *Client) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if c.client == nil {
		return fmt.Errorf("FCM client not initialized")
	}

	if len(tokens) == 0 {
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "fx_screener_alerts",
				Priority:  messaging.PriorityHigh,
			},
		},
	}

	response, err := c.client.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("error sending multicast: %w", err)
	}
	if response.SuccessCount == 0 && response.FailureCount > 0 {
		return fmt.Errorf("all %d messages failed", response.FailureCount)
	}

	c.logger.Info().Int("success", response.SuccessCount).Int("failures", response.FailureCount).Msg("Sent multicast")
	return nil
}

// IsEnabled returns true if FCM client is initialized
func (c *Client) IsEnabled() bool {
	return c != nil && c.client != nil
}
