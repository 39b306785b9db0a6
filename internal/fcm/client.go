package fcm

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/locolive/playback/internal/domain"
)

type sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client pushes owner alerts (such as screenshot notices) through Firebase.
type Client struct {
	msg    sender
	logger *zap.Logger
}

func NewClient(ctx context.Context, logger *zap.Logger, credentialsFile string) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	} else {
		logger.Warn("no firebase credentials file, falling back to application default credentials")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	msgClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &Client{msg: msgClient, logger: logger}, nil
}

// Send delivers a high-priority notification to a single device.
func (c *Client) Send(ctx context.Context, token string, title, body string, data map[string]string) error {
	if token == "" {
		return nil
	}

	_, err := c.msg.Send(ctx, buildMessage(token, title, body, data))
	if err == nil {
		return nil
	}
	if messaging.IsUnregistered(err) {
		c.logger.Info("fcm token no longer registered", zap.String("token_suffix", suffix(token)))
		return domain.ErrStaleToken
	}
	c.logger.Error("failed to send fcm message", zap.String("token_suffix", suffix(token)), zap.Error(err))
	return err
}

func buildMessage(token, title, body string, data map[string]string) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}
}

// suffix keeps tokens out of logs.
func suffix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[len(token)-6:]
}
