package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/octohub/webhook-hub/internal/metrics"
	"github.com/octohub/webhook-hub/internal/retry"
)

// SlackChat implements Chat against the real Slack Web API.
type SlackChat struct {
	client *slack.Client
}

// New builds a SlackChat authenticated with a bot token.
func New(botToken string) *SlackChat {
	return &SlackChat{client: slack.New(botToken)}
}

func (s *SlackChat) PostMessage(ctx context.Context, channel, text string) (string, error) {
	var ts string
	err := call(ctx, "chat.post_message", func(ctx context.Context) error {
		_, t, err := s.client.PostMessageContext(ctx, channel, slack.MsgOptionText(text, false))
		if err != nil {
			return classifyErr(err)
		}
		ts = t
		return nil
	})
	return ts, err
}

func (s *SlackChat) PostThreadReply(ctx context.Context, channel, threadTS, text string) error {
	return call(ctx, "chat.post_thread_reply", func(ctx context.Context) error {
		_, _, err := s.client.PostMessageContext(ctx, channel,
			slack.MsgOptionText(text, false),
			slack.MsgOptionTS(threadTS),
		)
		return classifyErr(err)
	})
}

func (s *SlackChat) OpenDirectMessage(ctx context.Context, userID string) (string, error) {
	var channelID string
	err := call(ctx, "chat.open_dm", func(ctx context.Context) error {
		channel, _, _, err := s.client.OpenConversationContext(ctx, &slack.OpenConversationParameters{
			Users: []string{userID},
		})
		if err != nil {
			return classifyErr(err)
		}
		channelID = channel.ID
		return nil
	})
	return channelID, err
}

func call(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := retry.Do(ctx, retry.DefaultConfig(), fn)
	metrics.ObserveAdapterCall(name, err, time.Since(start))
	return err
}

// classifyErr marks Slack's rate-limited response retryable.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	if rateLimited, ok := err.(*slack.RateLimitedError); ok {
		return retry.NewRetryableError(fmt.Errorf("rate limited, retry after %s: %w", rateLimited.RetryAfter, err))
	}
	return err
}
