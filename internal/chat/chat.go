// Package chat is the hub's capability interface onto the Slack-shaped chat
// system: posting notifications to channels and direct messages.
package chat

import "context"

// Chat is everything internal/messenger needs from the chat system.
type Chat interface {
	// PostMessage posts text to channel (a channel id or name) and returns
	// the message timestamp, used as a thread root for later replies.
	PostMessage(ctx context.Context, channel, text string) (ts string, err error)

	// PostThreadReply posts text as a threaded reply under threadTS in
	// channel.
	PostThreadReply(ctx context.Context, channel, threadTS, text string) error

	// OpenDirectMessage resolves (or opens) a DM channel with userID,
	// returning the channel id PostMessage can target.
	OpenDirectMessage(ctx context.Context, userID string) (channelID string, err error)
}
