// Package messenger fans a notification out to chat channels and direct
// messages per spec.md's Channel/Owner/All send modes, deduping identical
// sends within a bounded recent-message window.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/octohub/webhook-hub/internal/chat"
	"github.com/octohub/webhook-hub/internal/model"
	"github.com/octohub/webhook-hub/internal/store"
)

// UserBindings resolves a source-host login to its tracker/chat identities.
// internal/store's sqlite-backed implementation satisfies this.
type UserBindings interface {
	GetUserBinding(ctx context.Context, hostLogin string) (model.UserBinding, error)
}

// Notification describes one logical event to fan out.
type Notification struct {
	RepoConfig         model.RepoConfig
	Branch             string
	ReferencedProjects []string // jira project keys referenced by the triggering commits
	Mode               model.NotifyMode
	Sender             model.UserRef
	Owner              *model.UserRef  // item owner, used in Owner mode
	Recipients         []model.UserRef // candidate DM recipients for All mode
	Text               string
}

// Messenger sends Notifications through a Chat backend, applying recipient
// policy and recent-message dedup.
type Messenger struct {
	chat     chat.Chat
	bindings UserBindings
	botLogin string

	mu     sync.Mutex
	recent []sentKey
}

// New builds a Messenger. botLogin is the hub's own source-host account,
// excluded from All-mode recipient fan-out per spec.md's "minus the event
// sender and the bot itself" rule.
func New(c chat.Chat, bindings UserBindings, botLogin string) *Messenger {
	return &Messenger{chat: c, bindings: bindings, botLogin: botLogin}
}

// Notify sends n according to its Mode, returning the first error
// encountered (callers treat messenger failures as logged-and-continued,
// never fatal to the triggering webhook).
func (m *Messenger) Notify(ctx context.Context, n Notification) error {
	if n.Mode == model.NotifyNone {
		return nil
	}

	channels := resolveChannels(n.RepoConfig, n.Branch, n.ReferencedProjects)
	var firstErr error
	for _, ch := range channels {
		if err := m.sendChannel(ctx, ch, n.Text); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	switch n.Mode {
	case model.NotifyChannel:
		// channel already sent above
	case model.NotifyOwner:
		if n.Owner != nil {
			if err := m.dm(ctx, *n.Owner, n.Text); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	case model.NotifyAll:
		for _, r := range dedupeRecipients(n.Recipients, n.Sender, m.botLogin) {
			if err := m.dm(ctx, r, n.Text); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// resolveChannels implements spec.md §4.7's channel resolution: branch-scoped
// JiraBindings whose referenced project has a channel override take
// precedence, possibly fanning out to more than one channel; absent any
// override, the repo's default channel is used; absent that, nothing.
func resolveChannels(rc model.RepoConfig, branch string, referencedProjects []string) []string {
	projectSet := make(map[string]bool, len(referencedProjects))
	for _, p := range referencedProjects {
		projectSet[strings.ToUpper(p)] = true
	}

	seen := make(map[string]bool)
	var overrides []string
	for _, b := range rc.JiraBindings {
		if b.Channel == "" {
			continue
		}
		if b.Branch != "" && b.Branch != branch {
			continue
		}
		if len(projectSet) > 0 && !projectSet[strings.ToUpper(b.ProjectKey)] {
			continue
		}
		if !seen[b.Channel] {
			seen[b.Channel] = true
			overrides = append(overrides, b.Channel)
		}
	}
	if len(overrides) > 0 {
		return overrides
	}
	if rc.DefaultChannel != "" {
		return []string{rc.DefaultChannel}
	}
	return nil
}

func (m *Messenger) sendChannel(ctx context.Context, channel, text string) error {
	if !m.markSent(channel, text) {
		return nil
	}
	_, err := m.chat.PostMessage(ctx, channel, text)
	return err
}

// dm resolves login's chat identity and sends text, silently doing nothing
// if no binding exists, the binding has muted DMs, or the binding carries
// no chat user id.
func (m *Messenger) dm(ctx context.Context, user model.UserRef, text string) error {
	binding, err := m.bindings.GetUserBinding(ctx, user.Login)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("messenger: resolve binding for %s: %w", user.Login, err)
	}
	if binding.MuteDMs || binding.ChatUserID == "" {
		return nil
	}

	channelID, err := m.chat.OpenDirectMessage(ctx, binding.ChatUserID)
	if err != nil {
		return fmt.Errorf("messenger: open dm for %s: %w", user.Login, err)
	}
	if !m.markSent(channelID, text) {
		return nil
	}
	_, err = m.chat.PostMessage(ctx, channelID, text)
	return err
}

// dedupeRecipients returns recipients minus sender and the bot account,
// deduped by login (case-insensitive).
func dedupeRecipients(recipients []model.UserRef, sender model.UserRef, botLogin string) []model.UserRef {
	seen := make(map[string]bool)
	var out []model.UserRef
	for _, r := range recipients {
		if r.Equal(sender) || r.Equal(model.UserRef{Login: botLogin}) {
			continue
		}
		key := strings.ToLower(r.Login)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
