package tracker

import (
	"context"
	"fmt"
	"net/http"

	"github.com/andygrunwald/go-jira"

	"github.com/octohub/webhook-hub/internal/engine"
	"github.com/octohub/webhook-hub/internal/model"
)

// GetIssue fetches an issue's current status, fix versions and pending
// version field.
func (c *Client) GetIssue(ctx context.Context, key model.IssueKey) (engine.Issue, error) {
	issue, _, err := c.jira.Issue.GetWithContext(ctx, key.String(), nil)
	if err != nil {
		return engine.Issue{}, fmt.Errorf("tracker: get issue %s: %w", key, err)
	}

	var fixVersions []string
	for _, v := range issue.Fields.FixVersions {
		fixVersions = append(fixVersions, v.Name)
	}

	var pending string
	if raw, ok := issue.Fields.Unknowns[c.pendingVersionField]; ok {
		if s, ok := raw.(string); ok {
			pending = s
		}
	}

	return engine.Issue{
		Key:            key,
		Status:         issue.Fields.Status.Name,
		PendingVersion: pending,
		FixVersions:    fixVersions,
	}, nil
}

// jiraResolutionValue is one value JIRA allows for a transition's resolution
// field.
type jiraResolutionValue struct {
	Name string `json:"name"`
}

// jiraTransitionField describes one field a transition's screen carries;
// the engine only cares about "resolution"'s allowed values.
type jiraTransitionField struct {
	AllowedValues []jiraResolutionValue `json:"allowedValues"`
}

type jiraTransition struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	To     struct {
		Name string `json:"name"`
	} `json:"to"`
	Fields map[string]jiraTransitionField `json:"fields"`
}

type jiraTransitionsResponse struct {
	Transitions []jiraTransition `json:"transitions"`
}

// GetTransitions lists the workflow transitions currently available on an
// issue, including each transition's allowed resolution values. go-jira's
// typed Transition struct doesn't surface field metadata, so this goes
// through the client's raw NewRequest/Do escape hatch, same as the version
// endpoints do.
func (c *Client) GetTransitions(ctx context.Context, key model.IssueKey) ([]engine.TransitionOption, error) {
	req, err := c.jira.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("rest/api/2/issue/%s/transitions?expand=transitions.fields", key.String()), nil)
	if err != nil {
		return nil, fmt.Errorf("tracker: build get transitions request for %s: %w", key, err)
	}
	var resp jiraTransitionsResponse
	if _, err := c.jira.Do(req, &resp); err != nil {
		return nil, fmt.Errorf("tracker: get transitions for %s: %w", key, err)
	}

	options := make([]engine.TransitionOption, 0, len(resp.Transitions))
	for _, t := range resp.Transitions {
		var allowed []string
		if field, ok := t.Fields["resolution"]; ok {
			for _, v := range field.AllowedValues {
				allowed = append(allowed, v.Name)
			}
		}
		options = append(options, engine.TransitionOption{
			ID:                 t.ID,
			Name:               t.Name,
			ToStatus:           t.To.Name,
			AllowedResolutions: allowed,
		})
	}
	return options, nil
}

// ApplyTransition submits transitionID, attaching resolution as the
// transition's resolution field when non-empty.
func (c *Client) ApplyTransition(ctx context.Context, key model.IssueKey, transitionID, resolution string) error {
	payload := map[string]interface{}{
		"transition": map[string]interface{}{"id": transitionID},
	}
	if resolution != "" {
		payload["fields"] = map[string]interface{}{
			"resolution": map[string]interface{}{"name": resolution},
		}
	}
	req, err := c.jira.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("rest/api/2/issue/%s/transitions", key.String()), payload)
	if err != nil {
		return fmt.Errorf("tracker: build apply transition request for %s: %w", key, err)
	}
	if _, err := c.jira.Do(req, nil); err != nil {
		return fmt.Errorf("tracker: apply transition %q to %s: %w", transitionID, key, err)
	}
	return nil
}

// AssignFixVersion adds version to an issue's fix versions without
// disturbing any version already recorded there.
func (c *Client) AssignFixVersion(ctx context.Context, key model.IssueKey, version string) error {
	payload := map[string]interface{}{
		"update": map[string]interface{}{
			"fixVersions": []map[string]interface{}{
				{"add": map[string]interface{}{"name": version}},
			},
		},
	}
	if _, err := c.jira.Issue.UpdateIssueWithContext(ctx, key.String(), payload); err != nil {
		return fmt.Errorf("tracker: assign fix version %q to %s: %w", version, key, err)
	}
	return nil
}

// AddComment posts a plain-text comment.
func (c *Client) AddComment(ctx context.Context, key model.IssueKey, body string) error {
	_, _, err := c.jira.Issue.AddCommentWithContext(ctx, key.String(), &jira.Comment{Body: body})
	if err != nil {
		return fmt.Errorf("tracker: comment on %s: %w", key, err)
	}
	return nil
}

// SetPendingVersion writes the pending-version custom field directly,
// bypassing the high-level Issue.Update helper: a bare field update is all
// this needs and avoids round-tripping the full issue body.
func (c *Client) SetPendingVersion(ctx context.Context, key model.IssueKey, version string) error {
	payload := map[string]interface{}{
		"fields": map[string]interface{}{
			c.pendingVersionField: version,
		},
	}
	if _, err := c.jira.Issue.UpdateIssueWithContext(ctx, key.String(), payload); err != nil {
		return fmt.Errorf("tracker: set pending version on %s: %w", key, err)
	}
	return nil
}
