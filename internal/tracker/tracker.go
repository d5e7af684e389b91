// Package tracker wraps andygrunwald/go-jira behind engine.Gateway, the
// capability interface the workflow engine drives issues through.
package tracker

import (
	"fmt"

	"github.com/andygrunwald/go-jira"
)

// Client holds the go-jira client plus the hub-specific bits go-jira's
// high-level API doesn't cover (the pending-version custom field id, and
// version CRUD which only exists via the raw REST surface).
type Client struct {
	jira *jira.Client

	pendingVersionField string
}

// New builds a Client authenticated with HTTP basic auth against a JIRA
// Cloud/Server instance, the scheme go-jira's own examples use for API
// tokens.
func New(baseURL, username, apiToken, pendingVersionField string) (*Client, error) {
	tp := jira.BasicAuthTransport{
		Username: username,
		Password: apiToken,
	}
	jiraClient, err := jira.NewClient(tp.Client(), baseURL)
	if err != nil {
		return nil, fmt.Errorf("tracker: new client: %w", err)
	}
	return &Client{jira: jiraClient, pendingVersionField: pendingVersionField}, nil
}
