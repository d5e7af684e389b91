package tracker

import (
	"context"
	"fmt"
	"net/http"
)

// jiraVersion mirrors the subset of JIRA's version resource the hub reads
// and writes. go-jira's high-level client has no version CRUD, so these
// calls go through the client's raw NewRequest/Do escape hatch.
type jiraVersion struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Project  string `json:"project,omitempty"`
	Released bool   `json:"released"`
	Archived bool   `json:"archived"`
}

func (c *Client) listVersionsFull(ctx context.Context, project string) ([]jiraVersion, error) {
	req, err := c.jira.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("rest/api/2/project/%s/versions", project), nil)
	if err != nil {
		return nil, fmt.Errorf("tracker: build list versions request: %w", err)
	}
	var versions []jiraVersion
	if _, err := c.jira.Do(req, &versions); err != nil {
		return nil, fmt.Errorf("tracker: list versions for %s: %w", project, err)
	}
	return versions, nil
}

// ListProjectVersions lists a project's version names in the project's
// natural (release) order.
func (c *Client) ListProjectVersions(ctx context.Context, project string) ([]string, error) {
	versions, err := c.listVersionsFull(ctx, project)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(versions))
	for _, v := range versions {
		names = append(names, v.Name)
	}
	return names, nil
}

func (c *Client) findVersion(ctx context.Context, project, name string) (jiraVersion, error) {
	versions, err := c.listVersionsFull(ctx, project)
	if err != nil {
		return jiraVersion{}, err
	}
	for _, v := range versions {
		if v.Name == name {
			return v, nil
		}
	}
	return jiraVersion{}, fmt.Errorf("tracker: version %q not found in project %s", name, project)
}

// CreateVersion creates an unreleased version at the end of the project's
// version list.
func (c *Client) CreateVersion(ctx context.Context, project, name string) error {
	body := jiraVersion{Name: name, Project: project}
	req, err := c.jira.NewRequestWithContext(ctx, http.MethodPost, "rest/api/2/version", body)
	if err != nil {
		return fmt.Errorf("tracker: build create version request: %w", err)
	}
	if _, err := c.jira.Do(req, nil); err != nil {
		return fmt.Errorf("tracker: create version %q in %s: %w", name, project, err)
	}
	return nil
}

// ReorderVersion moves a version to immediately after another named
// version (after == "" moves it to the front of the list).
func (c *Client) ReorderVersion(ctx context.Context, project, name string, after string) error {
	v, err := c.findVersion(ctx, project, name)
	if err != nil {
		return err
	}

	var payload map[string]interface{}
	if after == "" {
		payload = map[string]interface{}{"position": "First"}
	} else {
		afterVersion, err := c.findVersion(ctx, project, after)
		if err != nil {
			return err
		}
		payload = map[string]interface{}{"after": fmt.Sprintf("rest/api/2/version/%s", afterVersion.ID)}
	}

	req, err := c.jira.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("rest/api/2/version/%s/move", v.ID), payload)
	if err != nil {
		return fmt.Errorf("tracker: build reorder version request: %w", err)
	}
	if _, err := c.jira.Do(req, nil); err != nil {
		return fmt.Errorf("tracker: reorder version %q in %s: %w", name, project, err)
	}
	return nil
}

// ReleaseVersion marks a version released.
func (c *Client) ReleaseVersion(ctx context.Context, project, name string) error {
	v, err := c.findVersion(ctx, project, name)
	if err != nil {
		return err
	}
	v.Released = true

	req, err := c.jira.NewRequestWithContext(ctx, http.MethodPut, fmt.Sprintf("rest/api/2/version/%s", v.ID), v)
	if err != nil {
		return fmt.Errorf("tracker: build release version request: %w", err)
	}
	if _, err := c.jira.Do(req, nil); err != nil {
		return fmt.Errorf("tracker: release version %q in %s: %w", name, project, err)
	}
	return nil
}
