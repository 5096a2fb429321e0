package jira

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/steveyegge/jparent/internal/tracker"
)

func init() {
	tracker.Register("jira", func() tracker.IssueTracker {
		return &Tracker{}
	})
}

// Tracker implements tracker.IssueTracker for Jira.
type Tracker struct {
	client  *Client
	jiraURL string
}

func (t *Tracker) Name() string         { return "jira" }
func (t *Tracker) DisplayName() string  { return "Jira" }
func (t *Tracker) ConfigPrefix() string { return "jira" }

func (t *Tracker) Init(_ context.Context, cfg *tracker.Config) error {
	jiraURL, err := cfg.GetRequired("url")
	if err != nil {
		return err
	}
	t.jiraURL = jiraURL

	apiToken, err := cfg.GetRequired("api_token")
	if err != nil {
		return err
	}

	username, err := cfg.GetFirst("email", "username")
	if err != nil {
		return err
	}

	client := NewClient(jiraURL, username, apiToken)

	if raw, err := cfg.Get("max_retries"); err != nil {
		return err
	} else if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid jira.max_retries %q: must be a non-negative integer", raw)
		}
		client.MaxRetries = n
	}

	if raw, err := cfg.Get("timeout"); err != nil {
		return err
	} else if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid jira.timeout %q: must be a positive duration", raw)
		}
		client.HTTPClient.Timeout = d
	}

	t.client = client
	return nil
}

// SetClient replaces the underlying API client.
func (t *Tracker) SetClient(c *Client) {
	t.client = c
	t.jiraURL = c.URL
}

func (t *Tracker) Validate() error {
	if t.client == nil {
		return &tracker.ErrNotInitialized{Tracker: "Jira"}
	}
	return nil
}

func (t *Tracker) Close() error { return nil }

func (t *Tracker) FetchIssue(ctx context.Context, key string) (*tracker.TrackerIssue, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	issue, err := t.client.GetIssue(ctx, key)
	if err != nil {
		return nil, err
	}
	ti := t.toTrackerIssue(issue)
	return &ti, nil
}

func (t *Tracker) SetParent(ctx context.Context, key, parentKey string) error {
	if err := t.Validate(); err != nil {
		return err
	}
	return t.client.SetParent(ctx, key, parentKey)
}

// toTrackerIssue converts a Jira API Issue to the generic TrackerIssue format.
func (t *Tracker) toTrackerIssue(ji *Issue) tracker.TrackerIssue {
	ti := tracker.TrackerIssue{
		ID:         ji.ID,
		Identifier: ji.Key,
		URL:        t.client.BrowseURL(ji.Key),
		Title:      ji.Fields.Summary,
		Raw:        ji,
	}
	if ji.Fields.IssueType != nil {
		ti.Type = ji.Fields.IssueType.Name
	}
	if ji.Fields.Parent != nil {
		ti.ParentKey = ji.Fields.Parent.Key
	}
	return ti
}
