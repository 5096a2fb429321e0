package tracker

import "context"

// IssueTracker is the plugin interface a backend implements so the Engine
// can reconcile parent links against it. Only two remote operations are
// needed: read one issue, and set one issue's parent.
type IssueTracker interface {
	// Name returns the lowercase identifier for this tracker (e.g., "jira").
	Name() string

	// DisplayName returns the human-readable name (e.g., "Jira").
	DisplayName() string

	// ConfigPrefix returns the config key prefix (e.g., "jira").
	ConfigPrefix() string

	// Init configures the tracker. Called once before any remote operation.
	Init(ctx context.Context, cfg *Config) error

	// Validate checks that the tracker was initialized.
	Validate() error

	// Close releases any resources held by the tracker.
	Close() error

	// FetchIssue retrieves a single issue by its human-readable key.
	// Any failure, including "not found", is returned as an error.
	FetchIssue(ctx context.Context, key string) (*TrackerIssue, error)

	// SetParent links the issue identified by key to parentKey.
	// Setting the parent an issue already has must succeed.
	SetParent(ctx context.Context, key, parentKey string) error
}
