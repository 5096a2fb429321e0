package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/steveyegge/jparent/internal/config"
	"github.com/steveyegge/jparent/internal/importer"
	"github.com/steveyegge/jparent/internal/jira"
	"github.com/steveyegge/jparent/internal/tracker"
)

func TestErrorCodeAndHint(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     string
		wantHint bool
	}{
		{"validation", &config.ValidationError{Problems: []string{"--csv-file is required"}}, "invalid_config", true},
		{"schema", &importer.SchemaError{Reason: "bad"}, "invalid_csv", true},
		{"no issues", tracker.ErrNoIssues, "no_issues", true},
		{"wrapped no issues", fmt.Errorf("loading: %w", tracker.ErrNoIssues), "no_issues", true},
		{
			"unauthorized parent",
			&tracker.TargetResolutionError{Target: "P-1", Err: &jira.APIError{StatusCode: 401}},
			"unauthorized", true,
		},
		{
			"missing parent",
			&tracker.TargetResolutionError{Target: "P-1", Err: &jira.APIError{StatusCode: 404}},
			"parent_not_found", true,
		},
		{
			"parent lookup transport failure",
			&tracker.TargetResolutionError{Target: "P-1", Err: errors.New("connection refused")},
			"parent_unverified", false,
		},
		{
			"parent lookup server error",
			&tracker.TargetResolutionError{Target: "P-1", Err: &jira.APIError{StatusCode: 500}},
			"parent_unverified", false,
		},
		{"other", errors.New("boom"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorCode(tt.err); got != tt.code {
				t.Errorf("errorCode() = %q, want %q", got, tt.code)
			}
			if got := errorHint(tt.err); (got != "") != tt.wantHint {
				t.Errorf("errorHint() = %q, wantHint %v", got, tt.wantHint)
			}
		})
	}
}
