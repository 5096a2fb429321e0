package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/steveyegge/jparent/internal/config"
	"github.com/steveyegge/jparent/internal/importer"
	"github.com/steveyegge/jparent/internal/jira"
	"github.com/steveyegge/jparent/internal/tracker"
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
//
// Example:
//
//	if err := config.InitializeWithFile(configPath); err != nil {
//	    FatalError("%v", err)
//	}
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
// Use this when you can provide an actionable suggestion to fix the error.
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	exit(1)
}

// WarnError writes a warning message to stderr and returns.
// Use this for optional operations that enhance functionality but aren't required.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// errorCode classifies a fatal error for machine-readable output.
func errorCode(err error) string {
	var (
		verr      *config.ValidationError
		schemaErr *importer.SchemaError
		targetErr *tracker.TargetResolutionError
	)
	switch {
	case errors.As(err, &verr):
		return "invalid_config"
	case errors.As(err, &schemaErr):
		return "invalid_csv"
	case errors.Is(err, tracker.ErrNoIssues):
		return "no_issues"
	case errors.As(err, &targetErr):
		switch {
		case jira.IsUnauthorized(err):
			return "unauthorized"
		case jira.IsNotFound(err):
			return "parent_not_found"
		}
		return "parent_unverified"
	}
	return ""
}

// errorHint suggests a fix for well-known failures, or returns "".
func errorHint(err error) string {
	var (
		verr      *config.ValidationError
		schemaErr *importer.SchemaError
		targetErr *tracker.TargetResolutionError
	)
	switch {
	case errors.As(err, &verr):
		return "Run 'jparent set --help' for the required flags"
	case errors.As(err, &schemaErr):
		return "Export the issues from Jira as CSV with the \"Issue key\" and \"Issue id\" columns"
	case errors.Is(err, tracker.ErrNoIssues):
		return "Check that --issues names keys present in the CSV file"
	case errors.As(err, &targetErr):
		if jira.IsUnauthorized(err) {
			return "Check --email and --pat (or JIRA_EMAIL and JIRA_API_TOKEN)"
		}
		if jira.IsNotFound(err) {
			return "Check that the parent issue exists and is visible to this account"
		}
	}
	return ""
}

// fail reports err in the configured output format and exits with code 1.
func fail(format string, err error) {
	if format == config.FormatJSON {
		outputJSONError(err, errorCode(err))
		return
	}
	if hint := errorHint(err); hint != "" {
		FatalErrorWithHint(err.Error(), hint)
		return
	}
	FatalError("%v", err)
}
