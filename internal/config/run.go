package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/steveyegge/jparent/internal/jira"
	"github.com/steveyegge/jparent/internal/types"
)

// Output formats accepted by --format.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// RunConfig is the validated, immutable input to one reconciliation run.
type RunConfig struct {
	CSVFile   string `validate:"required"`
	ParentKey string `validate:"required,issuekey"`
	// Issues is nil when --issues was not given. A given list that trims to
	// nothing is empty but non-nil and selects no rows.
	Issues    []string `validate:"omitempty"`
	DryRun    bool
	Yes       bool
	Delimiter rune
	AuditLog  string
	Format    string `validate:"oneof=text json yaml"`

	// Jira is nil for offline commands.
	Jira *JiraConfig
}

// JiraConfig holds the connection settings for the Jira instance.
type JiraConfig struct {
	URL        string        `validate:"required,http_url"`
	Email      string        `validate:"omitempty,email"`
	APIToken   string        `validate:"required"`
	MaxRetries int           `validate:"gte=0,lte=10"`
	Timeout    time.Duration `validate:"gt=0"`
}

// GetConfig serves the resolved settings to tracker plugins under their
// "jira." keys, so the client uses exactly what was validated and shown.
func (j *JiraConfig) GetConfig(key string) (string, error) {
	switch key {
	case "jira.url":
		return j.URL, nil
	case "jira.email":
		return j.Email, nil
	case "jira.api_token":
		return j.APIToken, nil
	case "jira.max_retries":
		return strconv.Itoa(j.MaxRetries), nil
	case "jira.timeout":
		return j.Timeout.String(), nil
	}
	return "", nil
}

// LoadOptions controls which parts of the configuration are required.
type LoadOptions struct {
	// Offline skips the Jira connection settings.
	Offline bool
}

// flagNames maps struct fields to the flags users set them with, for error
// messages.
var flagNames = map[string]string{
	"CSVFile":    "--csv-file",
	"ParentKey":  "--parent-key",
	"Format":     "--format",
	"URL":        "--jira-url",
	"Email":      "--email",
	"APIToken":   "--pat",
	"MaxRetries": "jira.max_retries",
	"Timeout":    "jira.timeout",
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		_ = validate.RegisterValidation("issuekey", func(fl validator.FieldLevel) bool {
			return types.IsValidParentKey(fl.Field().String())
		})
	})
	return validate
}

// LoadRun assembles a RunConfig from the current configuration and validates
// it. A browse URL given as the parent key is reduced to its issue key.
func LoadRun(opts LoadOptions) (*RunConfig, error) {
	if v == nil {
		return nil, errors.New("config not initialized")
	}

	delimiter, err := parseDelimiter(GetString("delimiter"))
	if err != nil {
		return nil, err
	}

	cfg := &RunConfig{
		CSVFile:   strings.TrimSpace(GetString("csv-file")),
		ParentKey: jira.NormalizeKey(GetString("parent-key")),
		Issues:    issueList(),
		DryRun:    GetBool("dry-run"),
		Yes:       GetBool("yes"),
		Delimiter: delimiter,
		AuditLog:  strings.TrimSpace(GetString("audit-log")),
		Format:    strings.ToLower(strings.TrimSpace(GetString("format"))),
	}

	if !opts.Offline {
		cfg.Jira = &JiraConfig{
			URL:        strings.TrimSpace(firstNonEmpty(GetString("jira.url"), os.Getenv("JIRA_URL"))),
			Email:      strings.TrimSpace(firstNonEmpty(GetString("jira.email"), GetString("jira.username"), os.Getenv("JIRA_EMAIL"), os.Getenv("JIRA_USERNAME"))),
			APIToken:   firstNonEmpty(GetString("jira.api_token"), os.Getenv("JIRA_API_TOKEN")),
			MaxRetries: GetInt("jira.max_retries"),
			Timeout:    GetDuration("jira.timeout"),
		}
	}

	if err := getValidator().Struct(cfg); err != nil {
		return nil, describeValidation(err, cfg)
	}
	return cfg, nil
}

func issueList() []string {
	if !IsSet("issues") {
		return nil
	}
	if keys := GetStringList("issues"); keys != nil {
		return keys
	}
	return []string{}
}

// parseDelimiter accepts a single character, or the names "tab" and "\t".
func parseDelimiter(s string) (rune, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("invalid --delimiter %q: must be a single character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	if r == '\n' || r == '\r' || r == '"' {
		return 0, fmt.Errorf("invalid --delimiter %q", s)
	}
	return r, nil
}

// describeValidation turns validator errors into messages naming the flag
// the user should fix.
func describeValidation(err error, cfg *RunConfig) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := flagNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", name))
		case "issuekey":
			msgs = append(msgs, types.ValidateParentKey(cfg.ParentKey).Error())
		case "http_url":
			msgs = append(msgs, fmt.Sprintf("%s must be an http(s) URL, got %q", name, fe.Value()))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be an email address, got %q", name, fe.Value()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", name, strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid (%s=%s)", name, fe.Tag(), fe.Param()))
		}
	}
	return &ValidationError{Problems: msgs}
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return "invalid configuration:\n  " + strings.Join(e.Problems, "\n  ")
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s != "" {
			return s
		}
	}
	return ""
}
