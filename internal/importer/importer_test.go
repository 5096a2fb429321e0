package importer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jparent/internal/types"
)

func strPtr(s string) *string { return &s }

func TestParse_FullExport(t *testing.T) {
	csv := strings.Join([]string{
		"Summary,Issue key,Issue id,Parent,Parent key",
		"Login page,PROJ-1,10001,20009,PROJ-9",
		"Signup page,PROJ-2,10002,,",
		"Reset password,PROJ-3,10003,20005,PROJ-5",
	}, "\n")

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	want := []types.IssueRecord{
		{Key: "PROJ-1", ID: "10001", ParentRef: strPtr("20009"), ParentKey: strPtr("PROJ-9")},
		{Key: "PROJ-2", ID: "10002", ParentRef: strPtr(""), ParentKey: strPtr("")},
		{Key: "PROJ-3", ID: "10003", ParentRef: strPtr("20005"), ParentKey: strPtr("PROJ-5")},
	}
	if diff := cmp.Diff(want, res.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Columns{Key: 1, ID: 2, Parent: 3, ParentKey: 4}, res.Columns)
}

func TestParse_OptionalColumnsAbsent(t *testing.T) {
	csv := "Issue id,Issue key\n10001,PROJ-1\n"

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, "PROJ-1", rec.Key)
	assert.Equal(t, "10001", rec.ID)
	assert.Nil(t, rec.ParentRef, "absent column must be nil, not empty")
	assert.Nil(t, rec.ParentKey, "absent column must be nil, not empty")
}

func TestParse_ShortRowOptionalColumnIsAbsent(t *testing.T) {
	// Parent key is column 3 but the row stops after column 1.
	csv := "Issue key,Issue id,Parent,Parent key\nPROJ-1,10001\n"

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Nil(t, res.Records[0].ParentRef)
	assert.Nil(t, res.Records[0].ParentKey)
}

func TestParse_MalformedRowDroppedInOrder(t *testing.T) {
	csv := strings.Join([]string{
		"Summary,Issue key,Issue id,Parent key",
		"First,PROJ-1,10001,PROJ-9",
		"Broken,PROJ-2",
		"Third,PROJ-3,10003,",
	}, "\n")

	var seen []RowWarning
	res, err := Parse(strings.NewReader(csv), Options{OnWarning: func(w RowWarning) { seen = append(seen, w) }})
	require.NoError(t, err)

	keys := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		keys = append(keys, r.Key)
	}
	assert.Equal(t, []string{"PROJ-1", "PROJ-3"}, keys)

	want := []RowWarning{{Row: 3, Reason: ReasonMalformed}}
	assert.Equal(t, want, res.Warnings)
	assert.Equal(t, want, seen, "OnWarning should see the same warnings")
}

func TestParse_MissingKeyOrID(t *testing.T) {
	csv := strings.Join([]string{
		"Issue key,Issue id",
		" ,10001",
		"PROJ-2,   ",
		"PROJ-3,10003",
	}, "\n")

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "PROJ-3", res.Records[0].Key)
	assert.Equal(t, []RowWarning{
		{Row: 2, Reason: ReasonMissingKeyOrID},
		{Row: 3, Reason: ReasonMissingKeyOrID},
	}, res.Warnings)
}

func TestParse_BlankLinesNotCounted(t *testing.T) {
	csv := "Issue key,Issue id\n\n   \nPROJ-1\nPROJ-2,10002\n\n"

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	// Blank lines are discarded before numbering, so the short row is row 2.
	assert.Equal(t, []RowWarning{{Row: 2, Reason: ReasonMalformed}}, res.Warnings)
}

func TestParse_CRLFAndBOM(t *testing.T) {
	csv := "\uFEFFIssue key,Issue id,Parent key\r\nPROJ-1,10001,PROJ-9\r\nPROJ-2,10002,\r\n"

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 0, res.Columns.Key, "BOM must not hide the first header label")
	assert.Equal(t, "PROJ-9", *res.Records[0].ParentKey)
	assert.Equal(t, "", *res.Records[1].ParentKey, "trailing \\r must be trimmed")
}

func TestParse_CustomDelimiter(t *testing.T) {
	csv := "Issue key;Issue id;Parent key\nPROJ-1;10001;PROJ-9\n"

	res, err := Parse(strings.NewReader(csv), Options{Delimiter: ';'})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "PROJ-9", *res.Records[0].ParentKey)
}

func TestParse_QuotedDelimiterIsNotUnderstood(t *testing.T) {
	// A quoted comma shifts the columns: the key lands in the "Issue id" slot.
	csv := "Summary,Issue key,Issue id\n\"Fix, then ship\",PROJ-1,10001\n"

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "then ship\"", res.Records[0].Key)
	assert.Equal(t, "PROJ-1", res.Records[0].ID)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"empty", ""},
		{"header only", "Issue key,Issue id\n"},
		{"header and blank lines", "Issue key,Issue id\n\n  \n"},
		{"missing key column", "Key,Issue id\nPROJ-1,10001\n"},
		{"missing id column", "Issue key,Id\nPROJ-1,10001\n"},
		{"label case matters", "issue key,issue id\nPROJ-1,10001\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Parse(strings.NewReader(tt.csv), Options{})
			require.Error(t, err)
			assert.Nil(t, res)

			var schemaErr *SchemaError
			assert.True(t, errors.As(err, &schemaErr), "expected *SchemaError, got %T", err)
		})
	}
}

func TestParse_FirstDuplicateHeaderWins(t *testing.T) {
	csv := "Issue key,Issue id,Parent key,Parent key\nPROJ-1,10001,PROJ-9,PROJ-8\n"

	res, err := Parse(strings.NewReader(csv), Options{})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-9", *res.Records[0].ParentKey)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(path, []byte("Issue key,Issue id\nPROJ-1,10001\n"), 0600))

	res, err := ParseFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	_, err = ParseFile(filepath.Join(dir, "missing.csv"), Options{})
	assert.Error(t, err)
}

func TestFilterKeys(t *testing.T) {
	records := []types.IssueRecord{
		{Key: "PROJ-1", ID: "1"},
		{Key: "PROJ-2", ID: "2"},
		{Key: "PROJ-3", ID: "3"},
	}

	t.Run("nil selects all", func(t *testing.T) {
		assert.Equal(t, records, FilterKeys(records, nil))
	})

	t.Run("empty list selects nothing", func(t *testing.T) {
		assert.Empty(t, FilterKeys(records, []string{}))
	})

	t.Run("keeps input order", func(t *testing.T) {
		got := FilterKeys(records, []string{"PROJ-3", "PROJ-1"})
		assert.Equal(t, []types.IssueRecord{records[0], records[2]}, got)
	})

	t.Run("unknown keys select nothing", func(t *testing.T) {
		assert.Empty(t, FilterKeys(records, []string{"OTHER-1"}))
	})
}
