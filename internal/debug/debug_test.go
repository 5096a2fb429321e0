package debug

import (
	"bytes"
	"testing"
)

func capture(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var out, errOut bytes.Buffer
	SetOutput(&out, &errOut)
	oldVerbose, oldQuiet, oldEnabled := verboseMode, quietMode, enabled
	t.Cleanup(func() {
		SetOutput(nil, nil)
		verboseMode, quietMode, enabled = oldVerbose, oldQuiet, oldEnabled
	})
	return &out, &errOut
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name    string
		env     bool
		verbose bool
		want    bool
	}{
		{"env set", true, false, true},
		{"verbose flag", false, true, true},
		{"both off", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			enabled = tt.env
			SetVerbose(tt.verbose)

			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogf(t *testing.T) {
	out, errOut := capture(t)
	enabled = false

	Logf("hidden %d\n", 1)
	if errOut.Len() != 0 {
		t.Errorf("Logf wrote %q while disabled", errOut.String())
	}

	SetVerbose(true)
	Logf("shown %d\n", 2)
	if got := errOut.String(); got != "shown 2\n" {
		t.Errorf("Logf output = %q, want %q", got, "shown 2\n")
	}
	if out.Len() != 0 {
		t.Errorf("Logf wrote to stdout: %q", out.String())
	}
}

func TestPrintNormalRespectsQuiet(t *testing.T) {
	out, _ := capture(t)

	PrintNormal("Found %d issues\n", 3)
	PrintlnNormal("Processing", "PROJ-1")
	SetQuiet(true)
	if !IsQuiet() {
		t.Fatal("IsQuiet() = false after SetQuiet(true)")
	}
	PrintNormal("suppressed\n")
	PrintlnNormal("suppressed")

	want := "Found 3 issues\nProcessing PROJ-1\n"
	if got := out.String(); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestWarnfIgnoresQuiet(t *testing.T) {
	_, errOut := capture(t)
	SetQuiet(true)

	Warnf("Skipping row %d - missing key or id", 4)
	if got := errOut.String(); got != "Warning: Skipping row 4 - missing key or id\n" {
		t.Errorf("Warnf output = %q", got)
	}
}
