package ui

import (
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls how ToPager displays a plan.
type PagerOptions struct {
	// NoPager prints directly (--no-pager, or no-pager in config).
	NoPager bool
	// Command is the pager command line from config ("pager" key). Empty
	// falls back to $PAGER, then less.
	Command string
}

// ToPager writes content to out. When out is a terminal and content is
// taller than it, the content is piped through the pager instead.
func ToPager(out io.Writer, content string, opts PagerOptions) error {
	f, ok := out.(*os.File)
	if opts.NoPager || !ok || !term.IsTerminal(int(f.Fd())) || fitsTerminal(f, content) {
		_, err := io.WriteString(out, content)
		return err
	}

	parts := strings.Fields(pagerCommand(opts.Command))
	cmd := exec.Command(parts[0], parts[1:]...) // #nosec G204 - pager command is user-configured
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = f
	cmd.Stderr = os.Stderr

	// -R keeps colors, -F quits when the plan fits, -X leaves it on screen.
	cmd.Env = os.Environ()
	if os.Getenv("LESS") == "" {
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	return cmd.Run()
}

func pagerCommand(configured string) string {
	for _, c := range []string{configured, os.Getenv("PAGER")} {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return "less"
}

func fitsTerminal(f *os.File, content string) bool {
	_, height, err := term.GetSize(int(f.Fd()))
	if err != nil || height <= 0 {
		return true
	}
	return lineCount(content) < height
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(content, "\n"), "\n") + 1
}
