// Package interactive prompts the operator for confirmation before
// destructive steps.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks yes/no questions.
type Prompter struct {
	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter on stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:      in,
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// Confirm asks question and returns true for an explicit yes. EOF and empty
// input count as no.
func (p *Prompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)

	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read response: %w", err)
		}
		// EOF: treat as decline
		fmt.Fprintln(p.out)
		return false, nil
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// IsTerminal reports whether stdin is attached to a terminal. Non-interactive
// callers must pass an explicit force flag instead of being prompted.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}
