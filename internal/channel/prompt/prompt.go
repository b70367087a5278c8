// Package prompt implements the blocking local approval prompt. It is the
// only channel whose Notify waits for the user's answer in place.
package prompt

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
	"golang.org/x/term"
)

// Adapter prompts on the controlling terminal for a y/n answer.
type Adapter struct {
	in  io.Reader
	out io.Writer
}

// New creates a prompt adapter bound to stdin/stderr. Output goes to stderr
// so a middleware using stdout as a protocol stream is not disturbed.
func New() *Adapter {
	return &Adapter{in: os.Stdin, out: os.Stderr}
}

func (a *Adapter) Name() string { return "prompt" }

// Available reports whether stdin is an interactive terminal. A middleware
// speaking a protocol over stdio cannot prompt, which is exactly the case
// the file fallback exists for.
func Available() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Notify displays the request and blocks until the user answers or ctx is
// cancelled because another channel already resolved the request.
func (a *Adapter) Notify(ctx context.Context, req approval.Request) (*approval.Decision, error) {
	argsText := ""
	if len(req.Args) > 0 {
		if encoded, err := json.MarshalIndent(req.Args, "", "  "); err == nil {
			argsText = string(encoded)
		}
	}

	fmt.Fprintf(a.out, "\nApproval required: %s\n", req.ToolName)
	fmt.Fprintf(a.out, "  %s\n", req.Preview)
	if argsText != "" {
		fmt.Fprintf(a.out, "  Arguments:\n%s\n", indent(argsText, "    "))
	}
	fmt.Fprintf(a.out, "Approve? [y/N]: ")

	answers := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(a.in)
		if scanner.Scan() {
			answers <- strings.TrimSpace(strings.ToLower(scanner.Text()))
			return
		}
		answers <- ""
	}()

	select {
	case <-ctx.Done():
		// Another channel won; close the prompt without an error.
		fmt.Fprintln(a.out, "\n(resolved elsewhere)")
		return nil, nil
	case answer := <-answers:
		approved := answer == "y" || answer == "yes"
		return &approval.Decision{
			ID:        req.ID,
			Approved:  approved,
			Channel:   a.Name(),
			DecidedAt: time.Now().UTC(),
		}, nil
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
