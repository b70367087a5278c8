package prompt

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MEKXH/citegate/internal/approval"
)

func testRequest() approval.Request {
	return approval.Request{
		ID:       "abc123",
		ToolName: "delete_file",
		Preview:  "Delete README.md",
		Args:     map[string]any{"path": "README.md"},
	}
}

func TestNotify_Approve(t *testing.T) {
	var out bytes.Buffer
	a := &Adapter{in: strings.NewReader("y\n"), out: &out}

	d, err := a.Notify(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Notify error: %v", err)
	}
	if d == nil || !d.Approved {
		t.Fatalf("expected approved decision, got %+v", d)
	}
	if d.Channel != "prompt" {
		t.Fatalf("unexpected channel: %q", d.Channel)
	}
	if !strings.Contains(out.String(), "Delete README.md") {
		t.Fatalf("prompt output missing preview: %q", out.String())
	}
}

func TestNotify_RejectByDefault(t *testing.T) {
	for _, answer := range []string{"n\n", "\n", "banana\n"} {
		a := &Adapter{in: strings.NewReader(answer), out: io.Discard}
		d, err := a.Notify(context.Background(), testRequest())
		if err != nil {
			t.Fatalf("Notify error: %v", err)
		}
		if d == nil || d.Approved {
			t.Fatalf("answer %q: expected rejection, got %+v", answer, d)
		}
	}
}

func TestNotify_CancelledWithoutError(t *testing.T) {
	// A reader that never produces input.
	pr, pw := io.Pipe()
	defer pw.Close()
	a := &Adapter{in: pr, out: io.Discard}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	var d *approval.Decision
	var err error
	go func() {
		d, err = a.Notify(ctx, testRequest())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify did not honor cancellation")
	}
	if err != nil {
		t.Fatalf("cancelled prompt must not error, got %v", err)
	}
	if d != nil {
		t.Fatalf("cancelled prompt must not return a decision, got %+v", d)
	}
}
