package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestNewCommand_Empty(t *testing.T) {
	c := NewCommand("")
	if _, ok := c.(Disabled); !ok {
		t.Errorf("empty command should yield Disabled, got %T", c)
	}
	if err := c.CaptureTo(context.Background(), "/tmp/x.png"); !errors.Is(err, ErrDisabled) {
		t.Errorf("error = %v, want ErrDisabled", err)
	}
}

func TestCommand_AppendsPath(t *testing.T) {
	// touch stands in for a capture tool: it creates its last argument.
	dir := t.TempDir()
	out := filepath.Join(dir, "shot.png")

	c := NewCommand("touch")
	if err := c.CaptureTo(context.Background(), out); err != nil {
		t.Fatalf("CaptureTo failed: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("capture output missing: %v", err)
	}
}

func TestCommand_Failure(t *testing.T) {
	c := NewCommand("false")
	if err := c.CaptureTo(context.Background(), "/tmp/x.png"); err == nil {
		t.Error("expected error from failing capture command")
	}
}
