package commands

import (
	"os"
	"strings"
	"testing"

	"github.com/MEKXH/citegate/internal/config"
)

func TestInit_CreatesConfigAndMailbox(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)

	output := captureOutput(t, func() {
		if err := runInit(nil, nil); err != nil {
			t.Fatalf("runInit: %v", err)
		}
	})
	if !strings.Contains(output, "Citegate initialized!") {
		t.Fatalf("expected init banner, got: %s", output)
	}

	if _, err := os.Stat(config.ConfigPath()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	if info, err := os.Stat(cfg.MailboxPath()); err != nil || !info.IsDir() {
		t.Fatalf("mailbox dir not created: %v", err)
	}
}

func TestInit_SecondRunIsNoop(t *testing.T) {
	prepareWorkspace(t)

	output := captureOutput(t, func() {
		if err := runInit(nil, nil); err != nil {
			t.Fatalf("second runInit: %v", err)
		}
	})
	if !strings.Contains(output, "Config already exists") {
		t.Fatalf("expected already-exists message, got: %s", output)
	}
}
