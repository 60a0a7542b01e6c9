package cli

import (
	"testing"
)

func TestNewPushCmd(t *testing.T) {
	cmd := newPushCmd()

	if cmd.Use != "push <dir> <repo:tag>" {
		t.Errorf("expected use 'push <dir> <repo:tag>', got '%s'", cmd.Use)
	}

	if cmd.Flags().Lookup("yes") == nil {
		t.Error("expected --yes flag")
	}

	if err := cmd.Args(cmd, []string{"./build"}); err == nil {
		t.Error("expected an error for a single argument")
	}
	if err := cmd.Args(cmd, []string{"./build", "ghcr.io/org/app:v1"}); err != nil {
		t.Errorf("unexpected error for two arguments: %v", err)
	}
}
