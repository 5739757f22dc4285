//go:build integration
// +build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

func restartRecipeBox(t *testing.T, ctx context.Context) {
	t.Helper()

	cmd := exec.CommandContext(ctx, "docker", "compose", "restart", getenv("E2E_SERVICE", "recipebox"))
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose restart failed: %v\n%s", err, string(out))
	}
}
