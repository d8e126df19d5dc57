package mcp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/cogmap/internal/config"
	"github.com/nvandessel/cogmap/internal/store"
)

const ringDoc = `
maps:
  - name: ring4
    concepts:
      - name: c1
        activator: {type: signum}
        output: 666
        fixed: true
      - name: c2
        activator: {type: signum}
        output: 0
      - name: c3
        activator: {type: signum}
        output: 0
      - name: c4
        activator: {type: signum}
        output: 0
    connections:
      - {name: "1-2", from: c1, to: c2, weight: -0.8}
      - {name: "2-3", from: c2, to: c3, weight: 1}
      - {name: "3-4", from: c3, to: c4, weight: 0.9}
      - {name: "4-1", from: c4, to: c1, weight: 1}
  - name: pair
    concepts:
      - name: a
        output: 1
        fixed: true
      - name: b
        activator: {type: tanh, include_previous: false}
        output: 0
    connections:
      - {name: ab, from: a, to: b, weight: 0.5}
`

// isolateHome sets HOME to a temp directory to avoid touching the real
// ~/.cogmap/.
func isolateHome(t *testing.T, tmpDir string) string {
	t.Helper()
	tmpHome := filepath.Join(tmpDir, "home")
	if err := os.MkdirAll(tmpHome, 0755); err != nil {
		t.Fatalf("Failed to create temp home: %v", err)
	}
	t.Setenv("HOME", tmpHome)
	return tmpHome
}

// writeMapFile writes content to root/name.
func writeMapFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create map dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write map file: %v", err)
	}
}

// setupTestServer returns a server over a temp project root holding
// maps.yaml, with an in-memory run store.
func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)
	root := filepath.Join(tmpDir, "project")
	writeMapFile(t, root, "maps.yaml", ringDoc)

	server, err := NewServer(&Config{
		Name:    "test-server",
		Version: "v1.0.0",
		Root:    root,
		Store:   store.NewInMemoryRunStore(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, root
}

func TestNewServer(t *testing.T) {
	server, root := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.root != root {
		t.Errorf("Server.root = %q, want %q", server.root, root)
	}
	if server.simulation != config.Default().Simulation {
		t.Errorf("Server.simulation = %+v, want defaults", server.simulation)
	}
	if server.metrics != nil {
		t.Error("metrics should be disabled without a registerer")
	}
}

func TestNewServer_RequiresRoot(t *testing.T) {
	if _, err := NewServer(&Config{Name: "test-server"}); err == nil {
		t.Error("NewServer without root should fail")
	}
}

func TestNewServer_KeepsSimulationConfig(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	sim := config.SimulationConfig{MaxDelta: 0.5, MaxEpochs: 7}
	server, err := NewServer(&Config{Name: "test-server", Root: tmpDir, Simulation: sim})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.simulation != sim {
		t.Errorf("Server.simulation = %+v, want %+v", server.simulation, sim)
	}
}

func TestNewServer_HasRateLimiters(t *testing.T) {
	server, _ := setupTestServer(t)

	for _, tool := range []string{"cogmap_run", "cogmap_converge", "cogmap_graph", "cogmap_validate", "cogmap_history"} {
		if _, ok := server.toolLimiters[tool]; !ok {
			t.Errorf("missing rate limiter for %s", tool)
		}
	}
	if server.epochBudget == nil {
		t.Error("epoch budget is nil")
	}
}

func TestNewServer_CreatesAuditLogs(t *testing.T) {
	server, root := setupTestServer(t)

	if server.auditLogger == nil {
		t.Fatal("expected auditLogger to be initialized")
	}
	if _, err := os.Stat(filepath.Join(root, ".cogmap", "audit.jsonl")); err != nil {
		t.Errorf("local audit log not created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(os.Getenv("HOME"), ".cogmap", "audit.jsonl")); err != nil {
		t.Errorf("global audit log not created: %v", err)
	}
}

func TestClose(t *testing.T) {
	server, _ := setupTestServer(t)

	if err := server.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	server, _ := setupTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Stdio does not work under test; this only checks that Run returns.
	err := server.Run(ctx)
	if err == nil {
		t.Log("Run returned nil (expected in test environment)")
	}
}
