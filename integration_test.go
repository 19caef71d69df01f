//go:build integration

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

const testConfig = `
resolver:
  backend: catalog
  catalog:
    - id: believe
      url: https://example.com/believe
      title: Believe
      artist: Cher
      length: 239
`

// buildBinary compiles the CLI into a temp dir and returns its path.
func buildBinary(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "partyline_test")
	buildCmd := exec.Command("go", "build", "-o", bin, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	return bin
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to reserve port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// startServer runs "serve" against a catalog config in an isolated HOME.
func startServer(t *testing.T) string {
	t.Helper()
	bin := buildBinary(t)

	home := t.TempDir()
	configDir := filepath.Join(home, ".config", "partyline")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(testConfig), 0644); err != nil {
		t.Fatal(err)
	}

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())

	cmd := exec.CommandContext(ctx, bin, "serve", "--addr", addr, "--log-level", "debug")
	cmd.Dir = home
	cmd.Env = append(os.Environ(),
		"HOME="+home,
		"PARTYLINE_CACHE_PATH="+filepath.Join(home, "tracks.db"),
	)
	if err := cmd.Start(); err != nil {
		cancel()
		t.Fatalf("Failed to start server: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("Server did not stop within 5 seconds")
		}
	})

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return addr
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("Server did not become healthy on %s", addr)
	return ""
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read event: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("Invalid event %s: %v", data, err)
	}
	return ev
}

// readUntil reads events until one of the given type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		if ev := readEvent(t, conn); ev["type"] == typ {
			return ev
		}
	}
	t.Fatalf("No %q event received", typ)
	return nil
}

// TestServeParty joins a guild, adds a catalog track and plays it
func TestServeParty(t *testing.T) {
	addr := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/?guild=integration", addr), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	users := readUntil(t, conn, "users")
	if users["count"] != float64(1) {
		t.Errorf("Expected 1 user, got %v", users["count"])
	}
	readUntil(t, conn, "state")

	if err := conn.WriteJSON(map[string]any{"action": "add", "videoId": "believe"}); err != nil {
		t.Fatal(err)
	}
	queue := readUntil(t, conn, "queue")
	if items, _ := queue["queue"].([]any); len(items) != 1 {
		t.Fatalf("Expected 1 queued track, got %v", queue["queue"])
	}

	if err := conn.WriteJSON(map[string]any{"action": "play"}); err != nil {
		t.Fatal(err)
	}
	for {
		state := readUntil(t, conn, "state")
		if state["playing"] == true {
			if state["length"] != float64(239) {
				t.Errorf("Expected length 239, got %v", state["length"])
			}
			break
		}
	}

	if err := conn.WriteJSON(map[string]any{"action": "add", "videoId": "missing"}); err != nil {
		t.Fatal(err)
	}
	if ev := readUntil(t, conn, "error"); ev["error"] != "NotFoundError" {
		t.Errorf("Expected NotFoundError, got %v", ev["error"])
	}
}

// TestServeMissingGuild checks connections without a guild are refused
func TestServeMissingGuild(t *testing.T) {
	addr := startServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(fmt.Sprintf("ws://%s/", addr), nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	ev := readEvent(t, conn)
	if ev["type"] != "error" || ev["error"] != "GuildError" {
		t.Errorf("Expected GuildError, got %v", ev)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("Expected policy violation close, got %v", err)
	}
}
