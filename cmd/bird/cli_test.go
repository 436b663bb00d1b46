package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/zheli/bird/internal/config"
)

// captureStdout runs fn with os.Stdout redirected and returns what it wrote.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	_ = w.Close()

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestAppHasAllCommands(t *testing.T) {
	app := newCLIApp(config.DefaultConfig())
	want := []string{
		"whoami", "read", "thread", "replies", "search", "tweets", "mentions",
		"likes", "bookmarks", "following", "followers", "lists", "list-timeline",
		"post", "delete", "refresh-ids",
	}
	have := map[string]bool{}
	for _, cmd := range app.Commands {
		have[cmd.Name] = true
	}
	for _, name := range want {
		if !have[name] {
			t.Errorf("missing command %q", name)
		}
	}
}

func TestOutputJSONShape(t *testing.T) {
	out := captureStdout(t, func() {
		_ = outputJSON(map[string]any{"deleted": "123"})
	})

	var decoded map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["success"] != true {
		t.Errorf("success = %v, want true", decoded["success"])
	}
	if decoded["deleted"] != "123" {
		t.Errorf("deleted = %v", decoded["deleted"])
	}
}

func TestOutputErrorShape(t *testing.T) {
	out := captureStdout(t, func() {
		_ = outputError(os.ErrNotExist)
	})

	var decoded struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded.Success {
		t.Error("success must be false on error")
	}
	if decoded.Error == "" {
		t.Error("error message must be populated")
	}
}

func TestMediaContentType(t *testing.T) {
	cases := map[string]string{
		"photo.png":  "image/png",
		"anim.gif":   "image/gif",
		"pic.webp":   "image/webp",
		"clip.mp4":   "video/mp4",
		"photo.jpg":  "image/jpeg",
		"photo.jpeg": "image/jpeg",
	}
	for path, want := range cases {
		if got := mediaContentType(path); got != want {
			t.Errorf("mediaContentType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestCommandsRequireArguments(t *testing.T) {
	app := newCLIApp(config.DefaultConfig())
	for _, args := range [][]string{
		{"bird", "read"},
		{"bird", "thread"},
		{"bird", "delete"},
	} {
		out := captureStdout(t, func() {
			_ = app.Run(args)
		})
		if !strings.Contains(out, `"success": false`) {
			t.Errorf("%v: expected failure envelope, got %q", args, out)
		}
	}
}
