package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// resetGlobals points the package at a temp log directory and restores the
// original state when the test ends.
func resetGlobals(t *testing.T) {
	t.Helper()

	origLogDir := logDir
	origInitErr := initErr
	origInitOnce := initOnce
	origSessionID := sessionID
	origSessionIDOnce := sessionIDOnce

	logDir = t.TempDir()
	initErr = nil
	initOnce = sync.Once{}
	sessionID = ""
	sessionIDOnce = sync.Once{}

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = origInitOnce
		sessionID = origSessionID
		sessionIDOnce = origSessionIDOnce
	})
}

func TestNewLogger(t *testing.T) {
	resetGlobals(t)

	logger, err := NewLogger("memory")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if logger.SessionID() == "" {
		t.Error("expected non-empty session ID")
	}
	if _, err := os.Stat(logger.LogPath()); err != nil {
		t.Errorf("log file missing at %s: %v", logger.LogPath(), err)
	}
	if !strings.HasSuffix(filepath.Base(logger.LogPath()), "-mimi.log") {
		t.Errorf("unexpected log file name %q", logger.LogPath())
	}
}

func TestLevelFormatting(t *testing.T) {
	resetGlobals(t)

	logger, err := NewLogger("vault")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Debugf("debug %d", 1)
	logger.Infof("info")
	logger.Warnf("warn")
	logger.Errorf("error")

	content, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	for _, want := range []string{
		"[vault] [DEBUG] debug 1",
		"[vault] [INFO] info",
		"[vault] [WARN] warn",
		"[vault] [ERROR] error",
	} {
		if !strings.Contains(string(content), want) {
			t.Errorf("log missing %q\ncontent:\n%s", want, content)
		}
	}
}

func TestComponentsShareSessionFile(t *testing.T) {
	resetGlobals(t)

	l1, err := NewLogger("memory")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l1.Close()
	l2, err := NewLogger("synthesis")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer l2.Close()

	if l1.SessionID() != l2.SessionID() {
		t.Errorf("expected shared session ID, got %q and %q", l1.SessionID(), l2.SessionID())
	}
	if l1.LogPath() != l2.LogPath() {
		t.Errorf("expected shared log path, got %q and %q", l1.LogPath(), l2.LogPath())
	}

	l1.Infof("from memory")
	l2.Infof("from synthesis")

	content, err := os.ReadFile(l1.LogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(content), "[memory]") || !strings.Contains(string(content), "[synthesis]") {
		t.Errorf("expected entries from both components, got:\n%s", content)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	resetGlobals(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("first close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}
