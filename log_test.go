package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger(t *testing.T) *logrus.Logger {
	t.Helper()
	l, err := newLogger("", false, "error")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l
}

func TestNewLogger_Level(t *testing.T) {
	cases := map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"warn":  logrus.WarnLevel,
		"":      logrus.InfoLevel,
		"loud":  logrus.InfoLevel,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			l, err := newLogger("", false, name)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l.GetLevel() != want {
				t.Errorf("level = %s, want %s", l.GetLevel(), want)
			}
		})
	}
}

func TestNewLogger_File(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")
	l, err := newLogger(dir, false, "info")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.WithField("session", "s1").Info("session ready")

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+".log"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "session ready") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestNewLogger_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := newLogger(file, false, "info"); err == nil {
		t.Fatal("expected error when log dir is a file")
	}
}
