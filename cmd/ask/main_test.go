package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetQuestionFromStdin(t *testing.T) {
	got, err := getQuestion("ignored", true, strings.NewReader("line one\nline two\n\n"))
	if err != nil {
		t.Fatalf("getQuestion: %v", err)
	}
	if got != "line one\nline two" {
		t.Fatalf("unexpected question %q", got)
	}
	if got, _ := getQuestion("from flag", false, nil); got != "from flag" {
		t.Fatalf("flag question not used: %q", got)
	}
}

func TestLoadImage(t *testing.T) {
	if img, err := loadImage("", 0); img != nil || err != nil {
		t.Fatalf("empty path should mean no attachment, got (%v, %v)", img, err)
	}
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadImage(path, 0); err == nil {
		t.Fatal("expected a text file to be rejected")
	}
}
