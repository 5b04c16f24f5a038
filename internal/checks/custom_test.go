package checks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCustomMissingDir(t *testing.T) {
	set, err := LoadCustom(filepath.Join(t.TempDir(), "absent"), time.Hour)
	if err != nil || set != nil {
		t.Errorf("Missing dir should be empty and quiet, got %v / %v", set, err)
	}
}

func TestLoadCustomRunsScript(t *testing.T) {
	dir := t.TempDir()
	script := `
import "strings"

func Run() (bool, string) {
	msg := strings.ToUpper("disk almost full")
	return true, msg
}
`
	if err := os.WriteFile(filepath.Join(dir, "disk.go"), []byte(script), 0o644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	set, err := LoadCustom(dir, time.Hour)
	if err != nil {
		t.Fatalf("LoadCustom failed: %v", err)
	}
	if len(set) != 1 || set[0].Name != "custom_disk" {
		t.Fatalf("Unexpected set: %+v", set)
	}

	res, err := set[0].Run(context.Background(), Deps{})
	if err != nil {
		t.Fatalf("Script run failed: %v", err)
	}
	if !res.Triggered || res.Message != "DISK ALMOST FULL" {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestLoadCustomBadScript(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.go"), []byte("func Run() {"), 0o644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	set, err := LoadCustom(dir, time.Hour)
	if err != nil {
		t.Fatalf("LoadCustom failed: %v", err)
	}
	if _, err := set[0].Run(context.Background(), Deps{}); err == nil {
		t.Error("Broken script must surface an error")
	}
}

func TestLoadCustomWrongSignature(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "wrong.go"), []byte("func Run() int { return 1 }"), 0o644); err != nil {
		t.Fatalf("Failed to write script: %v", err)
	}

	set, err := LoadCustom(dir, time.Hour)
	if err != nil {
		t.Fatalf("LoadCustom failed: %v", err)
	}
	if _, err := set[0].Run(context.Background(), Deps{}); err == nil {
		t.Error("Wrong signature must surface an error")
	}
}
