package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestBuildSnapshotVersionPath(t *testing.T) {
	key, err := BuildSnapshotVersionPath("mysql|app@db/shop", "0190c8a2-7c4e-7b7e-9a51-3b1f0e2f4d11")
	if err != nil {
		t.Fatalf("BuildSnapshotVersionPath() error = %v", err)
	}
	want := "snapshots/" + SessionDirectory("mysql|app@db/shop") + "/0190c8a2-7c4e-7b7e-9a51-3b1f0e2f4d11.parquet"
	if key != want {
		t.Fatalf("BuildSnapshotVersionPath() = %q, want %q", key, want)
	}
	if !strings.HasPrefix(key, SnapshotPrefix("mysql|app@db/shop")) {
		t.Fatalf("key %q outside prefix %q", key, SnapshotPrefix("mysql|app@db/shop"))
	}
}

func TestSessionDirectoryHidesSessionKey(t *testing.T) {
	dir := SessionDirectory("mysql|app@db.internal/shop")
	if len(dir) != 64 || strings.Contains(dir, "app") {
		t.Fatalf("SessionDirectory() = %q", dir)
	}
	if dir == SessionDirectory("mysql|app@db.internal/other") {
		t.Fatal("different sessions share a directory")
	}
}

func TestLatestSnapshotPath(t *testing.T) {
	key := BuildLatestSnapshotPath("k")
	if !IsLatestSnapshotPath(key) || !strings.HasSuffix(key, "/latest.parquet") {
		t.Fatalf("BuildLatestSnapshotPath() = %q", key)
	}
}

func TestBuildPathRejectsInvalidComponent(t *testing.T) {
	if _, err := BuildSnapshotVersionPath("k", "../oops"); !errors.Is(err, ErrInvalidKey) {
		t.Fatal("expected invalid component error")
	}
}
