package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestMigrationFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "002_b.down.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	up, down, err := migrationFiles(dir)
	if err != nil {
		t.Fatal(err)
	}
	wantUp := []string{filepath.Join(dir, "001_a.sql"), filepath.Join(dir, "002_b.sql")}
	if !slices.Equal(up, wantUp) {
		t.Errorf("up = %v, want %v", up, wantUp)
	}
	if len(down) != 1 || filepath.Base(down[0]) != "002_b.down.sql" {
		t.Errorf("down = %v", down)
	}
}
