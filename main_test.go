package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"yelp-pins/config"
)

func buildEnv(t *testing.T, dump string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PIPELINE_MODE", "build")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("RAW_DUMP_PATH", filepath.Join(dir, "data.txt"))
	t.Setenv("OUTPUT_PATH", filepath.Join(dir, "pins.json"))
	if dump != "" {
		if err := os.WriteFile(filepath.Join(dir, "data.txt"), []byte(dump), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunExitCodes(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		t.Setenv("PIPELINE_MODE", "everything")
		if code := run(); code != 1 {
			t.Errorf("exit code: got %d, want 1", code)
		}
	})

	t.Run("missing dump", func(t *testing.T) {
		buildEnv(t, "")
		if code := run(); code != 1 {
			t.Errorf("exit code: got %d, want 1", code)
		}
	})

	t.Run("empty build", func(t *testing.T) {
		dir := buildEnv(t, "no candidates\n")
		if code := run(); code != 0 {
			t.Fatalf("exit code: got %d, want 0", code)
		}
		data, err := os.ReadFile(filepath.Join(dir, "pins.json"))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "[]" {
			t.Errorf("output: got %q, want []", data)
		}
	})
}

func TestOpenPinStoreNone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	store, err := openPinStore(ctx, &config.Config{PinStore: config.StoreNone})
	if err != nil || store != nil {
		t.Errorf("got %v, %v; want nil store", store, err)
	}
}
