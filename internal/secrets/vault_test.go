package secrets_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/flourisha/brain/internal/secrets"
)

func TestNewVault_LoaderError(t *testing.T) {
	_, err := secrets.NewVault(func() (map[string]string, error) {
		return nil, errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error from failing loader")
	}
}

func TestVault_ReloadSwapsValues(t *testing.T) {
	key := "first"
	v, err := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"FLOURISHA_JWT_SECRET": key}, nil
	})
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	src := v.Source("FLOURISHA_JWT_SECRET")
	if got := src(); got != "first" {
		t.Fatalf("before reload: %q", got)
	}

	key = "second"
	if err := v.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got := src(); got != "second" {
		t.Errorf("after reload: %q", got)
	}
	if got := v.Get("MISSING"); got != "" {
		t.Errorf("missing key: %q", got)
	}
}

func TestVault_ReloadErrorKeepsValues(t *testing.T) {
	fail := false
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		if fail {
			return nil, errors.New("source down")
		}
		return map[string]string{"K": "v1"}, nil
	})
	fail = true
	if err := v.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := v.Get("K"); got != "v1" {
		t.Errorf("expected previous value, got %q", got)
	}
}

func TestVault_ConcurrentAccess(t *testing.T) {
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		return map[string]string{"K": "v"}, nil
	})
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() { defer wg.Done(); _ = v.Get("K") }()
		go func() { defer wg.Done(); _ = v.Reload() }()
	}
	wg.Wait()
}

func TestLoaders(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "FLOURISHA_MCP_API_KEY"), []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FLOURISHA_JWT_SECRET", "from-env")
	t.Setenv("FLOURISHA_MCP_API_KEY", "env-key")

	loader := secrets.Chain(
		secrets.EnvLoader("FLOURISHA_JWT_SECRET", "FLOURISHA_MCP_API_KEY", "UNSET_KEY"),
		secrets.DirLoader(dir, "FLOURISHA_JWT_SECRET", "FLOURISHA_MCP_API_KEY"),
	)
	got, err := loader()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := map[string]string{
		"FLOURISHA_JWT_SECRET":  "from-env",
		"FLOURISHA_MCP_API_KEY": "from-file",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loaded secrets (-want +got):\n%s", diff)
	}
}

func TestDirLoader_NoDir(t *testing.T) {
	got, err := secrets.DirLoader("", "K")()
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}
