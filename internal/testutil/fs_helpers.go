package testutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

// validateRelativePath rejects names that would land outside dir.
func validateRelativePath(dir, name string) error {
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("not a relative path: %s", name)
	}
	if !filepath.IsLocal(name) {
		return fmt.Errorf("path escapes directory: %s", name)
	}
	return nil
}

// WriteFile writes content to dir/name, creating parent directories, and
// returns the full path. name must stay inside dir.
func WriteFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	if err := validateRelativePath(dir, name); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	path := filepath.Join(dir, name)
	MustNoErr(t, os.MkdirAll(filepath.Dir(path), 0755), "create dir")
	MustNoErr(t, os.WriteFile(path, content, 0600), "write file")
	return path
}

// WriteConfig writes a config.toml pointing the console at backendURL and
// returns its path. Extra lines are appended verbatim.
func WriteConfig(t *testing.T, dir, backendURL string, extra ...string) string {
	t.Helper()
	content := fmt.Sprintf("[remote]\nurl = %q\n", backendURL)
	for _, line := range extra {
		content += line + "\n"
	}
	return WriteFile(t, dir, "config.toml", []byte(content))
}

// ReadFile reads a file and fails the test on error.
func ReadFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	MustNoErr(t, err, "read "+path)
	return data
}

// AssertFileContent asserts the file at path holds exactly want.
func AssertFileContent(t *testing.T, path, want string) {
	t.Helper()
	if got := string(ReadFile(t, path)); got != want {
		t.Errorf("%s content = %q, want %q", filepath.Base(path), got, want)
	}
}

// MustExist fails the test if path cannot be stat'ed.
func MustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected %s to exist: %v", path, err)
	}
}

// MustNotExist fails the test if path exists.
func MustNotExist(t *testing.T, path string) {
	t.Helper()
	_, err := os.Lstat(path)
	switch {
	case err == nil:
		t.Fatalf("expected %s to not exist", path)
	case !errors.Is(err, fs.ErrNotExist):
		t.Fatalf("stat %s: %v", path, err)
	}
}
