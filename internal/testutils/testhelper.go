package testutils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type TestHelper struct {
	T      *testing.T
	Logger *logrus.Logger
}

// NewTestHelper creates a test helper. Logs are discarded unless
// ANTSCOPE_TEST_LOG is set, in which case debug output goes to stderr.
func NewTestHelper(t *testing.T) *TestHelper {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	if os.Getenv("ANTSCOPE_TEST_LOG") == "" {
		logger.SetOutput(io.Discard)
	}
	return &TestHelper{
		T:      t,
		Logger: logger,
	}
}

// ProjectRoot walks up from the working directory to the directory holding go.mod.
func ProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// FixturePath resolves relPath against the project root.
func FixturePath(relPath string) (string, error) {
	root, err := ProjectRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, relPath), nil
}

// LoadFixture reads a file relative to the project root.
func LoadFixture(relPath string) ([]byte, error) {
	path, err := FixturePath(relPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return data, nil
}

// NonEmptyLines splits CLI output into lines, dropping blank ones.
func NonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}
