// Package testutil provides project fixtures and output assertions for CLI
// tests.
package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite" // register the sqlite driver
)

// Project is a temporary project directory with a SQLite target.
type Project struct {
	Dir        string
	ConfigPath string
	DBPath     string
	StatePath  string
}

// SetupSQLiteProject creates a project whose default target is a SQLite
// database initialized with ddl. The journal lives under the project.
func SetupSQLiteProject(t *testing.T, ddl ...string) *Project {
	t.Helper()

	dir := t.TempDir()
	p := &Project{
		Dir:        dir,
		ConfigPath: filepath.Join(dir, "leapupsert.yaml"),
		DBPath:     filepath.Join(dir, "target.db"),
		StatePath:  filepath.Join(dir, ".leapupsert", "state.db"),
	}

	db, err := sql.Open("sqlite", p.DBPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	for _, stmt := range ddl {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "ddl: %s", stmt)
	}

	WriteConfig(t, p.ConfigPath, fmt.Sprintf(`state_path: %s
target:
  type: sqlite
  database: target.db
`, p.StatePath))
	return p
}

// WriteConfig writes a config file, creating its directory.
func WriteConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown performs basic markdown validation.
// It checks for unclosed code fences and basic structure.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	// Check for balanced code fences
	fenceCount := strings.Count(md, "```")
	if fenceCount%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", fenceCount)
	}

	// Check that headers have content
	lines := strings.Split(md, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}
