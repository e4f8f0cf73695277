package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapupsert/internal/cli/testutil"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"upsert", "describe", "dialects", "runs", "doctor", "version", "completion"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "target", "state", "verbose", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestDialectsListsEveryAdapter(t *testing.T) {
	stdout, _, err := run(t, "", "dialects", "-o", "json")
	require.NoError(t, err)

	var infos []struct {
		Name    string `json:"name"`
		Upsert  string `json:"upsert"`
		Adapter bool   `json:"adapter"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &infos))

	upserts := map[string]string{}
	adapters := map[string]bool{}
	for _, d := range infos {
		upserts[d.Name] = d.Upsert
		adapters[d.Name] = d.Adapter
	}
	assert.Equal(t, "on-duplicate-key", upserts["mysql"])
	assert.Equal(t, "on-conflict", upserts["postgres"])
	assert.Equal(t, "probe", upserts["oracle"])
	assert.Equal(t, "probe", upserts["sqlserver"])
	assert.Equal(t, "probe", upserts["ansi"])
	for _, name := range []string{"mysql", "postgres", "sqlite", "oracle", "sqlserver", "snowflake", "duckdb"} {
		assert.True(t, adapters[name], "adapter %q should be registered", name)
	}
	assert.False(t, adapters["ansi"])
}

func TestUpsertThroughRoot(t *testing.T) {
	p := testutil.SetupSQLiteProject(t, `CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`)
	t.Chdir(p.Dir)

	stdout, stderr, err := run(t, `{"id":1,"name":"Ada"}`, "upsert", "-T", "users", "-o", "json")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, `"status":"SUCCESS"`)

	stdout, stderr, err = run(t, "", "runs", "-o", "json")
	require.NoError(t, err, stderr)
	assert.Contains(t, stdout, `"status": "completed"`)
}

func TestMissingConfigTargetFails(t *testing.T) {
	t.Chdir(t.TempDir())

	_, _, err := run(t, `{}`, "upsert", "-T", "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no target configured")
}

func TestCompletionCommand(t *testing.T) {
	stdout, _, err := run(t, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "leapupsert")
}

func TestVersionFlag(t *testing.T) {
	stdout, _, err := run(t, "", "--version")
	require.NoError(t, err)
	assert.Equal(t, "leapupsert "+Version+"\n", stdout)
}
