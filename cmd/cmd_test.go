package cmd_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/USA-RedDragon/crashula/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func persistenceFlags(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	return []string{
		"--config", "",
		"--persistence.database.database", filepath.Join(dir, "crashula.db"),
		"--persistence.uploads.directory", filepath.Join(dir, "uploads"),
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	baseCmd := cmd.NewCommand("testing", "default")
	var out bytes.Buffer
	baseCmd.SetOut(&out)
	baseCmd.SetErr(&out)
	baseCmd.SetArgs(args)
	err := baseCmd.Execute()
	return out.String(), err
}

func TestDefault(t *testing.T) {
	t.Parallel()
	// Avoid port conflict
	args := append([]string{
		"--http.port", "8082",
		"--http.metrics.port", "8083",
		"--session.secret", "changeme",
	}, persistenceFlags(t)...)
	_, err := execute(t, args...)
	assert.NoError(t, err)
}

func TestMissingSessionSecret(t *testing.T) {
	t.Parallel()
	_, err := execute(t, persistenceFlags(t)...)
	assert.Error(t, err)
}

func TestUserCreate(t *testing.T) {
	t.Parallel()
	flags := persistenceFlags(t)

	out, err := execute(t, append([]string{"user", "create", "--username", "alice", "--password", "hunter22hunter22"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Created user alice")

	_, err = execute(t, append([]string{"user", "create", "--username", "alice", "--password", "hunter22hunter22"}, flags...)...)
	assert.ErrorIs(t, err, cmd.ErrUsernameTaken)
}

func TestUserCreateValidation(t *testing.T) {
	t.Parallel()
	flags := persistenceFlags(t)

	_, err := execute(t, append([]string{"user", "create", "--username", "not a name", "--password", "hunter22hunter22"}, flags...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Username")

	_, err = execute(t, append([]string{"user", "create", "--username", "bob", "--password", "short"}, flags...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Password")
}

func TestAppCreateAndList(t *testing.T) {
	t.Parallel()
	flags := persistenceFlags(t)

	out, err := execute(t, append([]string{"app", "create", "--name", "Mail", "--company", "Apple"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Created application Mail by Apple")

	_, err = execute(t, append([]string{"app", "create", "--name", "Notes"}, flags...)...)
	require.NoError(t, err)

	_, err = execute(t, append([]string{"app", "create", "--name", "Mail"}, flags...)...)
	assert.Error(t, err)

	out, err = execute(t, append([]string{"app", "list"}, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Mail by Apple")
	assert.Contains(t, out, "Notes")
	assert.Less(t, bytes.Index([]byte(out), []byte("Mail")), bytes.Index([]byte(out), []byte("Notes")))
}
