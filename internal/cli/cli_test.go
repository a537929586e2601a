package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/store/gormstore"
)

// run executes the command line against a SQLite database at dbPath and
// returns stdout.
func run(t *testing.T, dbPath, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", dbPath)
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func openDB(t *testing.T, path string) core.Store {
	t.Helper()
	st, err := gormstore.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestMigrate(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, db, "", "migrate")
	require.NoError(t, err)
	assert.Equal(t, "sqlite schema is up to date\n", out)

	_, err = run(t, db, "", "migrate")
	require.NoError(t, err, "migrate is repeatable")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cli.db")
	claims := writeFile(t, dir, "claims.csv", "id,patient_name,billed_amount,paid_amount,status,insurer_name,discharge_date\n"+
		"1,Jane Doe,500,0,Pending,Acme,2024-01-01\n"+
		"2,John Roe,300,100,Denied,Globex,01/15/2024\n")
	details := writeFile(t, dir, "details.json", `[
		{"id": 10, "claim_id": 2, "denial_reason": "Not covered", "cpt_codes": "99213"},
		{"id": 11, "claim_id": 9, "denial_reason": "", "cpt_codes": ""}
	]`)

	out, err := run(t, db, "", "load", "--claims", claims, "--details", details)
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"All existing claims and details deleted (overwrite mode).",
		"Created claim 1",
		"Created claim 2",
		"Linked details for claim 2",
		"Skipping detail 11 - claim missing",
		"Data import complete. 2 created, 0 updated, 1 details linked, 1 skipped.",
	}, "\n")+"\n", out)

	out, err = run(t, db, "", "load", "--claims", claims, "--details", details, "--mode", "append")
	require.NoError(t, err)
	assert.Contains(t, out, "Updated claim 1")
	assert.NotContains(t, out, "deleted")

	st := openDB(t, db)
	c, err := st.GetClaim(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, c.Detail)
	assert.Equal(t, "Not covered", c.Detail.DenialReason)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cli.db")
	empty := writeFile(t, dir, "empty.json", "[]")
	bad := writeFile(t, dir, "bad.json", `{"id": 1`)

	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut string
	}{
		{"missing flags", []string{"load"}, `required flag(s) "claims", "details" not set`, ""},
		{"unknown mode", []string{"load", "--claims", empty, "--details", empty, "--mode", "merge"}, "unknown import mode", ""},
		{"missing file", []string{"load", "--claims", filepath.Join(dir, "nope.json"), "--details", empty}, "open claims file", ""},
		{"bad format flag", []string{"load", "--claims", empty, "--details", empty, "--format", "xml"}, "unknown format", ""},
		{"malformed file", []string{"load", "--claims", bad, "--details", empty}, "invalid file format", "Import aborted, no changes applied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, db, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if tt.wantOut != "" {
				assert.Contains(t, out, tt.wantOut)
			}
		})
	}
}

func TestUserCommands(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := run(t, db, "s3cret-pass\n", "user", "create", "root", "--admin")
	require.NoError(t, err)
	assert.Contains(t, out, `created admin "root"`)

	out, err = run(t, db, "", "user", "create", "amy", "--password", "another-pass")
	require.NoError(t, err)
	assert.Contains(t, out, `created user "amy"`)

	_, err = run(t, db, "", "user", "create", "amy", "--password", "another-pass")
	assert.ErrorIs(t, err, core.ErrUsernameTaken)

	_, err = run(t, db, "", "user", "create", "bo")
	assert.ErrorContains(t, err, "no password given")

	st := openDB(t, db)
	u, err := st.GetUserByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	st.Close()

	out, err = run(t, db, "", "user", "delete", "amy")
	require.NoError(t, err)
	assert.Equal(t, "deleted \"amy\"\n", out)

	_, err = run(t, db, "", "user", "delete", "amy")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("hunter22\r\nrest"))
	require.NoError(t, err)
	assert.Equal(t, "hunter22", pw)

	pw, err = readPassword(strings.NewReader("no-newline"))
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}
