package accounts

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lobby-pilot/winapi/winapitest"
	"os"
	"path/filepath"
	"testing"
)

const sample = `
accounts:
  - login: alpha
    pid: 101
  - login: bravo
    pidFile: bravo.pid
  - login: charlie
    pid: 103
    disabled: true
  - login: delta
    pid: 104
`

func TestLoadReadsAccountsInOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bravo.pid"), []byte("102\n"), 0o644))

	desk := winapitest.NewDesktop()
	for _, pid := range []uint32{101, 102, 103} {
		desk.SetProcess(pid, "cs2.exe", true)
	}

	src, err := Load(path, desk)
	require.NoError(t, err)
	require.Equal(t, 4, src.Len())

	members := src.Members()
	var logins []string
	for _, m := range members {
		logins = append(logins, m.Login())
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, logins)

	assert.Equal(t, uint32(102), members[1].ProcessID(), "pid read from the pid file")
	assert.True(t, members[0].Valid())
	assert.True(t, members[1].Valid())
	assert.False(t, members[2].Valid(), "disabled accounts are never valid")
	assert.False(t, members[3].Valid(), "process 104 is not running")
}

func TestValidFollowsProcessLiveness(t *testing.T) {
	desk := winapitest.NewDesktop()
	desk.SetProcess(7, "cs2.exe", true)

	src, err := Parse([]byte("accounts:\n  - login: alpha\n    pid: 7\n"), "", desk)
	require.NoError(t, err)
	m := src.Members()[0]
	assert.True(t, m.Valid())

	desk.SetProcess(7, "cs2.exe", false)
	assert.False(t, m.Valid())
}

func TestMissingPIDFileIsInvalid(t *testing.T) {
	src, err := Parse([]byte("accounts:\n  - login: alpha\n    pidFile: nope.pid\n"), t.TempDir(), winapitest.NewDesktop())
	require.NoError(t, err)
	assert.Zero(t, src.Members()[0].ProcessID())
	assert.False(t, src.Members()[0].Valid())
}

func TestParseRejectsBadFiles(t *testing.T) {
	tests := map[string]string{
		"missing login": "accounts:\n  - pid: 1\n",
		"duplicate":     "accounts:\n  - login: a\n  - login: a\n",
		"bad yaml":      "accounts: [",
	}
	for name, body := range tests {
		_, err := Parse([]byte(body), "", winapitest.NewDesktop())
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), winapitest.NewDesktop())
	assert.Error(t, err)
}
