package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFS_ContainsUsersTable(t *testing.T) {
	up, err := fs.ReadFile(FS, "000001_create_users.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(up), "username      VARCHAR(128) PRIMARY KEY")

	down, err := fs.ReadFile(FS, "000001_create_users.down.sql")
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS users")
}
