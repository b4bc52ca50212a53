package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wfnotifier/internal/credentials"
)

func TestInitFromGeneratorFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile("init.txt", []byte(
		"User Access Token: abc123\nRefresh Token: def456\nExpires At: 2030-01-02 03:04:05.5 +0000 UTC\n",
	), 0o600))

	credPath := filepath.Join(dir, "creds.json")
	rootCmd.AddCommand(initCmd)
	rootCmd.SetArgs([]string{"init", "--id", "cid", "--secret", "csecret", "--credentials", credPath})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat("init.txt")
	assert.ErrorIs(t, err, os.ErrNotExist)

	tok, err := credentials.NewStore(credPath).Load()
	require.NoError(t, err)
	assert.Equal(t, "cid", tok.ClientID)
	assert.Equal(t, "csecret", tok.ClientSecret)
	assert.Equal(t, "abc123", tok.AccessToken)
	assert.Equal(t, "def456", tok.RefreshToken)
	require.NotNil(t, tok.ExpiresAt)
	assert.Equal(t, 2030, tok.ExpiresAt.Year())
}
