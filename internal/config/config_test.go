package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, "ws://127.0.0.1:9222", c.DevTools.URL)
	assert.Equal(t, "db.sqlite3", c.Sqlite.Dsn)
	assert.Equal(t, []string{"console", "file"}, c.Log.Writer)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
devtools:
  url: ws://10.0.0.1:9333
log:
  level: warn
`), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.1:9333", c.DevTools.URL)
	assert.Equal(t, "warn", c.Log.Level)
	// 未覆盖的字段保留默认值
	assert.Equal(t, "cdpdriver_", c.Sqlite.Prefix)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
