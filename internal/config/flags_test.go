package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticFlags(t *testing.T) {
	assert.False(t, StaticFlags{}.Current().SiteLocked)
	assert.True(t, StaticFlags{SiteLocked: true}.Current().SiteLocked)
}

func TestEnvFlags(t *testing.T) {
	var source EnvFlags

	t.Setenv("EDGEGATE_SITE_LOCKED", "false")
	assert.False(t, source.Current().SiteLocked)

	// Re-read per call: a change takes effect without restart.
	t.Setenv("EDGEGATE_SITE_LOCKED", "true")
	assert.True(t, source.Current().SiteLocked)
}

func writeFlagsFile(t *testing.T, path, content string) {
	t.Helper()
	// Write then rename, the way most deploy tooling updates config files.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestFileFlags(t *testing.T) {
	t.Run("reads initial file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flags.yaml")
		writeFlagsFile(t, path, "siteLocked: true\n")

		flags, err := NewFileFlags(path, Flags{})
		require.NoError(t, err)
		defer func() { _ = flags.Close() }()

		assert.True(t, flags.Current().SiteLocked)
	})

	t.Run("missing file keeps fallback", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flags.yaml")

		flags, err := NewFileFlags(path, Flags{SiteLocked: true})
		require.NoError(t, err)
		defer func() { _ = flags.Close() }()

		assert.True(t, flags.Current().SiteLocked)
	})

	t.Run("picks up edits without restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flags.yaml")
		writeFlagsFile(t, path, "siteLocked: false\n")

		flags, err := NewFileFlags(path, Flags{})
		require.NoError(t, err)
		defer func() { _ = flags.Close() }()

		require.False(t, flags.Current().SiteLocked)

		writeFlagsFile(t, path, "siteLocked: true\n")

		assert.Eventually(t, func() bool {
			return flags.Current().SiteLocked
		}, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("malformed edit keeps last good flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flags.yaml")
		writeFlagsFile(t, path, "siteLocked: true\n")

		flags, err := NewFileFlags(path, Flags{})
		require.NoError(t, err)
		defer func() { _ = flags.Close() }()

		require.True(t, flags.Current().SiteLocked)

		writeFlagsFile(t, path, "siteLocked: [broken\n")

		// Give the watcher time to process the event, then confirm the
		// previous flags survived.
		time.Sleep(300 * time.Millisecond)
		assert.True(t, flags.Current().SiteLocked)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "flags.yaml")
		writeFlagsFile(t, path, "siteLocked: false\n")

		flags, err := NewFileFlags(path, Flags{})
		require.NoError(t, err)

		assert.NoError(t, flags.Close())
		assert.NoError(t, flags.Close())
	})
}
