package taskconfig

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeOverride places an override script under the obs package layout.
func writeOverride(t *testing.T, obsPath string, rel string, content string) string {
	t.Helper()
	path := filepath.Join(obsPath, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestApply(t *testing.T) {
	ctx := context.Background()

	t.Run("layers apply in fixed order with later layers winning", func(t *testing.T) {
		obs := t.TempDir()
		writeOverride(t, obs, "config/sampleTask.star", `
config.strItem = "obs layer"
config.floatItem = 1.0
config.subItem.intItem = 10
`)
		writeOverride(t, obs, "config/testcam/sampleTask.star", `
config.strItem = "camera layer"
config.floatItem = 2.0
`)
		explicit := writeOverride(t, obs, "extra.star", `
config.floatItem = 3.0
`)

		c := sampleConfig()
		require.NoError(t, Apply(ctx, c, Overrides{
			ObsPath:     obs,
			Camera:      "testcam",
			Task:        "sampleTask",
			Files:       []string{explicit},
			Assignments: []string{"strItem=command line"},
		}))

		assert.Equal(t, "command line", getString(t, c, "strItem"))
		assert.Equal(t, 3.0, getFloat(t, c, "floatItem"))
		// The obs layer's untouched override survives all later layers.
		assert.Equal(t, float64(10), getFloat(t, c, "subItem.intItem"))
	})

	t.Run("absent auto-load files are silently skipped", func(t *testing.T) {
		c := sampleConfig()
		require.NoError(t, Apply(ctx, c, Overrides{
			ObsPath: t.TempDir(),
			Camera:  "testcam",
			Task:    "sampleTask",
		}))
		assert.Equal(t, "strDefault", getString(t, c, "strItem"))
	})

	t.Run("absent explicit file fails with FileNotFoundError", func(t *testing.T) {
		c := sampleConfig()
		err := Apply(ctx, c, Overrides{Files: []string{"/no/such/file.star"}})
		var nfErr *FileNotFoundError
		require.ErrorAs(t, err, &nfErr)
		assert.Equal(t, "/no/such/file.star", nfErr.Path)
	})

	t.Run("explicit files apply in command-line order", func(t *testing.T) {
		obs := t.TempDir()
		first := writeOverride(t, obs, "a.star", `config.strItem = "first"`)
		second := writeOverride(t, obs, "b.star", `config.strItem = "second"`)

		c := sampleConfig()
		require.NoError(t, Apply(ctx, c, Overrides{Files: []string{first, second}}))
		assert.Equal(t, "second", getString(t, c, "strItem"))
	})

	t.Run("assignments apply left to right", func(t *testing.T) {
		c := sampleConfig()
		require.NoError(t, Apply(ctx, c, Overrides{
			Assignments: []string{"strItem=early", "floatItem=-67.1", "strItem=final value"},
		}))
		assert.Equal(t, "final value", getString(t, c, "strItem"))
		assert.Equal(t, -67.1, getFloat(t, c, "floatItem"))
	})

	t.Run("malformed assignment fails", func(t *testing.T) {
		c := sampleConfig()
		err := Apply(ctx, c, Overrides{Assignments: []string{"justakey"}})
		var assignErr *AssignmentError
		require.ErrorAs(t, err, &assignErr)
	})

	t.Run("a file retarget resets earlier command-layer state", func(t *testing.T) {
		// Auto-load sets a subtask override, the camera layer retargets:
		// the override must not survive into the merged result.
		obs := t.TempDir()
		writeOverride(t, obs, "config/sampleTask.star", `config.calibrate.iterations = 99`)
		writeOverride(t, obs, "config/testcam/sampleTask.star", `config.calibrate.retarget("fast")`)

		c := sampleConfig()
		require.NoError(t, Apply(ctx, c, Overrides{
			ObsPath: obs,
			Camera:  "testcam",
			Task:    "sampleTask",
		}))
		assert.Equal(t, float64(1), getFloat(t, c, "calibrate.iterations"))
	})
}
