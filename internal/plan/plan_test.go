package plan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/astrokit/pipeplan/internal/dataid"
	"github.com/astrokit/pipeplan/internal/repo"
	"github.com/astrokit/pipeplan/internal/taskconfig"
)

func newConfig() *taskconfig.Config {
	root := taskconfig.NewStruct("test task").
		Add("threshold", taskconfig.NewLeaf("detection threshold", cty.Number, cty.NumberFloatVal(5.0)))
	return taskconfig.New(root)
}

func TestAssemble(t *testing.T) {
	ctx := context.Background()
	repos := &repo.Resolved{
		Input:  "/data/input",
		Output: "/data/output",
		Camera: "testcam",
	}
	ids := []dataid.Identifier{
		{Keys: []string{"visit"}, Values: map[string]string{"visit": "1"}},
	}

	t.Run("assembles and freezes the configuration", func(t *testing.T) {
		cfg := newConfig()
		p, err := Assemble(ctx, repos, "testcam", ids, cfg)
		require.NoError(t, err)

		assert.Equal(t, "/data/input", p.InputRepo)
		assert.Equal(t, "/data/output", p.OutputRepo)
		assert.Empty(t, p.CalibRepo)
		assert.Equal(t, "testcam", p.Camera)
		assert.Len(t, p.Identifiers, 1)
		assert.True(t, p.Config.Frozen())
	})

	t.Run("camera mismatch yields no plan", func(t *testing.T) {
		cfg := newConfig()
		p, err := Assemble(ctx, repos, "othercam", ids, cfg)
		assert.Nil(t, p)

		var mismatchErr *CameraMismatchError
		require.ErrorAs(t, err, &mismatchErr)
		assert.Equal(t, "testcam", mismatchErr.RepoCamera)
		assert.Equal(t, "othercam", mismatchErr.ConfigCamera)
	})

	t.Run("the identifier sequence is copied", func(t *testing.T) {
		src := []dataid.Identifier{
			{Keys: []string{"visit"}, Values: map[string]string{"visit": "1"}},
			{Keys: []string{"visit"}, Values: map[string]string{"visit": "2"}},
		}
		p, err := Assemble(ctx, repos, "testcam", src, newConfig())
		require.NoError(t, err)

		src[0] = dataid.Identifier{}
		assert.Equal(t, "1", p.Identifiers[0].Values["visit"])
	})
}
