package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeRepo creates a repository directory with a marker file.
func makeRepo(t *testing.T, path string, marker string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, MarkerFile), []byte(marker), 0o644))
	return path
}

func resolve(t *testing.T, roots Roots, req Request) (*Resolved, error) {
	t.Helper()
	return NewResolver(roots).Resolve(context.Background(), req)
}

func TestResolveSlots(t *testing.T) {
	t.Run("relative input joins its root", func(t *testing.T) {
		root := t.TempDir()
		makeRepo(t, filepath.Join(root, "data"), "camera: testcam\n")

		res, err := resolve(t, Roots{Input: root}, Request{Input: "data"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, "data"), res.Input)
		assert.Equal(t, "testcam", res.Camera)
		assert.Empty(t, res.Output)
		assert.Empty(t, res.Calib)
	})

	t.Run("absolute input ignores the root", func(t *testing.T) {
		input := makeRepo(t, filepath.Join(t.TempDir(), "in"), "camera: testcam\n")

		res, err := resolve(t, Roots{Input: "/nonexistent/root"}, Request{Input: input})
		require.NoError(t, err)
		assert.Equal(t, input, res.Input)
	})

	t.Run("missing root defaults to the working directory", func(t *testing.T) {
		dir := t.TempDir()
		makeRepo(t, filepath.Join(dir, "data"), "camera: testcam\n")
		prev, err := os.Getwd()
		require.NoError(t, err)
		require.NoError(t, os.Chdir(dir))
		t.Cleanup(func() { _ = os.Chdir(prev) })

		res, err := resolve(t, Roots{}, Request{Input: "data"})
		require.NoError(t, err)
		resolved, _ := filepath.EvalSymlinks(filepath.Join(dir, "data"))
		got, _ := filepath.EvalSymlinks(res.Input)
		assert.Equal(t, resolved, got)
	})

	t.Run("output and calib roots alone supply their slots", func(t *testing.T) {
		input := makeRepo(t, filepath.Join(t.TempDir(), "in"), "camera: testcam\n")
		outRoot := t.TempDir()
		calibRoot := t.TempDir()

		res, err := resolve(t, Roots{Output: outRoot, Calib: calibRoot}, Request{Input: input})
		require.NoError(t, err)
		assert.Equal(t, outRoot, res.Output)
		assert.Equal(t, calibRoot, res.Calib)
	})

	t.Run("missing input directory fails", func(t *testing.T) {
		_, err := resolve(t, Roots{}, Request{Input: "/no/such/repo"})
		var nfErr *NotFoundError
		require.ErrorAs(t, err, &nfErr)
	})

	t.Run("directory without a marker is not a repository", func(t *testing.T) {
		dir := t.TempDir()
		_, err := resolve(t, Roots{}, Request{Input: dir})
		var nfErr *NotFoundError
		require.ErrorAs(t, err, &nfErr)
		assert.Contains(t, nfErr.Reason, MarkerFile)
	})
}

func TestParentChain(t *testing.T) {
	t.Run("camera is inherited from the ancestor", func(t *testing.T) {
		base := t.TempDir()
		root := makeRepo(t, filepath.Join(base, "root"), "camera: testcam\n")
		child := makeRepo(t, filepath.Join(base, "child"), "parent: "+root+"\n")

		res, err := resolve(t, Roots{}, Request{Input: child})
		require.NoError(t, err)
		assert.Equal(t, "testcam", res.Camera)
	})

	t.Run("relative parent links resolve against the child", func(t *testing.T) {
		base := t.TempDir()
		makeRepo(t, filepath.Join(base, "root"), "camera: testcam\n")
		child := makeRepo(t, filepath.Join(base, "child"), "parent: ../root\n")

		res, err := resolve(t, Roots{}, Request{Input: child})
		require.NoError(t, err)
		assert.Equal(t, "testcam", res.Camera)
	})

	t.Run("parent cycle is detected", func(t *testing.T) {
		base := t.TempDir()
		a := filepath.Join(base, "a")
		b := filepath.Join(base, "b")
		makeRepo(t, a, "parent: "+b+"\n")
		makeRepo(t, b, "parent: "+a+"\n")

		_, err := resolve(t, Roots{}, Request{Input: a})
		var cycleErr *CycleError
		require.ErrorAs(t, err, &cycleErr)
		assert.GreaterOrEqual(t, len(cycleErr.Chain), 2)
	})

	t.Run("dangling parent link fails", func(t *testing.T) {
		base := t.TempDir()
		child := makeRepo(t, filepath.Join(base, "child"), "parent: "+filepath.Join(base, "gone")+"\n")

		_, err := resolve(t, Roots{}, Request{Input: child})
		var nfErr *NotFoundError
		require.ErrorAs(t, err, &nfErr)
	})
}

func TestRerun(t *testing.T) {
	// newRepoTree builds root (with camera) and a child chained to it,
	// returning both.
	newRepoTree := func(t *testing.T) (root, child string) {
		base := t.TempDir()
		root = makeRepo(t, filepath.Join(base, "root"), "camera: testcam\n")
		child = makeRepo(t, filepath.Join(base, "child"), "parent: "+root+"\n")
		return root, child
	}

	t.Run("single rerun names the output under the rerun root", func(t *testing.T) {
		root, child := newRepoTree(t)

		res, err := resolve(t, Roots{}, Request{Input: child, Rerun: "foo"})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(root, RerunDirName, "foo"), res.Output)
		assert.Equal(t, child, res.Input)
	})

	t.Run("continuing an existing rerun rebases the input onto it", func(t *testing.T) {
		root, child := newRepoTree(t)
		rerunDir := makeRepo(t, filepath.Join(root, RerunDirName, "foo"), "parent: "+child+"\n")

		res, err := resolve(t, Roots{}, Request{Input: child, Rerun: "foo"})
		require.NoError(t, err)
		resolved, _ := filepath.EvalSymlinks(rerunDir)
		assert.Equal(t, resolved, res.Input)
		assert.Equal(t, "testcam", res.Camera)
	})

	t.Run("chained rerun splits input and output", func(t *testing.T) {
		root, child := newRepoTree(t)
		makeRepo(t, filepath.Join(root, RerunDirName, "a"), "parent: "+child+"\n")

		res, err := resolve(t, Roots{}, Request{Input: child, Rerun: "a:b"})
		require.NoError(t, err)
		resolvedA, _ := filepath.EvalSymlinks(filepath.Join(root, RerunDirName, "a"))
		assert.Equal(t, resolvedA, res.Input)
		assert.Equal(t, filepath.Join(root, RerunDirName, "b"), res.Output)
	})

	t.Run("chained rerun requires the input rerun to exist", func(t *testing.T) {
		_, child := newRepoTree(t)

		_, err := resolve(t, Roots{}, Request{Input: child, Rerun: "gone:b"})
		var nfErr *NotFoundError
		require.ErrorAs(t, err, &nfErr)
	})

	t.Run("absolute rerun ignores the rerun root", func(t *testing.T) {
		_, child := newRepoTree(t)

		res, err := resolve(t, Roots{}, Request{Input: child, Rerun: "/abs/rerun/path"})
		require.NoError(t, err)
		assert.Equal(t, "/abs/rerun/path", res.Output)
	})

	t.Run("symlinked rerun target resolves to the real directory", func(t *testing.T) {
		root, child := newRepoTree(t)
		real := makeRepo(t, filepath.Join(root, RerunDirName, "real"), "parent: "+child+"\n")
		link := filepath.Join(root, RerunDirName, "alias")
		require.NoError(t, os.Symlink(real, link))

		res, err := resolve(t, Roots{}, Request{Input: child, Rerun: "alias"})
		require.NoError(t, err)
		resolved, _ := filepath.EvalSymlinks(real)
		assert.Equal(t, resolved, res.Input)
	})

	t.Run("rerun plus output is a conflict", func(t *testing.T) {
		_, child := newRepoTree(t)

		_, err := resolve(t, Roots{}, Request{Input: child, Rerun: "foo", Output: "/out"})
		var conflictErr *RerunConflictError
		require.ErrorAs(t, err, &conflictErr)
	})

	t.Run("more than one colon is rejected", func(t *testing.T) {
		_, child := newRepoTree(t)

		_, err := resolve(t, Roots{}, Request{Input: child, Rerun: "a:b:c"})
		var conflictErr *RerunConflictError
		require.ErrorAs(t, err, &conflictErr)
	})
}

func TestRootsFromEnv(t *testing.T) {
	t.Setenv(EnvInputRoot, "/in")
	t.Setenv(EnvOutputRoot, "/out")
	t.Setenv(EnvCalibRoot, "/calib")

	roots := RootsFromEnv()
	assert.Equal(t, Roots{Input: "/in", Output: "/out", Calib: "/calib"}, roots)
}
