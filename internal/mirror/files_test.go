package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomic(t *testing.T) {
	root := t.TempDir()
	target := Abs(root, "projects/support/project.yaml")

	require.NoError(t, WriteFileAtomic(target, []byte("idn: support\n")))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "idn: support\n", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, FilePerms, info.Mode().Perm())

	// Overwrite in place.
	require.NoError(t, WriteFileAtomic(target, []byte("idn: support\ntitle: Support\n")))

	data, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Support")

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRemoveFile_SweepsEmptyDirs(t *testing.T) {
	root := t.TempDir()

	skill := "projects/support/helper/greeting/greet.guidance"
	meta := "projects/support/helper/agent.yaml"

	require.NoError(t, WriteFileAtomic(Abs(root, skill), []byte("hello")))
	require.NoError(t, WriteFileAtomic(Abs(root, meta), []byte("idn: helper\n")))

	require.NoError(t, RemoveFile(root, skill))

	// The flow directory is empty now and gets swept; the agent
	// directory still holds agent.yaml and stays.
	assert.NoDirExists(t, Abs(root, "projects/support/helper/greeting"))
	assert.FileExists(t, Abs(root, meta))

	require.NoError(t, RemoveFile(root, meta))
	assert.NoDirExists(t, Abs(root, "projects"))

	// Root itself is never removed.
	assert.DirExists(t, root)
}

func TestRemoveFile_MissingIsFine(t *testing.T) {
	root := t.TempDir()

	require.NoError(t, RemoveFile(root, "personas/ghost.yaml"))
}
