package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

func TestNewMirrorCmd_Subcommands(t *testing.T) {
	cmd := newMirrorCmd()
	assert.Equal(t, "mirror", cmd.Use)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.ElementsMatch(t, []string{"plan", "execute"}, names)
}

func TestResolveMirrorArgs_Defaults(t *testing.T) {
	srcSide, srcFolder, dstSide, dstFolder, err := resolveMirrorArgs("local", "", "lake", "")
	require.NoError(t, err)
	assert.Equal(t, sides.Local, srcSide)
	assert.Equal(t, sides.Lake, dstSide)
	assert.Equal(t, pathmodel.RelPath(""), srcFolder)
	assert.Equal(t, pathmodel.RelPath(""), dstFolder)
}

func TestResolveMirrorArgs_WithFolders(t *testing.T) {
	srcSide, srcFolder, dstSide, dstFolder, err := resolveMirrorArgs("local", "models/a", "lake", "models/b")
	require.NoError(t, err)
	assert.Equal(t, sides.Local, srcSide)
	assert.Equal(t, sides.Lake, dstSide)
	assert.Equal(t, pathmodel.RelPath("models/a"), srcFolder)
	assert.Equal(t, pathmodel.RelPath("models/b"), dstFolder)
}

func TestResolveMirrorArgs_InvalidSide(t *testing.T) {
	_, _, _, _, err := resolveMirrorArgs("bogus", "", "lake", "")
	require.Error(t, err)
}

func TestMirrorFlags_Defaults(t *testing.T) {
	cmd := newMirrorPlanCmd()

	srcSide := cmd.Flags().Lookup("src-side")
	dstSide := cmd.Flags().Lookup("dst-side")
	require.NotNil(t, srcSide)
	require.NotNil(t, dstSide)
	assert.Equal(t, "local", srcSide.DefValue)
	assert.Equal(t, "lake", dstSide.DefValue)
}
