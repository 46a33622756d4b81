package bundle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmodels/modellake/internal/pathmodel"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func mustRelPath(t *testing.T, p string) pathmodel.RelPath {
	t.Helper()

	rp, err := pathmodel.New(p)
	require.NoError(t, err)

	return rp
}

func TestCreateThenGetPreservesOrder(t *testing.T) {
	s := openTestStore(t)

	items := []Item{
		{RelPath: mustRelPath(t, "models/b.bin"), Hash: "hash-b"},
		{RelPath: mustRelPath(t, "models/a.bin"), Hash: "hash-a"},
	}

	created, err := s.Create(context.Background(), "release-1", items)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := s.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "models/b.bin", got.Items[0].RelPath.String())
	assert.Equal(t, "models/a.bin", got.Items[1].RelPath.String())
}

func TestGetByNameMissReturnsNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetByName(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateDuplicateNameFails(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Create(context.Background(), "dup", nil)
	require.NoError(t, err)

	_, err = s.Create(context.Background(), "dup", nil)
	assert.Error(t, err)
}

func TestReplaceOverwritesItemsAndBumpsUpdatedAt(t *testing.T) {
	s := openTestStore(t)

	b, err := s.Create(context.Background(), "bundle-1", []Item{
		{RelPath: mustRelPath(t, "a.bin")},
	})
	require.NoError(t, err)

	replaced, err := s.Replace(context.Background(), b.ID, []Item{
		{RelPath: mustRelPath(t, "x.bin")},
		{RelPath: mustRelPath(t, "y.bin")},
	})
	require.NoError(t, err)
	require.Len(t, replaced.Items, 2)
	assert.Equal(t, "x.bin", replaced.Items[0].RelPath.String())
	assert.GreaterOrEqual(t, replaced.UpdatedAt, b.UpdatedAt)
}

func TestReplaceUnknownIDReturnsNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Replace(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListOrdersByName(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Create(context.Background(), "zeta", nil)
	require.NoError(t, err)
	_, err = s.Create(context.Background(), "alpha", nil)
	require.NoError(t, err)

	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
}

func TestDeleteRemovesBundleAndItems(t *testing.T) {
	s := openTestStore(t)

	b, err := s.Create(context.Background(), "to-delete", []Item{{RelPath: mustRelPath(t, "a.bin")}})
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), b.ID))

	_, err = s.Get(context.Background(), b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUnknownIDIsNotAnError(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.Delete(context.Background(), "does-not-exist"))
}
