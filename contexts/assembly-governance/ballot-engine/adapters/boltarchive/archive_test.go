package boltarchive

import (
	"context"
	"path/filepath"
	"testing"

	domainerrors "agora/contexts/assembly-governance/ballot-engine/domain/errors"

	"github.com/stretchr/testify/require"
)

func openArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := Open(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, archive.Close())
	})
	return archive
}

func TestPublishAndFetch(t *testing.T) {
	archive := openArchive(t)
	ctx := context.Background()

	artifact := []byte(`{"ballot_id":"ballot-1","tiers":[["a"]]}`)
	require.NoError(t, archive.Publish(ctx, "ballot-1", artifact))

	fetched, found, err := archive.Fetch(ctx, "ballot-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, artifact, fetched)
}

func TestPublishIsWriteOnce(t *testing.T) {
	archive := openArchive(t)
	ctx := context.Background()

	require.NoError(t, archive.Publish(ctx, "ballot-1", []byte(`{"v":1}`)))
	err := archive.Publish(ctx, "ballot-1", []byte(`{"v":2}`))
	require.ErrorIs(t, err, domainerrors.ErrAlreadyPublished)

	fetched, found, err := archive.Fetch(ctx, "ballot-1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte(`{"v":1}`), fetched)
}

func TestFetchMissingBallot(t *testing.T) {
	archive := openArchive(t)

	_, found, err := archive.Fetch(context.Background(), "never-tallied")
	require.NoError(t, err)
	require.False(t, found)
}
