package leveldbrepository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlcoracle/internal/repository"
	"dlcoracle/internal/repository/repositorytest"
)

func openAt(t *testing.T, path string) *Store {
	t.Helper()
	s, err := Open(path, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	paths := map[repository.Store]string{}
	repositorytest.Run(t, repositorytest.Harness{
		Open: func(t *testing.T) repository.Store {
			path := filepath.Join(t.TempDir(), "oracle.ldb")
			s := openAt(t, path)
			paths[s] = path
			return s
		},
		Reopen: func(t *testing.T, old repository.Store) repository.Store {
			require.NoError(t, old.Close())
			return openAt(t, paths[old])
		},
	})
}

func TestCursorIsPersistedOnAllocation(t *testing.T) {
	ctx := context.Background()
	s := openAt(t, filepath.Join(t.TempDir(), "oracle.ldb"))

	_, err := s.NextNonceIndexes(ctx, 4)
	require.NoError(t, err)
	next, err := readCursor(s.db)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next)

	require.NoError(t, s.persistCursor(ctx, 2))
	next, err = readCursor(s.db)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), next, "cursor never moves backwards")
}

func TestRecoveryPassesBoundSlots(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "oracle.ldb")
	s, err := Open(path, Options{})
	require.NoError(t, err)

	indexes, err := s.NextNonceIndexes(ctx, 3)
	require.NoError(t, err)
	_, err = s.SaveAnnouncement(ctx, repositorytest.EnumAnnouncement("behind", 3), indexes)
	require.NoError(t, err)
	require.NoError(t, s.db.Put(cursorKey, uint64ToBytes(1), nil))
	require.NoError(t, s.Close())

	s = openAt(t, path)
	assert.Equal(t, uint64(3), s.NextIndex())
}

func TestSecondOpenerIsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oracle.ldb")
	openAt(t, path)

	_, err := Open(path, Options{})
	assert.ErrorIs(t, err, repository.ErrStorageFailure)
}

func TestPingAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "oracle.ldb"), Options{})
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), repository.ErrStorageFailure)
}

func TestRecordCodecKeepsProjection(t *testing.T) {
	ann := repositorytest.DigitAnnouncement("codec", 2)
	rec := record{
		Key:       7,
		CreatedAt: 1_700_000_000_123_456_789,
		Data:      repository.NewEventData(ann, []uint32{1, 0}, time.Unix(0, 1_700_000_000_123_456_789)),
	}
	blob, err := encodeRecord(rec)
	require.NoError(t, err)
	got, err := decodeRecord(blob)
	require.NoError(t, err)

	data := projection(got)
	assert.Equal(t, ann, data.Announcement)
	assert.Equal(t, []uint32{0, 1}, data.Indexes)
	assert.Equal(t, time.Unix(0, rec.CreatedAt).UTC(), data.CreatedAt)
	assert.Equal(t, uint32(7), got.Key)
}
