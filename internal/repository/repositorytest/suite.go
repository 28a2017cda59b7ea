package repositorytest

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dlcoracle/internal/repository"
)

// Harness opens stores for the suite. Reopen is set only for durable
// backends: it closes s and opens a new store over the same data.
type Harness struct {
	Open   func(t *testing.T) repository.Store
	Reopen func(t *testing.T, s repository.Store) repository.Store
}

// Run exercises a backend against the shared event store contract.
func Run(t *testing.T, h Harness) {
	t.Run("allocates contiguous indexes from zero", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)

		first, err := s.NextNonceIndexes(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []uint32{0, 1, 2}, first)

		second, err := s.NextNonceIndexes(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []uint32{3, 4}, second)

		none, err := s.NextNonceIndexes(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, none)

		_, err = s.NextNonceIndexes(ctx, -1)
		assert.ErrorIs(t, err, repository.ErrInternal)
	})

	t.Run("concurrent allocations never overlap", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)

		const workers, rounds = 8, 10
		var (
			mu   sync.Mutex
			seen []uint32
			wg   sync.WaitGroup
		)
		for w := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for r := range rounds {
					got, err := s.NextNonceIndexes(ctx, 1+(w+r)%4)
					if !assert.NoError(t, err) {
						return
					}
					mu.Lock()
					seen = append(seen, got...)
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		slices.Sort(seen)
		for i, idx := range seen {
			require.Equal(t, uint32(i), idx, "indexes must be unique and gap free")
		}
	})

	t.Run("saves and reads back an announcement", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)

		indexes, err := s.NextNonceIndexes(ctx, 3)
		require.NoError(t, err)
		ann := DigitAnnouncement("btc-price", 3)
		reversed := []uint32{indexes[2], indexes[1], indexes[0]}

		id, err := s.SaveAnnouncement(ctx, ann, reversed)
		require.NoError(t, err)
		assert.Equal(t, "btc-price", id)

		got, err := s.GetEvent(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.EventID)
		assert.Equal(t, ann, got.Announcement)
		assert.Equal(t, indexes, got.Indexes)
		assert.Empty(t, got.Signatures)
		assert.False(t, got.IsSigned())
		assert.Nil(t, got.AnnouncementEventID)
		assert.Nil(t, got.AttestationEventID)
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("unknown event reads as absent", func(t *testing.T) {
		got, err := h.Open(t).GetEvent(context.Background(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("rejects announcements that do not match their indexes", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)
		indexes, err := s.NextNonceIndexes(ctx, 2)
		require.NoError(t, err)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("short", 3), indexes)
		assert.ErrorIs(t, err, repository.ErrInvalidOutcome)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("unallocated", 2), []uint32{indexes[0], 99})
		assert.ErrorIs(t, err, repository.ErrInternal)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("repeated", 2), []uint32{indexes[0], indexes[0]})
		assert.ErrorIs(t, err, repository.ErrInternal)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("", 2), indexes)
		assert.ErrorIs(t, err, repository.ErrInternal)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("empty", 0), []uint32{})
		assert.ErrorIs(t, err, repository.ErrInternal)
		_, err = s.SaveSignatures(ctx, "empty", nil)
		assert.ErrorIs(t, err, repository.ErrNotFound)

		for _, id := range []string{"short", "unallocated", "repeated", "empty"} {
			got, err := s.GetEvent(ctx, id)
			require.NoError(t, err)
			assert.Nil(t, got, id)
		}
	})

	t.Run("rejects a duplicate event or a rebound index", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)
		indexes, err := s.NextNonceIndexes(ctx, 4)
		require.NoError(t, err)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("first", 2), indexes[:2])
		require.NoError(t, err)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("first", 2), indexes[2:])
		assert.ErrorIs(t, err, repository.ErrStorageFailure)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("second", 2), []uint32{indexes[1], indexes[2]})
		assert.ErrorIs(t, err, repository.ErrStorageFailure)

		got, err := s.GetEvent(ctx, "second")
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("second", 2), indexes[2:])
		assert.NoError(t, err)
	})

	t.Run("signs an event once", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)
		id := saveEvent(t, s, "election", 2)
		sigs := Signatures(id, 2)

		signed, err := s.SaveSignatures(ctx, id, sigs)
		require.NoError(t, err)
		require.NotNil(t, signed)
		assert.True(t, signed.IsSigned())
		assert.Equal(t, sigs, signed.Signatures)

		got, err := s.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, signed, got)

		_, err = s.SaveSignatures(ctx, id, Signatures("other", 2))
		assert.ErrorIs(t, err, repository.ErrEventAlreadySigned)

		got, err = s.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, sigs, got.Signatures)
	})

	t.Run("concurrent signers have one winner", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)
		id := saveEvent(t, s, "race", 3)

		const signers = 6
		errs := make([]error, signers)
		var wg sync.WaitGroup
		for i := range signers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.SaveSignatures(ctx, id, Signatures(fmt.Sprintf("signer-%d", i), 3))
			}()
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
				continue
			}
			assert.ErrorIs(t, err, repository.ErrEventAlreadySigned)
		}
		assert.Equal(t, 1, winners)

		got, err := s.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.Signatures, 3)
	})

	t.Run("signature count must match the nonces", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)
		id := saveEvent(t, s, "digits", 4)

		_, err := s.SaveSignatures(ctx, id, Signatures(id, 3))
		assert.ErrorIs(t, err, repository.ErrInvalidOutcome)

		got, err := s.GetEvent(ctx, id)
		require.NoError(t, err)
		assert.False(t, got.IsSigned())

		_, err = s.SaveSignatures(ctx, id, Signatures(id, 4))
		assert.NoError(t, err)
	})

	t.Run("signing an unknown event fails", func(t *testing.T) {
		_, err := h.Open(t).SaveSignatures(context.Background(), "missing", Signatures("missing", 1))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("records publication ids", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)
		id := saveEvent(t, s, "published", 1)

		announcement := PublicationID(0x10)
		attestation := PublicationID(0xa0)
		require.NoError(t, s.AddAnnouncementEventID(ctx, id, strings.ToUpper(announcement)))
		require.NoError(t, s.AddAttestationEventID(ctx, id, attestation))

		got, err := s.GetEvent(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got.AnnouncementEventID)
		require.NotNil(t, got.AttestationEventID)
		assert.Equal(t, announcement, *got.AnnouncementEventID)
		assert.Equal(t, attestation, *got.AttestationEventID)

		assert.ErrorIs(t, s.AddAnnouncementEventID(ctx, id, "not-hex"), repository.ErrInvalidPublicationID)
		assert.ErrorIs(t, s.AddAttestationEventID(ctx, id, announcement[:10]), repository.ErrInvalidPublicationID)
		assert.ErrorIs(t, s.AddAnnouncementEventID(ctx, "missing", announcement), repository.ErrNotFound)
	})

	t.Run("lists events in creation order", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)

		empty, err := s.ListEvents(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		for _, id := range []string{"c", "a", "b"} {
			saveEvent(t, s, id, 1)
		}
		_, err = s.SaveSignatures(ctx, "a", Signatures("a", 1))
		require.NoError(t, err)

		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Len(t, events, 3)
		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.EventID
			if i > 0 {
				prev := events[i-1]
				ordered := prev.CreatedAt.Before(e.CreatedAt) ||
					(prev.CreatedAt.Equal(e.CreatedAt) && prev.EventID < e.EventID)
				assert.True(t, ordered, "%s listed before %s", prev.EventID, e.EventID)
			}
			assert.Equal(t, e.EventID == "a", e.IsSigned(), e.EventID)
		}
		assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, h.Open(t).Ping(context.Background()))
	})

	if h.Reopen == nil {
		return
	}

	t.Run("survives a restart", func(t *testing.T) {
		ctx := context.Background()
		s := h.Open(t)

		indexes, err := s.NextNonceIndexes(ctx, 5)
		require.NoError(t, err)
		ann := EnumAnnouncement("durable", 2)
		_, err = s.SaveAnnouncement(ctx, ann, indexes[:2])
		require.NoError(t, err)
		_, err = s.SaveSignatures(ctx, "durable", Signatures("durable", 2))
		require.NoError(t, err)
		require.NoError(t, s.AddAnnouncementEventID(ctx, "durable", PublicationID(1)))
		before, err := s.GetEvent(ctx, "durable")
		require.NoError(t, err)

		s = h.Reopen(t, s)

		next, err := s.NextNonceIndexes(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []uint32{5}, next, "allocated but unbound indexes are not reissued")

		after, err := s.GetEvent(ctx, "durable")
		require.NoError(t, err)
		assert.Equal(t, before, after)

		_, err = s.SaveSignatures(ctx, "durable", Signatures("again", 2))
		assert.ErrorIs(t, err, repository.ErrEventAlreadySigned)

		_, err = s.SaveAnnouncement(ctx, EnumAnnouncement("late", 3), indexes[2:])
		assert.NoError(t, err, "indexes allocated before the restart can still be bound")
	})
}

func saveEvent(t *testing.T, s repository.Store, eventID string, nonces int) string {
	t.Helper()
	ctx := context.Background()
	indexes, err := s.NextNonceIndexes(ctx, nonces)
	require.NoError(t, err)
	id, err := s.SaveAnnouncement(ctx, EnumAnnouncement(eventID, nonces), indexes)
	require.NoError(t, err)
	return id
}
