package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"orderbookd/pkg/engine"
)

type memStore struct {
	snaps   []*Snapshot
	pruned  int
	saveErr error
	loadErr error
}

func (m *memStore) SaveSnapshot(s *Snapshot) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snaps = append(m.snaps, s)
	return nil
}

func (m *memStore) LoadLatestSnapshot() (*Snapshot, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if len(m.snaps) == 0 {
		return nil, nil
	}
	return m.snaps[len(m.snaps)-1], nil
}

func (m *memStore) PruneSnapshots(keep int) error {
	m.pruned++
	if len(m.snaps) > keep {
		m.snaps = m.snaps[len(m.snaps)-keep:]
	}
	return nil
}

func bookState() *engine.State {
	eng := engine.New()
	eng.Place(&engine.Order{
		ID: "a", UserID: "u", Symbol: "BTC-USD",
		Side: engine.Buy, Type: engine.Limit, Price: 100, Qty: 10, Seq: 1,
	})
	return eng.FullState()
}

func captureAt(seq uint64, st *engine.State) CaptureFunc {
	return func() (uint64, *engine.State) { return seq, st }
}

func TestCaptureNowPersistsAndPrunes(t *testing.T) {
	store := &memStore{}
	mgr := NewManager(store, time.Minute, 2, captureAt(7, bookState()), nil)

	require.NoError(t, mgr.CaptureNow())
	require.Len(t, store.snaps, 1)
	require.Equal(t, 1, store.pruned)

	snap := store.snaps[0]
	require.Equal(t, uint64(7), snap.Sequence)
	require.NotZero(t, snap.Timestamp)
	require.NotEmpty(t, snap.Checksum)

	ok, err := snap.Verify()
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLoadLatestEmptyStore(t *testing.T) {
	mgr := NewManager(&memStore{}, time.Minute, 2, captureAt(0, bookState()), nil)

	snap, err := mgr.LoadLatest()
	require.NoError(t, err)
	require.Nil(t, snap, "empty store means full replay, not an error")
}

func TestLoadLatestRejectsBadChecksum(t *testing.T) {
	store := &memStore{}
	mgr := NewManager(store, time.Minute, 2, captureAt(3, bookState()), nil)
	require.NoError(t, mgr.CaptureNow())

	// Corrupt the persisted books after the checksum was computed.
	store.snaps[0].Books.Books[0].Bids[0].Qty++

	snap, err := mgr.LoadLatest()
	require.NoError(t, err)
	require.Nil(t, snap, "corrupt snapshot must be discarded, not returned")
}

func TestLoadLatestPropagatesStoreError(t *testing.T) {
	store := &memStore{loadErr: errors.New("disk gone")}
	mgr := NewManager(store, time.Minute, 2, captureAt(0, bookState()), nil)

	_, err := mgr.LoadLatest()
	require.Error(t, err)
}

func TestCaptureNowPropagatesSaveError(t *testing.T) {
	store := &memStore{saveErr: errors.New("disk full")}
	mgr := NewManager(store, time.Minute, 2, captureAt(1, bookState()), nil)

	require.Error(t, mgr.CaptureNow())
}

func TestChecksumStableForEqualStates(t *testing.T) {
	a, err := BooksChecksum(bookState())
	require.NoError(t, err)
	b, err := BooksChecksum(bookState())
	require.NoError(t, err)
	require.Equal(t, a, b)

	other := bookState()
	other.Books[0].Bids[0].Price++
	c, err := BooksChecksum(other)
	require.NoError(t, err)
	require.NotEqual(t, a, c)
}
