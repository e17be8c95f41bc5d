package wal

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"orderbookd/pkg/engine"
)

func openTestWAL(t *testing.T, fsyncEveryN int) (*WAL, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orderbook.wal")
	w, err := Open(path, fsyncEveryN, nil)
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w, path
}

func placed(id string, seq uint64) PlacedPayload {
	return PlacedPayload{Order: engine.Order{
		ID: id, UserID: "u1", Symbol: "BTC-USD",
		Side: engine.Buy, Type: engine.Limit,
		Price: 100, Qty: 10, Seq: seq,
	}}
}

func TestAppendAssignsGaplessSequences(t *testing.T) {
	w, _ := openTestWAL(t, 1)

	for i := 1; i <= 5; i++ {
		seq, err := w.Append(OrderPlaced, placed("o", 0))
		require.NoError(t, err)
		require.Equal(t, uint64(i), seq)
	}
	require.Equal(t, uint64(5), w.CurrentSequence())
}

func TestReadAllRoundTrip(t *testing.T) {
	w, _ := openTestWAL(t, 1)

	_, err := w.Append(OrderPlaced, placed("a", 1))
	require.NoError(t, err)
	_, err = w.Append(OrderCancelled, CancelledPayload{Symbol: "BTC-USD", OrderID: "a"})
	require.NoError(t, err)

	entries, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, OrderPlaced, entries[0].Type)
	require.Equal(t, OrderCancelled, entries[1].Type)
	require.Equal(t, uint64(1), entries[0].Seq)
	require.Equal(t, uint64(2), entries[1].Seq)
}

func TestReadSinceFilters(t *testing.T) {
	w, _ := openTestWAL(t, 1)

	for i := 0; i < 4; i++ {
		_, err := w.Append(OrderPlaced, placed("o", 0))
		require.NoError(t, err)
	}

	tail, err := w.ReadSince(2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, uint64(3), tail[0].Seq)
	require.Equal(t, uint64(4), tail[1].Seq)
}

func TestReopenRecoversSequence(t *testing.T) {
	w, path := openTestWAL(t, 1)

	_, err := w.Append(OrderPlaced, placed("a", 1))
	require.NoError(t, err)
	_, err = w.Append(OrderPlaced, placed("b", 2))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	reopened, err := Open(path, 1, nil)
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, uint64(2), reopened.CurrentSequence())
	seq, err := reopened.Append(OrderPlaced, placed("c", 3))
	require.NoError(t, err)
	require.Equal(t, uint64(3), seq)
}

func TestMalformedTailLineSkipped(t *testing.T) {
	w, path := openTestWAL(t, 1)

	_, err := w.Append(OrderPlaced, placed("a", 1))
	require.NoError(t, err)
	_, err = w.Append(OrderPlaced, placed("b", 2))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Simulate a crash mid-write: a torn line at the end of the file.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":3,"ts":123,"type":"ORDER_PL`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path, 1, nil)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2, "torn tail must not corrupt prior entries")
	require.Equal(t, uint64(2), reopened.CurrentSequence())
}

func TestAppendAfterTornTailIsRecoverable(t *testing.T) {
	w, path := openTestWAL(t, 1)

	_, err := w.Append(OrderPlaced, placed("a", 1))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	// Crash mid-write: partial bytes with no trailing newline.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":2,"ts":123,"type":"OR`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path, 1, nil)
	require.NoError(t, err)
	defer reopened.Close()

	seq, err := reopened.Append(OrderPlaced, placed("b", 2))
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)

	entries, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2, "entry appended after a torn tail must not merge into it")
	require.Equal(t, uint64(1), entries[0].Seq)
	require.Equal(t, uint64(2), entries[1].Seq)
}

func TestOversizedLineSkipped(t *testing.T) {
	w, path := openTestWAL(t, 1)

	_, err := w.Append(OrderPlaced, placed("a", 1))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	junk := append(bytes.Repeat([]byte{'x'}, maxLineSize+1), '\n')
	_, err = f.Write(junk)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path, 1, nil)
	require.NoError(t, err)
	defer reopened.Close()

	_, err = reopened.Append(OrderPlaced, placed("b", 2))
	require.NoError(t, err)

	entries, err := reopened.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 2, "oversized garbage must not abort the read")
	require.Equal(t, uint64(2), entries[1].Seq)
}

func TestFsyncEveryNAcceptsWritesBetweenSyncs(t *testing.T) {
	w, _ := openTestWAL(t, 100)

	for i := 0; i < 10; i++ {
		_, err := w.Append(OrderPlaced, placed("o", 0))
		require.NoError(t, err)
	}
	require.NoError(t, w.Sync())

	entries, err := w.ReadAll()
	require.NoError(t, err)
	require.Len(t, entries, 10)
}

func TestTruncateResets(t *testing.T) {
	w, _ := openTestWAL(t, 1)

	_, err := w.Append(OrderPlaced, placed("a", 1))
	require.NoError(t, err)
	require.NoError(t, w.Truncate())

	require.Equal(t, uint64(0), w.CurrentSequence())
	entries, err := w.ReadAll()
	require.NoError(t, err)
	require.Empty(t, entries)

	seq, err := w.Append(OrderPlaced, placed("b", 1))
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)
}
