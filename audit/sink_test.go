package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"marketd/core/types"
)

type testEvent struct {
	evt *types.Event
}

func (e testEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e testEvent) Event() *types.Event { return e.evt }

func openTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := Open("sqlite", filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	return sink
}

func TestSinkPersistsEvents(t *testing.T) {
	sink := openTestSink(t)

	sink.Emit(testEvent{evt: &types.Event{
		Type:       "listing.sold",
		Attributes: map[string]string{"price": "500"},
	}})
	sink.Emit(testEvent{evt: &types.Event{
		Type:       "auction.bid_placed",
		Attributes: map[string]string{"amount": "1000"},
	}})

	entries, err := sink.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "auction.bid_placed", entries[0].EventType)
	require.Equal(t, "listing.sold", entries[1].EventType)
	require.Contains(t, entries[1].Attributes, `"price":"500"`)
}

func TestSinkCountByType(t *testing.T) {
	sink := openTestSink(t)

	for i := 0; i < 3; i++ {
		sink.Emit(testEvent{evt: &types.Event{Type: "escrow.created"}})
	}
	sink.Emit(testEvent{evt: &types.Event{Type: "escrow.released"}})

	count, err := sink.CountByType("escrow.created")
	require.NoError(t, err)
	require.Equal(t, int64(3), count)
}

func TestSinkRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "", nil)
	require.Error(t, err)
}
