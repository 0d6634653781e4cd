package eventlog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEvent struct {
	Name string
	TS   int64
}

func (e testEvent) EventTime() int64 { return e.TS }

func names(log []testEvent) []string {
	out := make([]string, len(log))
	for i, e := range log {
		out[i] = e.Name
	}
	return out
}

func TestAppendKeepsMostRecentByCount(t *testing.T) {
	base := time.UnixMilli(1_000_000)
	var log []testEvent
	for i := 1; i <= 12; i++ {
		log = Append(log, testEvent{Name: "left" + string(rune('a'+i-1)), TS: base.UnixMilli() + int64(i)}, Policy{MaxCount: 10}, base)
		assert.LessOrEqual(t, len(log), 10)
	}

	require.Len(t, log, 10)
	// events 3..12 survive in original order
	assert.Equal(t, "leftc", log[0].Name)
	assert.Equal(t, "leftl", log[9].Name)
	for i := 1; i < len(log); i++ {
		assert.Less(t, log[i-1].TS, log[i].TS)
	}
}

func TestAppendDoesNotMutateInput(t *testing.T) {
	now := time.UnixMilli(5000)
	orig := []testEvent{{Name: "b", TS: 20}, {Name: "a", TS: 10}}
	out := Append(orig, testEvent{Name: "c", TS: 30}, Policy{MaxCount: 2}, now)

	assert.Equal(t, []string{"b", "a"}, names(orig))
	assert.Equal(t, []string{"b", "c"}, names(out))
}

func TestAppendStableOnEqualTimestamps(t *testing.T) {
	now := time.UnixMilli(100)
	var log []testEvent
	for _, n := range []string{"a", "b", "c", "d"} {
		log = Append(log, testEvent{Name: n, TS: 100}, Policy{MaxCount: 3}, now)
	}
	assert.Equal(t, []string{"b", "c", "d"}, names(log))
}

func TestAppendEvictsByAge(t *testing.T) {
	now := time.UnixMilli(10_000)
	log := []testEvent{
		{Name: "old", TS: 4_999},
		{Name: "edge", TS: 5_000},
		{Name: "fresh", TS: 9_000},
	}
	out := Append(log, testEvent{Name: "new", TS: 10_000}, Policy{MaxAge: 5 * time.Second}, now)

	assert.Equal(t, []string{"edge", "fresh", "new"}, names(out))
	for _, e := range out {
		assert.GreaterOrEqual(t, e.TS, now.UnixMilli()-5000)
	}
}

func TestAppendAgeAndCount(t *testing.T) {
	now := time.UnixMilli(10_000)
	log := []testEvent{
		{Name: "old", TS: 1},
		{Name: "a", TS: 9_000},
		{Name: "b", TS: 9_100},
	}
	out := Append(log, testEvent{Name: "c", TS: 10_000}, Policy{MaxAge: 5 * time.Second, MaxCount: 2}, now)
	assert.Equal(t, []string{"b", "c"}, names(out))
}

func TestAppendSortsOutOfOrderEntries(t *testing.T) {
	log := []testEvent{{Name: "late", TS: 30}, {Name: "early", TS: 10}}
	out := Append(log, testEvent{Name: "mid", TS: 20}, Policy{}, time.UnixMilli(30))
	assert.Equal(t, []string{"early", "mid", "late"}, names(out))
}

func TestLatest(t *testing.T) {
	assert.Equal(t, int64(0), Latest[testEvent](nil))
	assert.Equal(t, int64(7), Latest([]testEvent{{TS: 3}, {TS: 7}, {TS: 5}}))
}

func TestAppendKeyedBoundsEachSubLog(t *testing.T) {
	now := time.UnixMilli(1000)
	logs := map[int][]testEvent{}
	for i := 0; i < 15; i++ {
		logs = AppendKeyed(logs, 1, testEvent{TS: int64(i)}, Policy{MaxCount: 10}, 10, now)
	}
	require.Len(t, logs[1], 10)
	assert.Equal(t, int64(5), logs[1][0].TS)
}

func TestAppendKeyedEvictsOldestPainter(t *testing.T) {
	now := time.UnixMilli(1000)
	logs := map[int][]testEvent{}
	for id := 1; id <= 11; id++ {
		logs = AppendKeyed(logs, id, testEvent{TS: int64(100 + id)}, Policy{MaxCount: 10}, 10, now)
	}
	require.Len(t, logs, 10)
	_, ok := logs[1]
	assert.False(t, ok, "painter with oldest last update should be evicted")
	for id := 2; id <= 11; id++ {
		assert.Contains(t, logs, id)
	}
}

func TestAppendKeyedRecentActivityKeepsSubLog(t *testing.T) {
	now := time.UnixMilli(1000)
	logs := map[int][]testEvent{}
	for id := 1; id <= 10; id++ {
		logs = AppendKeyed(logs, id, testEvent{TS: int64(id)}, Policy{MaxCount: 10}, 10, now)
	}
	// painter 1 moves again, so painter 2 is now the least recently active
	logs = AppendKeyed(logs, 1, testEvent{TS: 50}, Policy{MaxCount: 10}, 10, now)
	logs = AppendKeyed(logs, 11, testEvent{TS: 60}, Policy{MaxCount: 10}, 10, now)

	assert.Contains(t, logs, 1)
	assert.NotContains(t, logs, 2)
	assert.Len(t, logs, 10)
}

func TestAppendKeyedDoesNotMutateInput(t *testing.T) {
	now := time.UnixMilli(1000)
	orig := map[string][]testEvent{"a": {{TS: 1}}}
	out := AppendKeyed(orig, "b", testEvent{TS: 2}, Policy{}, 1, now)

	assert.Len(t, orig, 1)
	assert.Contains(t, orig, "a")
	assert.Equal(t, map[string][]testEvent{"b": {{TS: 2}}}, out)
}
