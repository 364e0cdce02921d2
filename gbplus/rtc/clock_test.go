package rtc

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/gbplus/gbplus/savestate"
)

type fakeTime struct {
	now time.Time
}

func (f *fakeTime) Now() time.Time { return f.now }

func (f *fakeTime) advance(d time.Duration) { f.now = f.now.Add(d) }

func newTestClock() (*Clock, *fakeTime) {
	ft := &fakeTime{now: time.Unix(1_700_000_000, 0)}
	return New(ft), ft
}

func setRegister(c *Clock, reg, value uint8) {
	c.Select(reg)
	c.Write(value)
}

func TestSyncFollowsWallTime(t *testing.T) {
	c, ft := newTestClock()

	ft.advance(1500 * time.Millisecond)
	c.Sync()
	s, _, _, _ := c.Registers()
	assert.Equal(t, uint8(1), s)

	// the half second remainder carries into the next sync
	ft.advance(500 * time.Millisecond)
	c.Sync()
	s, _, _, _ = c.Registers()
	assert.Equal(t, uint8(2), s)
}

func TestHaltedClockDoesNotAdvance(t *testing.T) {
	c, ft := newTestClock()
	setRegister(c, RegDayHigh, 1<<haltBit)

	ft.advance(time.Hour)
	c.Sync()
	s, m, h, d := c.Registers()
	assert.Equal(t, []int{0, 0, 0, 0}, []int{int(s), int(m), int(h), int(d)})
	assert.True(t, c.Halted())
}

func TestLatch(t *testing.T) {
	c, ft := newTestClock()
	ft.advance(90 * time.Second)

	c.Select(RegMinutes)
	assert.Equal(t, uint8(0), c.Read(), "latched copy is stale until latched")

	c.Latch(1)
	assert.Equal(t, uint8(0), c.Read(), "latch needs a 0 write first")

	c.Latch(0)
	c.Latch(1)
	assert.Equal(t, uint8(1), c.Read())
	c.Select(RegSeconds)
	assert.Equal(t, uint8(30), c.Read())
}

func TestAdvanceCarries(t *testing.T) {
	testCases := []struct {
		desc     string
		start    registers
		seconds  uint64
		expected registers
		carry    bool
		wraps    uint64
	}{
		{"second to minute", registers{59, 0, 0, 0}, 1, registers{0, 1, 0, 0}, false, 0},
		{"minute to hour", registers{59, 59, 0, 0}, 1, registers{0, 0, 1, 0}, false, 0},
		{"hour to day", registers{59, 59, 23, 0}, 1, registers{0, 0, 0, 1}, false, 0},
		{"day 255 to 256", registers{0, 0, 0, 255}, 86400, registers{0, 0, 0, 256}, false, 0},
		{"day counter overflow", registers{0, 0, 0, 511}, 86400, registers{0, 0, 0, 0}, true, 1},
		{"three full cycles", registers{0, 0, 0, 0}, 3 * 512 * 86400, registers{0, 0, 0, 0}, true, 3},
		{"invalid seconds wrap without carry", registers{63, 0, 0, 0}, 1, registers{0, 0, 0, 0}, false, 0},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			c, _ := newTestClock()
			c.live = tC.start
			c.Advance(tC.seconds)
			assert.Equal(t, tC.expected, c.live)
			assert.Equal(t, tC.carry, c.Carry())
			assert.Equal(t, tC.wraps, c.NumWraps())
		})
	}
}

func TestFetchRestoreWithoutElapsedTime(t *testing.T) {
	c, ft := newTestClock()
	ft.advance(3*24*time.Hour + 5*time.Hour + 7*time.Minute + 9*time.Second)
	c.Sync()

	data, err := c.Fetch()
	require.NoError(t, err)

	before := c.live
	restored := New(ft)
	require.NoError(t, restored.Restore(data))
	assert.Equal(t, before, restored.live)
	assert.Equal(t, c.Carry(), restored.Carry())
	assert.Equal(t, c.NumWraps(), restored.NumWraps())
}

func TestRestoreForwardFills(t *testing.T) {
	c, ft := newTestClock()
	setRegister(c, RegHours, 23)
	setRegister(c, RegMinutes, 59)
	setRegister(c, RegSeconds, 50)

	data, err := c.Fetch()
	require.NoError(t, err)

	t.Run("across a day boundary", func(t *testing.T) {
		later := &fakeTime{now: ft.now.Add(20 * time.Second)}
		r := New(later)
		require.NoError(t, r.Restore(data))
		s, m, h, d := r.Registers()
		assert.Equal(t, uint8(10), s)
		assert.Equal(t, uint8(0), m)
		assert.Equal(t, uint8(0), h)
		assert.Equal(t, uint16(1), d)
		assert.False(t, r.Carry())
	})

	t.Run("more than one day counter cycle", func(t *testing.T) {
		later := &fakeTime{now: ft.now.Add(600 * 24 * time.Hour)}
		r := New(later)
		require.NoError(t, r.Restore(data))
		_, _, h, d := r.Registers()
		assert.Equal(t, uint8(23), h)
		assert.Equal(t, uint16(600-512), d)
		assert.True(t, r.Carry())
		assert.Equal(t, uint64(1), r.NumWraps())
	})

	t.Run("clock halted in snapshot", func(t *testing.T) {
		var s Snapshot
		require.NoError(t, json.Unmarshal(data, &s))
		s.Halted = true
		halted, err := json.Marshal(s)
		require.NoError(t, err)

		later := &fakeTime{now: ft.now.Add(time.Hour)}
		r := New(later)
		require.NoError(t, r.Restore(halted))
		sec, _, _, _ := r.Registers()
		assert.Equal(t, uint8(50), sec)
	})
}

func TestFetchRestoreKeepsSubsecond(t *testing.T) {
	c, ft := newTestClock()
	ft.now = ft.now.Add(900 * time.Millisecond)
	data, err := c.Fetch()
	require.NoError(t, err)

	later := &fakeTime{now: ft.now.Add(100 * time.Millisecond)}
	r := New(later)
	require.NoError(t, r.Restore(data))
	sec, _, _, _ := r.Registers()
	assert.Equal(t, uint8(1), sec, "0.9s before fetch plus 0.1s after")

	// repeated short sessions do not gain time
	for range 10 {
		data, err = r.Fetch()
		require.NoError(t, err)
		later.now = later.now.Add(100 * time.Millisecond)
		r = New(later)
		require.NoError(t, r.Restore(data))
	}
	sec, _, _, _ = r.Registers()
	assert.Equal(t, uint8(2), sec)
}

func TestRestoreRejectsMalformedSnapshot(t *testing.T) {
	c, _ := newTestClock()
	setRegister(c, RegMinutes, 12)

	err := c.Restore([]byte("{not json"))
	require.Error(t, err)
	_, m, _, _ := c.Registers()
	assert.Equal(t, uint8(12), m)
}

func TestSnapshotFieldNames(t *testing.T) {
	c, _ := newTestClock()
	data, err := c.Fetch()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, key := range []string{"timestamp", "halted", "carry_bit", "num_wraps"} {
		assert.Contains(t, fields, key)
	}
}

func TestDirtyFlag(t *testing.T) {
	c, _ := newTestClock()
	assert.False(t, c.Dirty())
	setRegister(c, RegSeconds, 5)
	assert.True(t, c.Dirty())
	c.ClearDirty()
	assert.False(t, c.Dirty())
}

func TestSaveLoad(t *testing.T) {
	c, ft := newTestClock()
	setRegister(c, RegDayLow, 200)
	setRegister(c, RegHours, 4)
	c.Select(RegHours)

	e := savestate.NewEncoder()
	c.Save(e)

	r := New(ft)
	d := savestate.NewDecoder(e.Data())
	r.Load(d)
	require.NoError(t, d.Err())
	assert.Equal(t, c.live, r.live)
	assert.Equal(t, uint8(4), r.Read())
}
