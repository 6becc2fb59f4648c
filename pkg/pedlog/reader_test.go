package pedlog_test

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pedlog/pedlog-go/pkg/pedlog"
	"github.com/pedlog/pedlog-go/pkg/pedlog/event"
)

const waitFor = 5 * time.Second
const tick = 5 * time.Millisecond

func newLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.log")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func appendLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	for _, l := range lines {
		_, err := f.WriteString(l + "\n")
		require.NoError(t, err)
	}
}

func startReader(t *testing.T, path string, opts ...pedlog.ReaderOption) *pedlog.Reader {
	t.Helper()
	r, err := pedlog.NewReader(pedlog.StaticLocation(path), opts...)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	t.Cleanup(func() { _ = r.Stop() })
	return r
}

func nextEvent(t *testing.T, r *pedlog.Reader) event.Event {
	t.Helper()
	var ev event.Event
	require.Eventually(t, func() bool {
		var ok bool
		ev, ok = r.NextEvent()
		return ok
	}, waitFor, tick, "no event")
	return ev
}

func TestReader_Combat(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path, "2024-01-01 12:00:00 [System] [] You inflicted 45.5 points of damage")

	ev := nextEvent(t, r)
	c, ok := ev.(*event.Combat)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, event.KindCombat, c.Kind())
	assert.True(t, c.Amount.Equal(decimal.RequireFromString("45.5")))
	assert.False(t, c.Critical)
	assert.False(t, c.Miss)
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local), c.Time())

	_, ok = r.NextEvent()
	assert.False(t, ok, "expected exactly one event")
}

func TestReader_ShrapnelLoot(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path, "2024-01-01 12:00:01 [System] [] You received Shrapnel x (120) Value: 0.0000 PED")

	loot, ok := nextEvent(t, r).(*event.Loot)
	require.True(t, ok)
	assert.Equal(t, "Shrapnel", loot.Item)
	assert.Equal(t, 120, loot.Quantity)
	assert.True(t, loot.Value.Equal(decimal.RequireFromString("0.0120")), "value = %s", loot.Value)
}

func TestReader_SkillImproved(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path, "2024-01-01 12:00:02 [System] [] Your Rifle has improved by 3.2")

	skill, ok := nextEvent(t, r).(*event.Skill)
	require.True(t, ok)
	assert.Equal(t, "Rifle", skill.Skill)
	assert.True(t, skill.Amount.Equal(decimal.RequireFromString("3.2")))
}

func TestReader_GlobalsHallOfFame(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path,
		"2024-01-01 12:00:03 [Globals] [] John Doe killed a creature (Atrox Young) with a value of 512 PED! A record has been added to the Hall of Fame!",
		"2024-01-01 12:00:04 [Globals] [] John Doe killed a creature (Atrox Young) with a value of 55 PED!",
	)

	hof, ok := nextEvent(t, r).(*event.Global)
	require.True(t, ok)
	assert.True(t, hof.HallOfFame)
	assert.Equal(t, "John Doe", hof.Player)
	assert.Equal(t, "Atrox Young", hof.Subject)
	assert.True(t, hof.Value.Equal(decimal.NewFromInt(512)))

	plain, ok := nextEvent(t, r).(*event.Global)
	require.True(t, ok)
	assert.False(t, plain.HallOfFame)
	assert.True(t, plain.Value.Equal(decimal.NewFromInt(55)))
}

func TestReader_OnlyNewLines(t *testing.T) {
	path := newLog(t, "2024-01-01 11:00:00 [System] [] You healed yourself 10.0 points\n")
	r := startReader(t, path)

	appendLines(t, path, "2024-01-01 12:00:00 [System] [] You healed yourself 20.0 points")

	heal, ok := nextEvent(t, r).(*event.Heal)
	require.True(t, ok)
	assert.True(t, heal.Amount.Equal(decimal.RequireFromString("20")))
}

func TestReader_FromStart(t *testing.T) {
	path := newLog(t, "\ufeff2024-01-01 11:00:00 [System] [] You healed yourself 10.0 points\n")
	r := startReader(t, path, pedlog.WithFromStart(true))

	heal, ok := nextEvent(t, r).(*event.Heal)
	require.True(t, ok)
	assert.True(t, heal.Amount.Equal(decimal.RequireFromString("10")))
}

func TestReader_OrderAndStats(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path,
		"2024-01-01 12:00:00 [System] [] You healed yourself 1.0 points",
		"not a chat line",
		"2024-01-01 12:00:01 [Trade] [Someone] WTS stuff",
		"2024-01-01 12:00:02 [System] [] Something nobody has a rule for",
		"2024-01-01 12:00:03 [System] [] You missed",
		"2024-01-01 12:00:04 [System] [] Damage deflected!",
	)

	kinds := []event.Kind{}
	require.Eventually(t, func() bool {
		for {
			ev, ok := r.NextEvent()
			if !ok {
				break
			}
			kinds = append(kinds, ev.Kind())
		}
		return len(kinds) == 3
	}, waitFor, tick)
	assert.Equal(t, []event.Kind{event.KindHeal, event.KindDodge, event.KindDeflect}, kinds)

	require.Eventually(t, func() bool { return r.Stats().Lines == 6 }, waitFor, tick)
	st := r.Stats()
	assert.Equal(t, uint64(3), st.Events)
	assert.Equal(t, uint64(2), st.Ignored)
	assert.Equal(t, uint64(1), st.Unmatched)
	assert.Zero(t, st.Malformed)
}

func TestReader_Overflow(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path, pedlog.WithCapacity(10))

	lines := make([]string, 11)
	for i := range lines {
		lines[i] = "2024-01-01 12:00:00 [System] [] You took 1.0 points of damage"
	}
	appendLines(t, path, lines...)

	require.Eventually(t, func() bool { return r.Stats().Events == 11 }, waitFor, tick)
	assert.Equal(t, 5, r.Pending())
	assert.Equal(t, uint64(6), r.Stats().Evicted)
}

// syncBuffer is a bytes.Buffer safe for the reader goroutine to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestReader_MalformedWarningsRateLimited(t *testing.T) {
	var out syncBuffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	path := newLog(t, "")
	r := startReader(t, path, pedlog.WithLogger(logger))

	const n = 100
	lines := make([]string, n)
	for i := range lines {
		lines[i] = "2024-13-45 99:00:00 [System] [] You healed yourself 12.5 points"
	}
	appendLines(t, path, lines...)

	require.Eventually(t, func() bool { return r.Stats().Malformed == n }, waitFor, tick)
	warned := bytes.Count([]byte(out.String()), []byte("dropping malformed line"))
	assert.GreaterOrEqual(t, warned, 1)
	assert.Less(t, warned, n)
}

func TestReader_DecodeErrorSkipped(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path,
		"2024-01-01 12:00:00 [System] [] You healed yourself \xff\xfe points",
		"2024-01-01 12:00:01 [System] [] You healed yourself 2.0 points",
	)

	ev := nextEvent(t, r)
	heal, ok := ev.(*event.Heal)
	require.True(t, ok, "got %T", ev)
	assert.True(t, heal.Amount.Equal(decimal.RequireFromString("2.0")))

	require.Eventually(t, func() bool { return r.Stats().DecodeErrors == 1 }, waitFor, tick)
	assert.Equal(t, uint64(1), r.Stats().Lines)
	assert.Equal(t, pedlog.StateRunning, r.State())
	assert.NoError(t, r.Err())
}

func TestReader_IncludeKinds(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path, pedlog.WithIncludeKinds(event.KindLoot))

	appendLines(t, path,
		"2024-01-01 12:00:00 [System] [] You healed yourself 1.0 points",
		"2024-01-01 12:00:01 [System] [] You received Animal Oil Residue x (3) Value: 0.0300 PED",
	)

	loot, ok := nextEvent(t, r).(*event.Loot)
	require.True(t, ok)
	assert.Equal(t, "Animal Oil Residue", loot.Item)
	assert.False(t, loot.UnitValue.Valid)
	assert.Equal(t, uint64(1), r.Stats().Filtered)
}

func TestReader_Lifecycle(t *testing.T) {
	path := newLog(t, "")
	r, err := pedlog.NewReader(pedlog.StaticLocation(path))
	require.NoError(t, err)
	assert.Equal(t, pedlog.StateIdle, r.State())
	assert.Nil(t, r.Done())

	require.NoError(t, r.Start())
	require.NoError(t, r.Start(), "second Start while running")
	assert.Equal(t, pedlog.StateRunning, r.State())
	assert.Equal(t, path, r.Path())

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop(), "second Stop")
	assert.Equal(t, pedlog.StateStopped, r.State())
	assert.NoError(t, r.Err())

	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}

	assert.ErrorIs(t, r.Start(), pedlog.ErrReaderClosed)
}

func TestReader_StopClearsBuffer(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path)

	appendLines(t, path, "2024-01-01 12:00:00 [System] [] You healed yourself 1.0 points")
	require.Eventually(t, func() bool { return r.Pending() == 1 }, waitFor, tick)

	require.NoError(t, r.Stop())
	_, ok := r.NextEvent()
	assert.False(t, ok)
}

func TestReader_ConcurrentStartStop(t *testing.T) {
	path := newLog(t, "")
	r, err := pedlog.NewReader(pedlog.StaticLocation(path))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Start()
		}()
	}
	wg.Wait()
	assert.Equal(t, pedlog.StateRunning, r.State())

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.Stop())
		}()
	}
	wg.Wait()
	assert.Equal(t, pedlog.StateStopped, r.State())
}

func TestReader_StopBeforeStart(t *testing.T) {
	r, err := pedlog.NewReader(pedlog.StaticLocation(newLog(t, "")))
	require.NoError(t, err)
	require.NoError(t, r.Stop())
	assert.Equal(t, pedlog.StateStopped, r.State())
	assert.ErrorIs(t, r.Start(), pedlog.ErrReaderClosed)
}

func TestReader_NoLocation(t *testing.T) {
	for name, loc := range map[string]pedlog.Locator{
		"nil":   nil,
		"empty": pedlog.StaticLocation(""),
	} {
		t.Run(name, func(t *testing.T) {
			r, err := pedlog.NewReader(loc)
			require.NoError(t, err)
			assert.ErrorIs(t, r.Start(), pedlog.ErrNoLocation)
			assert.Equal(t, pedlog.StateIdle, r.State())
		})
	}
}

type failingLocator struct{ err error }

func (f failingLocator) Location() (string, error) { return "", f.err }

func TestReader_LocatorError(t *testing.T) {
	boom := errors.New("boom")
	r, err := pedlog.NewReader(failingLocator{err: boom})
	require.NoError(t, err)

	err = r.Start()
	var re *pedlog.ReaderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, pedlog.ReaderOpLocate, re.Op)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, pedlog.StateIdle, r.State())
}

func TestReader_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.log")
	r, err := pedlog.NewReader(pedlog.StaticLocation(path))
	require.NoError(t, err)

	err = r.Start()
	var re *pedlog.ReaderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, pedlog.ReaderOpOpen, re.Op)
	assert.Equal(t, path, re.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, pedlog.StateIdle, r.State())

	// The file appears later; the same reader can still start.
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, r.Start())
	assert.NoError(t, r.Stop())
}

func TestReader_EndOfStream(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path, pedlog.WithReOpen(false))

	appendLines(t, path, "2024-01-01 12:00:00 [System] [] You healed yourself 1.0 points")
	require.Eventually(t, func() bool { return r.Pending() == 1 }, waitFor, tick)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return r.State() == pedlog.StateStopped }, waitFor, tick)
	assert.NoError(t, r.Err())

	// Events buffered before the end stay available.
	_, ok := r.NextEvent()
	assert.True(t, ok)
}

func TestReader_EndOfStreamCountsDecodeErrors(t *testing.T) {
	path := newLog(t, "")
	r := startReader(t, path, pedlog.WithReOpen(false))

	appendLines(t, path,
		"2024-01-01 12:00:00 [System] [] You healed yourself \xff points",
		"2024-01-01 12:00:01 [System] [] You healed yourself \xfe points",
		"2024-01-01 12:00:02 [System] [] You healed yourself \xfd points",
		"2024-01-01 12:00:03 [System] [] You healed yourself 1.0 points",
	)
	require.Eventually(t, func() bool { return r.Pending() == 1 }, waitFor, tick)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return r.State() == pedlog.StateStopped }, waitFor, tick)
	assert.NoError(t, r.Err())

	// Every unreadable line is counted once the log has ended.
	assert.Equal(t, uint64(3), r.Stats().DecodeErrors)
	assert.Equal(t, uint64(1), r.Stats().Lines)
}

func TestReader_ID(t *testing.T) {
	a, err := pedlog.NewReader(nil)
	require.NoError(t, err)
	b, err := pedlog.NewReader(nil)
	require.NoError(t, err)

	_, err = uuid.Parse(a.ID())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestReader_InvalidOptions(t *testing.T) {
	_, err := pedlog.NewReader(nil, pedlog.WithCapacity(-1))
	assert.Error(t, err)

	_, err = pedlog.NewReader(nil, pedlog.WithPollInterval(-time.Second))
	assert.Error(t, err)

	_, err = pedlog.NewReader(nil, pedlog.WithRulesFile(filepath.Join(t.TempDir(), "none.yaml")))
	var re *pedlog.ReaderError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, pedlog.ReaderOpRules, re.Op)
}
