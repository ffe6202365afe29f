package pump

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointillist/internal/monitoring"
	"github.com/banshee-data/pointillist/internal/timeutil"
)

// tracePin appends its index to a shared log whenever it goes high.
type tracePin struct {
	idx   int
	level *[4]bool
	trace *[][4]bool
}

func (p tracePin) Out(high bool) error {
	p.level[p.idx] = high
	if p.idx == 3 {
		*p.trace = append(*p.trace, *p.level)
	}
	return nil
}

func newTraced() (*Stepper, *[][4]bool) {
	var level [4]bool
	var trace [][4]bool
	var pins [4]Pin
	for i := range pins {
		pins[i] = tracePin{idx: i, level: &level, trace: &trace}
	}
	s := NewStepper(pins)
	s.Clock = timeutil.NewMockClock(time.Unix(0, 0))
	return s, &trace
}

func memoryStepper() (*Stepper, [4]*MemoryPin, *timeutil.MockClock) {
	var mem [4]*MemoryPin
	var pins [4]Pin
	for i := range pins {
		mem[i] = &MemoryPin{}
		pins[i] = mem[i]
	}
	s := NewStepper(pins)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	s.Clock = clock
	return s, mem, clock
}

func quiet(t *testing.T) {
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.RestoreLogger)
}

func TestMoveWritesEveryPhase(t *testing.T) {
	quiet(t)
	s, mem, clock := memoryStepper()

	require.NoError(t, s.Move(context.Background(), 1, Up))
	for i, p := range mem {
		assert.Equal(t, 512*8+1, p.Writes, "pin %d", i)
		assert.False(t, p.High, "pin %d left high", i)
	}
	assert.Len(t, clock.Sleeps(), 512*8)
	assert.Equal(t, 512*8*DefaultStepDelay, clock.Slept())
}

func TestMoveTruncatesSteps(t *testing.T) {
	quiet(t)
	s, mem, _ := memoryStepper()
	s.StepsPerUnit = 10
	require.NoError(t, s.Move(context.Background(), 0.25, Up))
	assert.Equal(t, 2*8+1, mem[0].Writes)
	assert.Equal(t, 0, s.Steps(0.09))
}

func TestMoveSequenceOrder(t *testing.T) {
	quiet(t)
	s, trace := newTraced()
	s.StepsPerUnit = 1

	require.NoError(t, s.Move(context.Background(), 1, Up))
	want := append(halfStep[:], [4]bool{})
	assert.Equal(t, want, *trace)

	*trace = nil
	require.NoError(t, s.Move(context.Background(), 1, Down))
	var rev [][4]bool
	for i := len(halfStep) - 1; i >= 0; i-- {
		rev = append(rev, halfStep[i])
	}
	rev = append(rev, [4]bool{})
	assert.Equal(t, rev, *trace)
}

func TestMoveDownRepeatsReversedSequence(t *testing.T) {
	quiet(t)
	s, trace := newTraced()
	s.StepsPerUnit = 3
	require.NoError(t, s.Move(context.Background(), 1, Down))
	assert.Len(t, *trace, 3*8+1)
	assert.Equal(t, halfStep[7], (*trace)[8])
}

func TestMoveReleasesPinsOnCancel(t *testing.T) {
	quiet(t)
	s, mem, _ := memoryStepper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Move(ctx, 5, Up)
	assert.ErrorIs(t, err, context.Canceled)
	for _, p := range mem {
		assert.Equal(t, 1, p.Writes)
		assert.False(t, p.High)
	}
}

func TestMoveReleasesPinsOnPinError(t *testing.T) {
	quiet(t)
	s, mem, _ := memoryStepper()
	boom := errors.New("gpio fault")
	mem[2].Fail = boom
	mem[2].FailAfter = 3

	err := s.Move(context.Background(), 1, Up)
	assert.ErrorIs(t, err, boom)
	for i, p := range mem {
		assert.False(t, p.High, "pin %d left high", i)
	}
}

func TestMoveRejectsBadAmounts(t *testing.T) {
	quiet(t)
	s, mem, _ := memoryStepper()
	for _, u := range []float64{-1, math.NaN(), math.Inf(1)} {
		assert.Error(t, s.Move(context.Background(), u, Up))
	}
	assert.Zero(t, mem[0].Writes)
}

func TestZeroDelaySkipsSleep(t *testing.T) {
	quiet(t)
	s, _, clock := memoryStepper()
	s.StepDelay = 0
	require.NoError(t, s.Dispense(context.Background(), 1, Down))
	assert.Empty(t, clock.Sleeps())
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("down")
	require.NoError(t, err)
	assert.Equal(t, Down, d)
	d, err = ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Up, d)
	_, err = ParseDirection("sideways")
	assert.Error(t, err)
	assert.Equal(t, "up", Up.String())
}

func TestLogPins(t *testing.T) {
	quiet(t)
	s := NewStepper(LogPins())
	s.StepDelay = 0
	require.NoError(t, s.Move(context.Background(), 0.01, Up))
	for _, p := range s.Pins {
		assert.False(t, p.(*MemoryPin).High)
	}
}
