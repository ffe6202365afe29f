package grbl

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointillist/internal/timeutil"
)

func TestJogCommand(t *testing.T) {
	tests := []struct {
		jog  Jog
		want string
	}{
		{Jog{Axis: "x", Distance: 1, Feed: 1000}, "$J=G91 X1.00 F1000"},
		{Jog{Axis: "Y", Distance: -0.5, Feed: 250.5}, "$J=G91 Y-0.50 F250.5"},
		{Jog{Axis: " z ", Distance: 10, Feed: 500}, "$J=G91 Z10.00 F500"},
	}
	for _, tt := range tests {
		got, err := tt.jog.Command()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestJogCommandRejects(t *testing.T) {
	for _, j := range []Jog{
		{Axis: "A", Distance: 1, Feed: 100},
		{Axis: "X", Distance: math.NaN(), Feed: 100},
		{Axis: "X", Distance: 1, Feed: 0},
		{Axis: "X", Distance: 1, Feed: -5},
	} {
		_, err := j.Command()
		assert.Error(t, err, "%+v", j)
	}
}

func TestControllerJog(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	c.Clock = timeutil.RealClock{}

	require.NoError(t, c.Jog(context.Background(), Jog{Axis: "X", Distance: -1, Feed: 1000}))
	assert.Equal(t, "$J=G91 X-1.00 F1000\n", port.Written())

	assert.Error(t, c.Jog(context.Background(), Jog{Axis: "Q", Distance: 1, Feed: 1}))
}
