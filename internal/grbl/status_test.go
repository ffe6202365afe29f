package grbl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointillist/internal/serialmux"
	"github.com/banshee-data/pointillist/internal/timeutil"
)

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("<Run|MPos:12.500,-7.250,3.000|FS:800,0>")
	require.NoError(t, err)
	assert.Equal(t, "Run", st.State)
	assert.Equal(t, [3]float64{12.5, -7.25, 3}, st.MPos)

	st, err = ParseStatus("<Idle>")
	require.NoError(t, err)
	assert.Equal(t, "Idle", st.State)

	_, err = ParseStatus("ok")
	assert.Error(t, err)
	_, err = ParseStatus("<Idle|MPos:a,b,c>")
	assert.Error(t, err)
}

func TestControllerStatus(t *testing.T) {
	c, port := newTestController(t, nil)
	c.Clock = timeutil.RealClock{}
	port.Respond = func(written []byte) []byte {
		if string(written) == "?" {
			return []byte("[MSG:noise]\r\n<Hold:0|MPos:1.000,2.000,0.000|FS:0,0>\r\n")
		}
		return nil
	}

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hold:0", st.State)
	assert.Equal(t, [3]float64{1, 2, 0}, st.MPos)
}

func TestControllerStatusDisabledMux(t *testing.T) {
	d := serialmux.NewDisabledSerialMux()
	c := NewController(d)
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Idle", st.State)
}
