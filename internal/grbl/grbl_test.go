package grbl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/pointillist/internal/monitoring"
	"github.com/banshee-data/pointillist/internal/serialmux"
	"github.com/banshee-data/pointillist/internal/timeutil"
)

// newTestController wires a controller to an in-memory port whose replies
// come from respond.
func newTestController(t *testing.T, respond func(line string) string) (*Controller, *serialmux.TestableSerialPort) {
	t.Helper()
	monitoring.SetLogger(nil)
	t.Cleanup(monitoring.RestoreLogger)

	port := serialmux.NewTestableSerialPort()
	port.Respond = func(written []byte) []byte {
		if respond == nil || !strings.HasSuffix(string(written), "\n") {
			return nil
		}
		if reply := respond(strings.TrimRight(string(written), "\n")); reply != "" {
			return []byte(reply + "\r\n")
		}
		return nil
	}
	mux := serialmux.NewSerialMux(port)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = mux.Monitor(ctx) }()
	t.Cleanup(func() {
		cancel()
		_ = mux.Close()
	})

	c := NewController(mux)
	c.Clock = timeutil.NewMockClock(time.Unix(0, 0))
	return c, port
}

func alwaysOK(string) string { return "ok" }

func TestSendWaitsForOK(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	c.Clock = timeutil.RealClock{}

	resp, err := c.Send(context.Background(), "  G0 X2.50 F800 ")
	require.NoError(t, err)
	assert.Equal(t, "G0 X2.50 F800", resp.Command)
	assert.Equal(t, "G0 X2.50 F800\n", port.Written())
}

func TestSendCollectsMessages(t *testing.T) {
	c, _ := newTestController(t, func(line string) string {
		if line == "$$" {
			return "$100=40.000\r\n$101=40.000\r\nok"
		}
		return "ok"
	})
	c.Clock = timeutil.RealClock{}

	resp, err := c.Send(context.Background(), "$$")
	require.NoError(t, err)
	assert.Equal(t, []string{"$100=40.000", "$101=40.000"}, resp.Messages)
}

func TestSendEmptyLineIsNoop(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	_, err := c.Send(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, port.Written())
}

func TestSendStripsComments(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	c.Clock = timeutil.RealClock{}

	resp, err := c.Send(context.Background(), "G1 Z3.00 (retract) F500 ; "+strings.Repeat("c", 100))
	require.NoError(t, err)
	assert.Equal(t, "G1 Z3.00 F500", resp.Command)
	assert.Equal(t, "G1 Z3.00 F500\n", port.Written())

	_, err = c.Send(context.Background(), "; only a comment")
	require.NoError(t, err)
	assert.Equal(t, "G1 Z3.00 F500\n", port.Written())
}

func TestSendLineTooLong(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	_, err := c.Send(context.Background(), "G0 X"+strings.Repeat("1", MaxLineLength))
	assert.ErrorIs(t, err, ErrLineTooLong)
	assert.NotErrorIs(t, err, ErrTransport)
	assert.Empty(t, port.Written())
}

func TestSendRejected(t *testing.T) {
	c, _ := newTestController(t, func(line string) string {
		switch line {
		case "G99":
			return "error:20"
		case "G0 X9999":
			return "ALARM:2"
		}
		return "ok"
	})
	c.Clock = timeutil.RealClock{}

	_, err := c.Send(context.Background(), "G99")
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, serialmux.ResponseError, re.Kind)
	assert.Equal(t, 20, re.Code)
	assert.Contains(t, err.Error(), "unsupported command")
	assert.False(t, errors.Is(err, ErrTransport))

	_, err = c.Send(context.Background(), "G0 X9999")
	require.ErrorAs(t, err, &re)
	assert.Equal(t, serialmux.ResponseAlarm, re.Kind)
	assert.Contains(t, err.Error(), "ALARM:2")
}

func TestSendTimeout(t *testing.T) {
	c, _ := newTestController(t, nil)
	c.Clock = timeutil.RealClock{}
	c.Timeout = 20 * time.Millisecond

	_, err := c.Send(context.Background(), "G90")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSendTimeoutWithMockClock(t *testing.T) {
	c, _ := newTestController(t, nil)
	clock := c.Clock.(*timeutil.MockClock)

	errc := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "G90")
		errc <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		clock.Advance(DefaultTimeout)
		select {
		case err := <-errc:
			assert.ErrorIs(t, err, ErrTransport)
			return
		case <-deadline:
			t.Fatal("Send did not time out")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSendWriteFailure(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	port.WriteError = errors.New("unplugged")
	_, err := c.Send(context.Background(), "G90")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestSendCancelled(t *testing.T) {
	c, _ := newTestController(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, "G90")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendSerializesLines(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	c.Clock = timeutil.RealClock{}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			_, _ = c.Send(context.Background(), "G91")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("concurrent sends did not finish")
		}
	}
	assert.Equal(t, strings.Repeat("G91\n", 10), port.Written())
}

func TestRealtimeCommands(t *testing.T) {
	c, port := newTestController(t, nil)
	require.NoError(t, c.Resume())
	require.NoError(t, c.FeedHold())
	assert.Equal(t, "~!", port.Written())
}

func TestMachineCommands(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	c.Clock = timeutil.RealClock{}
	ctx := context.Background()

	require.NoError(t, c.Home(ctx))
	require.NoError(t, c.Unlock(ctx))
	require.NoError(t, c.ZeroAll(ctx))
	assert.Equal(t, "$H\n$X\nG10 L20 P1 X0 Y0 Z0\n", port.Written())
}

func TestSoftReset(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c.Clock = clock

	errc := make(chan error, 1)
	go func() { errc <- c.SoftReset(context.Background()) }()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SoftReset did not finish")
	}
	assert.Equal(t, "\x18$X\n", port.Written())
	assert.Equal(t, []time.Duration{ResetDelay}, clock.Sleeps())
}

func TestSetup(t *testing.T) {
	c, port := newTestController(t, func(line string) string {
		if line == "$22=1" {
			return "error:5"
		}
		return "ok"
	})
	c.Clock = timeutil.RealClock{}

	require.NoError(t, c.Setup(context.Background(), DefaultSettings()))
	assert.Equal(t, strings.Join(DefaultSettings(), "\n")+"\n", port.Written())

	err := c.Setup(context.Background(), []string{"$22=1", "$100=40"})
	var re *ResponseError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 5, re.Code)
	assert.True(t, strings.HasSuffix(port.Written(), "$22=1\n$100=40\n"), "setup should continue after a rejected setting")
}

func TestSetupStopsOnTransportError(t *testing.T) {
	c, port := newTestController(t, alwaysOK)
	port.WriteError = errors.New("unplugged")
	err := c.Setup(context.Background(), []string{"$22=0", "$23=3"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Empty(t, port.Written())
}

func TestDefaultSettingsIsFresh(t *testing.T) {
	a := DefaultSettings()
	a[0] = "$22=1"
	assert.Equal(t, "$22=0", DefaultSettings()[0])
}
