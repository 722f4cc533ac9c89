package signal

import (
	"strings"
	"testing"

	"github.com/dkeye/Arena/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ core.Sink = (*WsSignalConn)(nil)

func TestWsSignalConn_Backpressure(t *testing.T) {
	c := newConn(nil, 2)
	require.NoError(t, c.TrySend(core.Frame("a")))
	require.NoError(t, c.TrySend(core.Frame("b")))
	assert.ErrorIs(t, c.TrySend(core.Frame("c")), ErrBackpressure)

	<-c.send
	assert.NoError(t, c.TrySend(core.Frame("d")))

	c.Close()
	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame("e")), ErrClosed)
}

func TestPlayerID(t *testing.T) {
	assert.Equal(t, "token", string(playerID("token")))
	assert.NotEmpty(t, playerID(""))
	long := strings.Repeat("x", 80)
	assert.NotEqual(t, long, string(playerID(long)))
}

func TestOptions_Defaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Positive(t, o.ReadLimit)
	assert.Positive(t, o.SendBuffer)
	assert.Greater(t, o.pongWait(), o.PingPeriod)
}
