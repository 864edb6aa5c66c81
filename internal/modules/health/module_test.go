package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signal_agent/internal/ledger"
	"signal_agent/internal/models"
	"signal_agent/internal/modules/config"
	feedsvc "signal_agent/internal/modules/feed/service"
	"signal_agent/internal/modules/health/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMux() (*service.State, *ledger.Ledger, *httptest.Server) {
	state := service.NewState()
	led := ledger.New(time.Now())
	feed := feedsvc.NewClient(&config.Config{})
	srv := httptest.NewServer(NewMux(state, led, feed))
	return state, led, srv
}

func TestLivezAlwaysOK(t *testing.T) {
	_, _, srv := newTestMux()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/livez")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadyzFollowsState(t *testing.T) {
	state, _, srv := newTestMux()
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	state.SetReady(true)
	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatuszSnapshot(t *testing.T) {
	_, led, srv := newTestMux()
	defer srv.Close()

	led.Upsert(models.Position{Symbol: "BTC-USDT-SWAP", Side: models.SideLong, Size: 1, Leverage: 10})
	led.BumpTrade()
	led.AddRealizedPnl(-3.5)

	resp, err := http.Get(srv.URL + "/statusz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))

	assert.Equal(t, string(models.ConnDisconnected), st.Conn.Phase)
	assert.Equal(t, 1, st.Risk.TradesToday)
	assert.InDelta(t, -3.5, st.Risk.DailyRealizedPnl, 1e-9)
	require.Len(t, st.Positions, 1)
	assert.Equal(t, "BTC-USDT-SWAP", st.Positions[0].Symbol)
}
