package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"signal_agent/internal/models"
	"signal_agent/internal/modules/config"
	"signal_agent/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.Config{Level: "fatal"}); err != nil {
		panic(err)
	}
	m.Run()
}

func testClient(baseURL string) *Client {
	cfg := &config.Config{}
	cfg.Broker.BaseURL = baseURL
	cfg.Broker.APIKey = "key-1"
	cfg.Broker.APISecret = "secret-1"
	cfg.Broker.Passphrase = "pass-1"
	cfg.BrokerTimeout = 5 * time.Second
	return NewClient(cfg)
}

func ptr(v float64) *float64 { return &v }

// stubExchange — минимальный REST биржи: копит последовательность вызовов
// и тела запросов, отвечает заготовками по пути.
type stubExchange struct {
	mu      sync.Mutex
	calls   []string
	bodies  map[string][]byte
	replies map[string]string
	lastHdr http.Header
	lastURI string
}

func newStubExchange() *stubExchange {
	return &stubExchange{
		bodies:  make(map[string][]byte),
		replies: make(map[string]string),
	}
}

func (s *stubExchange) handler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.calls = append(s.calls, r.URL.Path)
	s.bodies[r.URL.Path] = body
	s.lastHdr = r.Header.Clone()
	s.lastURI = r.URL.RequestURI()
	reply, ok := s.replies[r.URL.Path]
	s.mu.Unlock()

	if !ok {
		reply = `{"code":"0","msg":"","data":[]}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(reply))
}

func (s *stubExchange) callSeq() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *stubExchange) body(path string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bodies[path]
}

func TestSignedRequestHeaders(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/account/balance"] = `{"code":"0","data":[{"details":[{"ccy":"USDT","availBal":"123.45"}]}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	c := testClient(srv.URL)
	bal, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 123.45, bal)

	assert.Equal(t, "/api/v5/account/balance?ccy=USDT", stub.lastURI)
	assert.Equal(t, "key-1", stub.lastHdr.Get("OK-ACCESS-KEY"))
	assert.Equal(t, "pass-1", stub.lastHdr.Get("OK-ACCESS-PASSPHRASE"))

	ts := stub.lastHdr.Get("OK-ACCESS-TIMESTAMP")
	_, err = time.Parse("2006-01-02T15:04:05.000Z", ts)
	require.NoError(t, err, "timestamp %q", ts)

	// подпись восстанавливается из полученных заголовков
	mac := hmac.New(sha256.New, []byte("secret-1"))
	mac.Write([]byte(ts + "GET" + "/api/v5/account/balance?ccy=USDT"))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, stub.lastHdr.Get("OK-ACCESS-SIGN"))
}

func TestGetBalanceAccountWithoutUSDT(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/account/balance"] = `{"code":"0","data":[{"details":[{"ccy":"BTC","availBal":"1"}]}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	bal, err := testClient(srv.URL).GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, bal)
}

func TestBusinessErrorBecomesAPIError(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/account/balance"] = `{"code":"51000","msg":"Parameter error","data":[]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	_, err := testClient(srv.URL).GetBalance(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusOK, apiErr.Status)
	assert.Equal(t, "51000", apiErr.Code)
}

func TestHTTPStatusBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"msg":"Invalid OK-ACCESS-KEY"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).GetBalance(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestPlaceMarketOrderSetsLeverageFirst(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/order"] = `{"code":"0","data":[{"ordId":"777","sCode":"0"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	c := testClient(srv.URL)
	ack, err := c.PlaceMarketOrder(context.Background(), models.OrderRequest{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideLong,
		Qty:        0.5,
		Leverage:   10,
		StopLoss:   ptr(90),
		TakeProfit: ptr(120),
	})
	require.NoError(t, err)
	assert.Equal(t, "777", ack.OrderID)
	assert.Len(t, ack.ClientOrderID, 32)

	require.Equal(t, []string{"/api/v5/account/set-leverage", "/api/v5/trade/order"}, stub.callSeq())

	var lev map[string]string
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/account/set-leverage"), &lev))
	assert.Equal(t, "10", lev["lever"])
	assert.Equal(t, "cross", lev["mgnMode"])

	var ord struct {
		InstID  string              `json:"instId"`
		TdMode  string              `json:"tdMode"`
		Side    string              `json:"side"`
		PosSide string              `json:"posSide"`
		OrdType string              `json:"ordType"`
		Sz      string              `json:"sz"`
		ClOrdID string              `json:"clOrdId"`
		Attach  []map[string]string `json:"attachAlgoOrds"`
	}
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/trade/order"), &ord))
	assert.Equal(t, "BTC-USDT-SWAP", ord.InstID)
	assert.Equal(t, "cross", ord.TdMode)
	assert.Equal(t, "buy", ord.Side)
	assert.Equal(t, "long", ord.PosSide)
	assert.Equal(t, "market", ord.OrdType)
	assert.Equal(t, "0.5", ord.Sz)
	assert.Equal(t, ack.ClientOrderID, ord.ClOrdID)

	require.Len(t, ord.Attach, 1)
	assert.Equal(t, "90", ord.Attach[0]["slTriggerPx"])
	assert.Equal(t, "120", ord.Attach[0]["tpTriggerPx"])
	assert.Equal(t, "-1", ord.Attach[0]["slOrdPx"])
	assert.Equal(t, "-1", ord.Attach[0]["tpOrdPx"])
}

func TestPlaceMarketOrderWithoutLevelsSkipsAttach(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/order"] = `{"code":"0","data":[{"ordId":"778","sCode":"0"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	_, err := testClient(srv.URL).PlaceMarketOrder(context.Background(), models.OrderRequest{
		Symbol: "ETH-USDT-SWAP",
		Side:   models.SideShort,
		Qty:    2,
	})
	require.NoError(t, err)

	// без плеча в запросе set-leverage не дёргаем
	assert.Equal(t, []string{"/api/v5/trade/order"}, stub.callSeq())

	var ord map[string]any
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/trade/order"), &ord))
	assert.Equal(t, "sell", ord["side"])
	assert.Equal(t, "short", ord["posSide"])
	_, hasAttach := ord["attachAlgoOrds"]
	assert.False(t, hasAttach)
}

func TestPlaceMarketOrderRejectedBySCode(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/order"] = `{"code":"1","data":[{"sCode":"51008","sMsg":"Insufficient balance"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	_, err := testClient(srv.URL).PlaceMarketOrder(context.Background(), models.OrderRequest{
		Symbol: "BTC-USDT-SWAP",
		Side:   models.SideLong,
		Qty:    1,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sCode=51008")
}

func TestClosePositionFull(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/close-position"] = `{"code":"0","data":[{"instId":"BTC-USDT-SWAP"}]}`
	stub.replies["/api/v5/market/ticker"] = `{"code":"0","data":[{"last":"110"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	res, err := testClient(srv.URL).ClosePosition(context.Background(), models.CloseRequest{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideLong,
		Qty:        2,
		Full:       true,
		EntryPrice: 100,
	})
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/trade/close-position"), &body))
	assert.Equal(t, "long", body["posSide"])
	assert.Equal(t, "cross", body["mgnMode"])
	assert.Equal(t, "true", body["autoCxl"])

	// оценка по последней цене: (110-100)*2
	assert.InDelta(t, 20, res.RealizedPnl, 1e-9)
	assert.Equal(t, 110.0, res.ExitPrice)
}

func TestClosePositionPartialReduceOnly(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/order"] = `{"code":"0","data":[{"ordId":"779","sCode":"0"}]}`
	stub.replies["/api/v5/market/ticker"] = `{"code":"0","data":[{"last":"90"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	res, err := testClient(srv.URL).ClosePosition(context.Background(), models.CloseRequest{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideLong,
		Qty:        1.5,
		Full:       false,
		EntryPrice: 100,
	})
	require.NoError(t, err)

	var ord map[string]any
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/trade/order"), &ord))
	assert.Equal(t, "sell", ord["side"])
	assert.Equal(t, "long", ord["posSide"])
	assert.Equal(t, "1.5", ord["sz"])
	assert.Equal(t, true, ord["reduceOnly"])

	// лонг в минусе: (90-100)*1.5
	assert.InDelta(t, -15, res.RealizedPnl, 1e-9)
}

func TestCloseShortProfitsOnDrop(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/close-position"] = `{"code":"0"}`
	stub.replies["/api/v5/market/ticker"] = `{"code":"0","data":[{"last":"80"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	res, err := testClient(srv.URL).ClosePosition(context.Background(), models.CloseRequest{
		Symbol:     "BTC-USDT-SWAP",
		Side:       models.SideShort,
		Qty:        1,
		Full:       true,
		EntryPrice: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 20, res.RealizedPnl, 1e-9)
}

func TestUpdateStopTakeProfitReplacesAlgos(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/orders-algo-pending"] = `{"code":"0","data":[{"algoId":"a1"},{"algoId":"a2"}]}`
	stub.replies["/api/v5/trade/cancel-algos"] = `{"code":"0","data":[{"algoId":"a1","sCode":"0"},{"algoId":"a2","sCode":"0"}]}`
	stub.replies["/api/v5/trade/order-algo"] = `{"code":"0","data":[{"algoId":"a3","sCode":"0"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	err := testClient(srv.URL).UpdateStopTakeProfit(
		context.Background(), "BTC-USDT-SWAP", models.SideLong, ptr(95), ptr(130))
	require.NoError(t, err)

	require.Equal(t, []string{
		"/api/v5/trade/orders-algo-pending",
		"/api/v5/trade/cancel-algos",
		"/api/v5/trade/order-algo",
	}, stub.callSeq())

	var cancels []map[string]string
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/trade/cancel-algos"), &cancels))
	require.Len(t, cancels, 2)
	assert.Equal(t, "a1", cancels[0]["algoId"])
	assert.Equal(t, "a2", cancels[1]["algoId"])

	var algo map[string]string
	require.NoError(t, json.Unmarshal(stub.body("/api/v5/trade/order-algo"), &algo))
	assert.Equal(t, "conditional", algo["ordType"])
	assert.Equal(t, "1", algo["closeFraction"])
	assert.Equal(t, "95", algo["slTriggerPx"])
	assert.Equal(t, "130", algo["tpTriggerPx"])
	assert.Equal(t, "sell", algo["side"])
}

func TestUpdateStopTakeProfitNilLevelsOnlyCancels(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/trade/orders-algo-pending"] = `{"code":"0","data":[{"algoId":"a1"}]}`
	stub.replies["/api/v5/trade/cancel-algos"] = `{"code":"0","data":[{"algoId":"a1","sCode":"0"}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	err := testClient(srv.URL).UpdateStopTakeProfit(
		context.Background(), "BTC-USDT-SWAP", models.SideLong, nil, nil)
	require.NoError(t, err)

	// без уровней новый conditional не вешаем
	require.Equal(t, []string{
		"/api/v5/trade/orders-algo-pending",
		"/api/v5/trade/cancel-algos",
	}, stub.callSeq())
}

func TestInstrumentMetaCachedAfterFirstFetch(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/public/instruments"] = `{"code":"0","data":[{
		"instId":"BTC-USDT-SWAP","state":"live",
		"lotSz":"0.01","minSz":"0.1","tickSz":"0.1","ctVal":"0.01","ctMult":"10"
	}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	c := testClient(srv.URL)
	m, err := c.GetInstrumentMeta(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	assert.Equal(t, 0.01, m.LotSz)
	assert.Equal(t, 0.1, m.MinSz)
	assert.InDelta(t, 0.1, m.CtVal, 1e-9) // ctVal * ctMult

	_, err = c.GetInstrumentMeta(context.Background(), "BTC-USDT-SWAP")
	require.NoError(t, err)
	assert.Len(t, stub.callSeq(), 1, "second lookup must hit the cache")
}

func TestInstrumentMetaRejectsDelisted(t *testing.T) {
	stub := newStubExchange()
	stub.replies["/api/v5/public/instruments"] = `{"code":"0","data":[{
		"instId":"OLD-USDT-SWAP","state":"suspend","lotSz":"1","minSz":"1","tickSz":"0.1"
	}]}`
	srv := httptest.NewServer(http.HandlerFunc(stub.handler))
	defer srv.Close()

	_, err := testClient(srv.URL).GetInstrumentMeta(context.Background(), "OLD-USDT-SWAP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not live")
}

// --- симулятор ---

func TestSimClosePnl(t *testing.T) {
	s := NewSim()
	s.SetPrice("BTC-USDT-SWAP", 110)

	res, err := s.ClosePosition(context.Background(), models.CloseRequest{
		Symbol: "BTC-USDT-SWAP", Side: models.SideLong, Qty: 2, EntryPrice: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 20, res.RealizedPnl, 1e-9)

	res, err = s.ClosePosition(context.Background(), models.CloseRequest{
		Symbol: "BTC-USDT-SWAP", Side: models.SideShort, Qty: 2, EntryPrice: 100,
	})
	require.NoError(t, err)
	assert.InDelta(t, -20, res.RealizedPnl, 1e-9)
}

func TestSimPlaceAck(t *testing.T) {
	s := NewSim()
	ack, err := s.PlaceMarketOrder(context.Background(), models.OrderRequest{
		Symbol: "BTC-USDT-SWAP", Side: models.SideLong, Qty: 1,
	})
	require.NoError(t, err)
	assert.Contains(t, ack.OrderID, "sim-")
	assert.NotEmpty(t, ack.ClientOrderID)
}
