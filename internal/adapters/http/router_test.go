package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Tandem/internal/app/orch"
	"github.com/dkeye/Tandem/internal/auth"
	"github.com/dkeye/Tandem/internal/config"
	"github.com/dkeye/Tandem/internal/core"
	"github.com/dkeye/Tandem/internal/turn"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	orch *orch.Orchestrator
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	return newTestServerWith(t, mutate, orch.DefaultSettings())
}

func newTestServerWith(t *testing.T, mutate func(*config.Config), settings orch.Settings) *testServer {
	t.Helper()
	t.Setenv("CONFIG_ENV", "does-not-exist")
	cfg, err := config.Load(nil)
	require.NoError(t, err)
	cfg.Mode = "test"
	cfg.Secret = "cookie-secret"
	cfg.Auth.JWTSecret = "jwt-secret"
	if mutate != nil {
		mutate(cfg)
	}

	o := orch.New(settings)
	issuer, err := turn.NewIssuer(turn.Options{
		Secret:   cfg.Turn.Secret,
		TTL:      cfg.Turn.TTL,
		Prefix:   cfg.Turn.UsernamePrefix,
		TurnURLs: cfg.Turn.URLs,
		StunURLs: cfg.Turn.StunURLs,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	r := SetupRouter(ctx, cfg, Deps{
		Orch:   o,
		Turn:   issuer,
		Tokens: auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil),
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		o.CloseAll()
		cancel()
		srv.Close()
	})
	return &testServer{Server: srv, orch: o}
}

func (s *testServer) wsURL(query string) string {
	u := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func (s *testServer) dial(t *testing.T, header http.Header) *websocket.Conn {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(s.wsURL(""), header)
	require.NoError(t, err)
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, typ core.MessageType, payload string) {
	t.Helper()
	msg := `{"type":"` + string(typ) + `"`
	if payload != "" {
		msg += `,"payload":` + payload
	}
	msg += "}"
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(msg)))
}

// await reads frames until one of type typ arrives.
func await(t *testing.T, ws *websocket.Conn, typ core.MessageType) core.Envelope {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var env core.Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env
		}
	}
}

func TestSignalFlowOverWebSocket(t *testing.T) {
	s := newTestServer(t, nil)
	a := s.dial(t, nil)
	b := s.dial(t, nil)

	var connected core.Connected
	require.NoError(t, json.Unmarshal(await(t, a, core.TypeConnected).Payload, &connected))
	assert.NotEmpty(t, connected.ID)
	assert.NotEmpty(t, connected.Alias)
	await(t, b, core.TypeConnected)

	send(t, a, core.TypeJoinQueue, `{"native_language":"pt","target_language":"en","interests":["music","travel"],"country":"BR"}`)
	await(t, a, core.TypeQueueJoined)
	send(t, b, core.TypeJoinQueue, `{"native_language":"en","target_language":"pt","interests":["travel"],"country":"US"}`)

	var ma, mb core.Matched
	require.NoError(t, json.Unmarshal(await(t, a, core.TypeMatched).Payload, &ma))
	require.NoError(t, json.Unmarshal(await(t, b, core.TypeMatched).Payload, &mb))
	assert.True(t, ma.IsInitiator)
	assert.False(t, mb.IsInitiator)
	assert.Equal(t, "US", ma.PartnerCountry)
	assert.Equal(t, []string{"travel"}, ma.CommonInterests)

	// malformed and unknown frames are dropped without closing the socket
	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	send(t, a, "bogus", `{}`)
	send(t, a, core.TypeNegotiationOffer, `{"descriptor":{"type":"offer"}}`)

	send(t, a, core.TypeNegotiationOffer, `{"descriptor":{"type":"offer","sdp":"v=0"}}`)
	offer := await(t, b, core.TypeNegotiationOffer)
	assert.JSONEq(t, `{"descriptor":{"type":"offer","sdp":"v=0"}}`, string(offer.Payload))

	send(t, b, core.TypeNegotiationAnswer, `{"descriptor":{"type":"answer","sdp":"v=0"}}`)
	await(t, a, core.TypeNegotiationAnswer)

	send(t, a, core.TypeLivenessPing, "")
	var pong core.LivenessPong
	require.NoError(t, json.Unmarshal(await(t, a, core.TypeLivenessPong).Payload, &pong))
	assert.Equal(t, 2, pong.OnlineCount)

	require.NoError(t, b.Close())
	await(t, a, core.TypePartnerLeft)
}

func TestHealthAndStats(t *testing.T) {
	s := newTestServer(t, nil)
	ws := s.dial(t, nil)
	await(t, ws, core.TypeConnected)

	resp, err := http.Get(s.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, 1, health.Participants)
	assert.EqualValues(t, 1, health.Metrics.TotalConnections)

	resp2, err := http.Get(s.URL + "/stats")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&stats))
	assert.EqualValues(t, 1, stats["online"])
	assert.Contains(t, stats, "inQueue")
	assert.Contains(t, stats, "activeRooms")
	assert.Contains(t, stats, "uptime")
}

func TestTurnCredentials(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Turn.Secret = "turn-secret"
		c.Turn.URLs = []string{"turn:turn.example.org:3478"}
	})

	resp, err := http.Get(s.URL + "/turn-credentials")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		IceServers []struct {
			URLs       []string `json:"urls"`
			Username   string   `json:"username"`
			Credential string   `json:"credential"`
		} `json:"iceServers"`
		TTL int `json:"ttl"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.IceServers, 2)
	assert.Equal(t, 300, body.TTL)
	assert.Contains(t, body.IceServers[1].Username, ":tandem:")
	assert.NotEmpty(t, body.IceServers[1].Credential)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Auth.Required = true })

	_, resp, err := websocket.DefaultDialer.Dial(s.wsURL(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tokResp, err := http.Post(s.URL+"/auth/anonymous", "application/json", nil)
	require.NoError(t, err)
	defer tokResp.Body.Close()
	var tok TokenResponse
	require.NoError(t, json.NewDecoder(tokResp.Body).Decode(&tok))
	require.NotEmpty(t, tok.Token)

	ws, resp, err := websocket.DefaultDialer.Dial(s.wsURL("token="+tok.Token), nil)
	require.NoError(t, err)
	defer ws.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	var connected core.Connected
	require.NoError(t, json.Unmarshal(await(t, ws, core.TypeConnected).Payload, &connected))
	assert.Equal(t, tok.Alias, connected.Alias)
}

func TestStickyAliasFromSession(t *testing.T) {
	s := newTestServer(t, nil)

	resp, err := http.Post(s.URL+"/auth/anonymous", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	var tok TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tok))

	header := http.Header{}
	for _, c := range resp.Cookies() {
		header.Add("Cookie", c.Name+"="+c.Value)
	}
	ws := s.dial(t, header)
	var connected core.Connected
	require.NoError(t, json.Unmarshal(await(t, ws, core.TypeConnected).Payload, &connected))
	assert.Equal(t, tok.Alias, connected.Alias)
}

func TestOriginFilter(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.AllowedOrigins = []string{"https://ok.example"} })

	req, err := http.NewRequest(http.MethodGet, s.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	req.Header.Set("Origin", "https://ok.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://ok.example", resp.Header.Get("Access-Control-Allow-Origin"))
}
