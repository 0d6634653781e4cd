package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/shootingstars/internal/auth"
	"github.com/jason-s-yu/shootingstars/internal/display"
	"github.com/jason-s-yu/shootingstars/internal/hub"
	"github.com/jason-s-yu/shootingstars/internal/models"
	"github.com/jason-s-yu/shootingstars/internal/ratelimit"
	"github.com/jason-s-yu/shootingstars/internal/rpc"
	"github.com/jason-s-yu/shootingstars/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSyncServer(t *testing.T, maxLightCalls int, opts ...hub.Option) (*SyncServer, *store.StateStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	st := store.New(store.NewMemoryBackend(), store.WithLogger(logger))
	reg := rpc.NewRegistry()
	svc := display.NewService(st,
		auth.NewRegistry(map[string]auth.Tenant{"ctrl": {ID: 1}}),
		auth.NewRegistry(map[string]auth.Tenant{"p1": {ID: 1}, "p2": {ID: 2}}),
		display.DefaultLimits(), logger)
	svc.Register(reg)
	require.NoError(t, svc.SeedLights(context.Background()))

	h := hub.New(reg, st, logger, opts...)
	st.AddNotifier(h)

	rule := &ratelimit.Rule{
		Names:   display.LightMethods(),
		Limiter: ratelimit.NewMemoryLimiter(maxLightCalls, 24*time.Hour),
	}
	return NewSyncServer(reg, h, rule, logger), st
}

func newTestServer(t *testing.T, maxLightCalls int) *httptest.Server {
	t.Helper()
	srv, _ := newTestSyncServer(t, maxLightCalls)
	ts := httptest.NewServer(NewRouter(srv, srv.Logger, RouterOptions{}))
	t.Cleanup(ts.Close)
	return ts
}

func postMethod(t *testing.T, ts *httptest.Server, name, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/methods/"+name, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestHTTPMethodStatuses(t *testing.T) {
	ts := newTestServer(t, 100)

	code, out := postMethod(t, ts, "pictures.setPicture", `["star"]`)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, out, "result")

	code, out = postMethod(t, ts, "presence.getConfig", `["p2"]`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"id": float64(2)}, out["result"])

	code, out = postMethod(t, ts, "blocks.updateState", `["nope", {"score": 1, "playfield": [[0]]}]`)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", out["error"])

	code, out = postMethod(t, ts, "blocks.sendInput", `["sideways"]`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid-payload", out["error"])

	code, _ = postMethod(t, ts, "lights.setAnimation", `["42", "rain"]`)
	assert.Equal(t, http.StatusNotFound, code)

	code, out = postMethod(t, ts, "nothing.here", `[]`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "method-not-found", out["error"])

	code, _ = postMethod(t, ts, "blocks.sendInput", `{"type":"left"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHTTPRateLimitOnLightMethods(t *testing.T) {
	ts := newTestServer(t, 2)

	for i := 0; i < 2; i++ {
		code, _ := postMethod(t, ts, "lights.setColourHue", `["1", 0.5]`)
		require.Equal(t, http.StatusOK, code)
	}
	code, out := postMethod(t, ts, "lights.setColourHue", `["1", 0.5]`)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "too-many-requests", out["error"])

	code, _ = postMethod(t, ts, "pictures.setPicture", `["mary"]`)
	assert.Equal(t, http.StatusOK, code, "other methods are not limited")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 10)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server) *wsClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })
	return &wsClient{t: t, conn: c}
}

func (w *wsClient) send(msg hub.Message) {
	w.t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(w.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(w.t, w.conn.Write(ctx, websocket.MessageText, data))
}

func (w *wsClient) recv() hub.Message {
	w.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := w.conn.Read(ctx)
	require.NoError(w.t, err)
	var msg hub.Message
	require.NoError(w.t, json.Unmarshal(data, &msg))
	return msg
}

func params(raw ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(raw))
	for i, r := range raw {
		out[i] = json.RawMessage(r)
	}
	return out
}

func TestSyncSessionFlow(t *testing.T) {
	ts := newTestServer(t, 100)
	c := dial(t, ts)

	c.send(hub.Message{Msg: hub.MsgConnect})
	connected := c.recv()
	assert.Equal(t, hub.MsgConnected, connected.Msg)
	assert.NotEmpty(t, connected.Session)

	c.send(hub.Message{Msg: hub.MsgSub, ID: "s1", Name: "lights"})
	for i := 0; i < 10; i++ {
		m := c.recv()
		require.Equal(t, hub.MsgAdded, m.Msg)
		assert.Equal(t, "lights", m.Collection)
		assert.Equal(t, "white", m.Fields["colourMode"])
	}
	assert.Equal(t, hub.Message{Msg: hub.MsgReady, Subs: []string{"s1"}}, c.recv())

	c.send(hub.Message{Msg: hub.MsgMethod, ID: "m1", Method: "lights.setColourMode", Params: params(`"4"`, `"rainbow"`)})
	changed := c.recv()
	assert.Equal(t, hub.MsgChanged, changed.Msg)
	assert.Equal(t, "4", changed.ID)
	assert.Equal(t, "rainbow", changed.Fields["colourMode"])
	result := c.recv()
	assert.Equal(t, hub.MsgResult, result.Msg)
	assert.Equal(t, "m1", result.ID)
	assert.Nil(t, result.Error)

	c.send(hub.Message{Msg: hub.MsgMethod, ID: "m2", Method: "lights.setColourHue", Params: params(`"4"`, `7`)})
	bad := c.recv()
	require.NotNil(t, bad.Error)
	assert.Equal(t, rpc.KindInvalidPayload, bad.Error.Kind)

	c.send(hub.Message{Msg: hub.MsgPing, ID: "p"})
	assert.Equal(t, hub.Message{Msg: hub.MsgPong, ID: "p"}, c.recv())

	c.send(hub.Message{Msg: hub.MsgUnsub, ID: "s1"})
	for i := 0; i < 10; i++ {
		assert.Equal(t, hub.MsgRemoved, c.recv().Msg)
	}
	assert.Equal(t, hub.Message{Msg: hub.MsgNoSub, ID: "s1"}, c.recv())
}

func TestPresenceSubscriptionExcludesSelf(t *testing.T) {
	ts := newTestServer(t, 100)
	writer := dial(t, ts)
	watcher := dial(t, ts)

	watcher.send(hub.Message{Msg: hub.MsgSub, ID: "p", Name: "presence", Params: params(`"p1"`)})
	assert.Equal(t, hub.MsgReady, watcher.recv().Msg)

	writer.send(hub.Message{Msg: hub.MsgMethod, ID: "1", Method: "presence.sendPresence", Params: params(`"p1"`, `[[1]]`)})
	assert.Equal(t, hub.MsgResult, writer.recv().Msg)
	writer.send(hub.Message{Msg: hub.MsgMethod, ID: "2", Method: "presence.sendPresence", Params: params(`"p2"`, `[[2]]`)})
	assert.Equal(t, hub.MsgResult, writer.recv().Msg)

	added := watcher.recv()
	assert.Equal(t, hub.MsgAdded, added.Msg)
	assert.Equal(t, "2", added.ID)
	assert.EqualValues(t, 2, added.Fields["id"])
}

func TestUnknownSyncMessage(t *testing.T) {
	ts := newTestServer(t, 100)
	c := dial(t, ts)
	c.send(hub.Message{Msg: "teleport"})
	m := c.recv()
	assert.Equal(t, hub.MsgError, m.Msg)
	assert.Contains(t, m.Reason, "teleport")
}

func TestSyncRequiresSubprotocol(t *testing.T) {
	ts := newTestServer(t, 100)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/websocket"
	c, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	_, _, err = c.Read(ctx)
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), websocket.CloseStatus(err))
}

func TestMethodResultOnFullQueueDropsSession(t *testing.T) {
	srv, st := newTestSyncServer(t, 100, hub.WithBuffer(1))
	session := srv.Hub.Connect(rpc.Caller{ConnID: uuid.New(), RemoteAddr: "test"})
	require.True(t, session.Send(hub.Message{Msg: hub.MsgPong}))

	ctx := context.Background()
	handleSyncMessage(ctx, srv, session, hub.Message{
		Msg:    hub.MsgMethod,
		ID:     "7",
		Method: "pictures.setPicture",
		Params: params(`"star"`),
	}, srv.Logger)

	pic, err := store.Get[models.Picture](ctx, st, models.PicturesCollection, models.PictureKey)
	require.NoError(t, err)
	assert.Equal(t, "star", pic.PictureKey)

	select {
	case <-session.Done():
	default:
		t.Fatal("a session that cannot take its result should be dropped")
	}
}
