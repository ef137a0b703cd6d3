package sdk

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway speaks the realtime frame protocol over a gorilla upgrader
type fakeGateway struct {
	t           *testing.T
	srv         *httptest.Server
	upgrader    websocket.Upgrader
	rejectTopic string

	mu     sync.Mutex
	conns  []*websocket.Conn
	subs   []subscribeData
	unsubs []string
	tokens []string
}

func newFakeGateway(t *testing.T) *fakeGateway {
	g := &fakeGateway{t: t}
	g.srv = httptest.NewServer(http.HandlerFunc(g.serve))
	t.Cleanup(g.srv.Close)
	return g
}

func (g *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(g.srv.URL, "http")
}

func (g *fakeGateway) serve(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	g.mu.Lock()
	g.conns = append(g.conns, conn)
	g.tokens = append(g.tokens, r.URL.Query().Get("token"))
	g.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req wsRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		resp := wsResponse{ReqIdentifier: req.ReqIdentifier, MsgIncr: req.MsgIncr}
		switch req.ReqIdentifier {
		case wsSubscribe:
			var sub subscribeData
			_ = json.Unmarshal(req.Data, &sub)
			g.mu.Lock()
			g.subs = append(g.subs, sub)
			g.mu.Unlock()
			if sub.Topic == g.rejectTopic {
				resp.ErrCode = CodeInvalidTopic
				resp.ErrMsg = "invalid topic"
			}
		case wsUnsubscribe:
			var body map[string]string
			_ = json.Unmarshal(req.Data, &body)
			g.mu.Lock()
			g.unsubs = append(g.unsubs, body["channel_id"])
			g.mu.Unlock()
		}
		g.write(conn, resp)
	}
}

func (g *fakeGateway) write(conn *websocket.Conn, resp wsResponse) {
	data, _ := json.Marshal(resp)
	g.mu.Lock()
	defer g.mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}

func (g *fakeGateway) last() *websocket.Conn {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.conns) == 0 {
		return nil
	}
	return g.conns[len(g.conns)-1]
}

func (g *fakeGateway) push(channelId, event string, record any) {
	rec, _ := json.Marshal(record)
	data, _ := json.Marshal(changePush{ChannelId: channelId, Topic: TopicMessages, Event: event, Record: rec})
	g.write(g.last(), wsResponse{ReqIdentifier: wsPushChange, Data: data})
}

func (g *fakeGateway) subCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.subs)
}

func (g *fakeGateway) unsubscribed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.unsubs...)
}

// statusRecorder collects status transitions in order
type statusRecorder struct {
	mu       sync.Mutex
	statuses []ChannelStatus
	errs     []error
}

func (r *statusRecorder) handle(status ChannelStatus, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	r.errs = append(r.errs, err)
}

func (r *statusRecorder) all() []ChannelStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChannelStatus(nil), r.statuses...)
}

func (r *statusRecorder) current() ChannelStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return ""
	}
	return r.statuses[len(r.statuses)-1]
}

func (r *statusRecorder) lastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.errs) == 0 {
		return nil
	}
	return r.errs[len(r.errs)-1]
}

func TestRealtime_SubscribeAndDeliver(t *testing.T) {
	g := newFakeGateway(t)
	rt := NewRealtime(g.url(), func() string { return "tok-1" })
	defer rt.Close()

	rec := &statusRecorder{}
	events := make(chan *ChangeEvent, 4)
	sub, err := rt.Subscribe(t.Context(), ChannelSpec{
		Topic:  TopicMessages,
		Events: []string{EventInsert},
		Filter: []Filter{{Column: ColumnConversationId, Value: "c1"}},
	}, func(ev *ChangeEvent) { events <- ev }, rec.handle)
	require.NoError(t, err)
	require.NotEmpty(t, sub.Id())

	require.Eventually(t, func() bool { return rec.current() == StatusSubscribed }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []ChannelStatus{StatusConnecting, StatusSubscribed}, rec.all())

	g.mu.Lock()
	assert.Equal(t, []string{"tok-1"}, g.tokens)
	assert.Equal(t, sub.Id(), g.subs[0].ChannelId)
	assert.Equal(t, []string{EventInsert}, g.subs[0].Events)
	g.mu.Unlock()

	g.push(sub.Id(), EventInsert, Message{Id: "m1", ConversationId: "c1", Content: "hi"})
	g.push("someone-else", EventInsert, Message{Id: "m2"})

	select {
	case ev := <-events:
		assert.Equal(t, EventInsert, ev.Event)
		msg, err := ev.Message()
		require.NoError(t, err)
		assert.Equal(t, "m1", msg.Id)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	select {
	case ev := <-events:
		t.Fatalf("unexpected event for foreign channel: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRealtime_SubscribeRejected(t *testing.T) {
	g := newFakeGateway(t)
	g.rejectTopic = "bogus"
	rt := NewRealtime(g.url(), func() string { return "tok" })
	defer rt.Close()

	rec := &statusRecorder{}
	_, err := rt.Subscribe(t.Context(), ChannelSpec{Topic: "bogus"}, nil, rec.handle)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.current() == StatusError }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, CodeInvalidTopic, CodeOf(rec.lastErr()))
}

func TestRealtime_CloseStopsDelivery(t *testing.T) {
	g := newFakeGateway(t)
	rt := NewRealtime(g.url(), func() string { return "tok" })
	defer rt.Close()

	rec := &statusRecorder{}
	var mu sync.Mutex
	var got []*ChangeEvent
	sub, err := rt.Subscribe(t.Context(), ChannelSpec{Topic: TopicMessages}, func(ev *ChangeEvent) {
		mu.Lock()
		got = append(got, ev)
		mu.Unlock()
	}, rec.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.current() == StatusSubscribed }, 2*time.Second, 10*time.Millisecond)

	sub.Close()
	sub.Close()

	require.Eventually(t, func() bool { return len(g.unsubscribed()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, sub.Id(), g.unsubscribed()[0])

	g.push(sub.Id(), EventInsert, Message{Id: "late"})
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	assert.Empty(t, got)
	mu.Unlock()
}

func TestRealtime_ReconnectResubscribes(t *testing.T) {
	g := newFakeGateway(t)
	rt := NewRealtime(g.url(), func() string { return "tok" }, WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	defer rt.Close()

	rec := &statusRecorder{}
	events := make(chan *ChangeEvent, 4)
	sub, err := rt.Subscribe(t.Context(), ChannelSpec{Topic: TopicMessages}, func(ev *ChangeEvent) { events <- ev }, rec.handle)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.current() == StatusSubscribed }, 2*time.Second, 10*time.Millisecond)

	first := g.last()
	_ = first.Close()

	require.Eventually(t, func() bool { return g.subCount() == 2 && rec.current() == StatusSubscribed }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []ChannelStatus{StatusConnecting, StatusSubscribed, StatusDisconnected, StatusConnecting, StatusSubscribed}, rec.all())

	g.mu.Lock()
	assert.Equal(t, sub.Id(), g.subs[1].ChannelId)
	g.mu.Unlock()

	g.push(sub.Id(), EventUpdate, Message{Id: "after"})
	select {
	case ev := <-events:
		assert.Equal(t, EventUpdate, ev.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered after reconnect")
	}
}

func TestRealtime_SubscribeAfterClose(t *testing.T) {
	g := newFakeGateway(t)
	rt := NewRealtime(g.url(), nil)
	require.NoError(t, rt.Close())

	_, err := rt.Subscribe(t.Context(), ChannelSpec{Topic: TopicMessages}, nil, nil)
	assert.ErrorIs(t, err, ErrRealtimeClosed)
}

func TestSubscription_CloseOnce(t *testing.T) {
	calls := 0
	sub := NewSubscription("ch", func() { calls++ })
	sub.Close()
	sub.Close()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "ch", sub.Id())

	var nilSub *Subscription
	nilSub.Close()
}
