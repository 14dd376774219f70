package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/dto"
)

type fakeConn struct {
	in      chan dto.ClientEvent
	out     chan dto.ServerEvent
	closed  chan struct{}
	once    sync.Once
	backlog []dto.ServerEvent
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan dto.ClientEvent, 16),
		out:    make(chan dto.ServerEvent, 256),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadJSON(v interface{}) error {
	select {
	case event := <-f.in:
		*(v.(*dto.ClientEvent)) = event
		return nil
	case <-f.closed:
		return io.EOF
	}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	select {
	case <-f.closed:
		return errors.New("connection closed")
	default:
	}
	f.out <- v.(dto.ServerEvent)
	return nil
}

func (f *fakeConn) WriteMessage(int, []byte) error {
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) sendEvent(t *testing.T, eventType, ref string, payload interface{}) {
	t.Helper()

	event := dto.ClientEvent{Type: eventType, Ref: ref}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		event.Payload = raw
	}
	f.in <- event
}

// expect returns the first frame of the given type that satisfies match.
// Frames that do not match are kept for later expectations.
func (f *fakeConn) expect(t *testing.T, eventType string, match func(dto.ServerEvent) bool) dto.ServerEvent {
	t.Helper()

	matches := func(event dto.ServerEvent) bool {
		return event.Type == eventType && (match == nil || match(event))
	}
	for i, event := range f.backlog {
		if matches(event) {
			f.backlog = append(f.backlog[:i], f.backlog[i+1:]...)
			return event
		}
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case event := <-f.out:
			if matches(event) {
				return event
			}
			f.backlog = append(f.backlog, event)
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", eventType)
		}
	}
}

// gatedConn holds every write until release is called, like a client that stopped reading.
type gatedConn struct {
	*fakeConn
	gate chan struct{}
	open sync.Once
}

func newGatedConn() *gatedConn {
	return &gatedConn{fakeConn: newFakeConn(), gate: make(chan struct{})}
}

func (g *gatedConn) WriteJSON(v interface{}) error {
	select {
	case <-g.gate:
	case <-g.closed:
		return errors.New("connection closed")
	}
	return g.fakeConn.WriteJSON(v)
}

func (g *gatedConn) release() {
	g.open.Do(func() { close(g.gate) })
}

func startSession(t *testing.T, env *testEnv, cfg RealtimeConfig, userID string) (*fakeConn, <-chan struct{}) {
	t.Helper()

	conn := newFakeConn()
	return conn, serveSession(t, env, cfg, userID, conn)
}

func serveSession(t *testing.T, env *testEnv, cfg RealtimeConfig, userID string, conn RealtimeConn) <-chan struct{} {
	t.Helper()

	svc := NewRealtimeService(env.directory, env.messaging, env.receipts, env.presence, env.chatReqs, dto.NewValidator(), cfg, testLogger())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.ServeConnection(conn, RealtimeSessionOptions{UserID: userID, SessionID: "session-" + userID, Context: context.Background()})
	}()
	t.Cleanup(func() {
		_ = conn.Close()
		<-done
	})
	return done
}

func TestRealtimeSessionOpensChatAndMarksIncomingRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)
	incoming := env.seedMessage(t, chatID, "ben", "are you there?")

	conn, done := startSession(t, env, RealtimeConfig{}, "ana")

	directory := conn.expect(t, dto.EventChatsSnapshot, nil).Payload.(dto.ChatDirectory)
	require.Len(t, directory.Direct, 1)
	conn.expect(t, dto.EventRequestsSnapshot, nil)

	state, err := env.presence.Get(ctx, "ana")
	require.NoError(t, err)
	require.True(t, state.Online)

	conn.sendEvent(t, dto.EventChatOpen, "open-1", dto.ChatOpenPayload{ChatID: chatID})
	conn.expect(t, dto.EventAck, func(e dto.ServerEvent) bool { return e.Ref == "open-1" })
	conn.expect(t, dto.EventMessagesSnapshot, func(e dto.ServerEvent) bool {
		return len(e.Payload.(dto.MessageSnapshot).Messages) == 1
	})

	require.Eventually(t, func() bool {
		stored, err := env.messages.Get(ctx, chatID, incoming.ID)
		return err == nil && stored.IsRead()
	}, 2*time.Second, 20*time.Millisecond)

	conn.sendEvent(t, dto.EventMessageSend, "send-1", dto.MessageSendPayload{Content: "yes!"})
	ack := conn.expect(t, dto.EventAck, func(e dto.ServerEvent) bool { return e.Ref == "send-1" })
	sent := ack.Payload.(dto.MessageResponse)
	require.Equal(t, "ana", sent.AuthorID)

	conn.expect(t, dto.EventMessagesSnapshot, func(e dto.ServerEvent) bool {
		return len(e.Payload.(dto.MessageSnapshot).Messages) == 2
	})

	require.NoError(t, conn.Close())
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not stop")
	}

	state, err = env.presence.Get(ctx, "ana")
	require.NoError(t, err)
	require.False(t, state.Online)
}

func TestRealtimeSessionRejectsChatEventsWithoutActiveChat(t *testing.T) {
	env := newTestEnv(t)
	newDirectChat(t, env)
	conn, _ := startSession(t, env, RealtimeConfig{}, "ana")

	conn.sendEvent(t, dto.EventMessageSend, "send-1", dto.MessageSendPayload{Content: "hello"})
	failure := conn.expect(t, dto.EventError, func(e dto.ServerEvent) bool { return e.Ref == "send-1" })
	require.Equal(t, ErrNoActiveChat.Error(), failure.Payload.(dto.ErrorPayload).Message)

	conn.sendEvent(t, "teleport", "bad-1", nil)
	conn.expect(t, dto.EventError, func(e dto.ServerEvent) bool { return e.Ref == "bad-1" })

	conn.sendEvent(t, dto.EventChatOpen, "open-1", dto.ChatOpenPayload{ChatID: "missing"})
	failure = conn.expect(t, dto.EventError, func(e dto.ServerEvent) bool { return e.Ref == "open-1" })
	require.Equal(t, ErrChatNotFound.Error(), failure.Payload.(dto.ErrorPayload).Message)

	conn.sendEvent(t, dto.EventPing, "ping-1", nil)
	conn.expect(t, dto.EventPong, func(e dto.ServerEvent) bool { return e.Ref == "ping-1" })
}

func TestRealtimeSessionRateLimitsEvents(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "ana", "ana")
	conn, _ := startSession(t, env, RealtimeConfig{EventRate: 0.001, EventBurst: 1}, "ana")

	conn.sendEvent(t, dto.EventPing, "ping-1", nil)
	conn.expect(t, dto.EventPong, func(e dto.ServerEvent) bool { return e.Ref == "ping-1" })

	conn.sendEvent(t, dto.EventPing, "ping-2", nil)
	failure := conn.expect(t, dto.EventError, func(e dto.ServerEvent) bool { return e.Ref == "ping-2" })
	require.Equal(t, "rate limit exceeded", failure.Payload.(dto.ErrorPayload).Message)
}

func TestRealtimeSessionStreamsWatchedPresence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	newDirectChat(t, env)
	conn, _ := startSession(t, env, RealtimeConfig{}, "ana")

	conn.sendEvent(t, dto.EventPresenceWatch, "watch-1", dto.PresenceWatchPayload{UserIDs: []string{"ben"}})
	conn.expect(t, dto.EventPresence, func(e dto.ServerEvent) bool {
		presence := e.Payload.(dto.PresenceResponse)
		return presence.UserID == "ben" && !presence.Online
	})

	require.NoError(t, env.presence.Connect(ctx, "ben", "tab-1"))
	conn.expect(t, dto.EventPresence, func(e dto.ServerEvent) bool {
		presence := e.Payload.(dto.PresenceResponse)
		return presence.UserID == "ben" && presence.Online
	})

	conn.sendEvent(t, dto.EventPresenceOffline, "offline-1", nil)
	conn.expect(t, dto.EventAck, func(e dto.ServerEvent) bool { return e.Ref == "offline-1" })

	state, err := env.presence.Get(ctx, "ana")
	require.NoError(t, err)
	require.False(t, state.Online)
}

func TestRealtimeSessionSkipsReceiptsForClosedChat(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chatID := newDirectChat(t, env)
	incoming := env.seedMessage(t, chatID, "ben", "did you see this?")

	conn := newGatedConn()
	serveSession(t, env, RealtimeConfig{EventRate: 1000, EventBurst: 1000}, "ana", conn)

	for i := 0; i < sessionSendBufferSize+3; i++ {
		conn.sendEvent(t, dto.EventPing, fmt.Sprintf("ping-%d", i), nil)
	}
	conn.sendEvent(t, dto.EventChatOpen, "open-1", dto.ChatOpenPayload{ChatID: chatID})
	conn.sendEvent(t, dto.EventChatClose, "close-1", nil)
	conn.sendEvent(t, dto.EventPing, "after-close", nil)

	// The reader only takes the next event once the previous one is dispatched.
	require.Eventually(t, func() bool { return len(conn.in) == 0 }, 2*time.Second, 10*time.Millisecond)

	isRead := func() bool {
		stored, err := env.messages.Get(ctx, chatID, incoming.ID)
		return err == nil && stored.IsRead()
	}
	require.False(t, isRead())

	conn.release()
	conn.expect(t, dto.EventChatsSnapshot, nil)
	require.Never(t, isRead, 300*time.Millisecond, 20*time.Millisecond)

	conn.sendEvent(t, dto.EventChatOpen, "open-2", dto.ChatOpenPayload{ChatID: chatID})
	require.Eventually(t, isRead, 2*time.Second, 20*time.Millisecond)
}
