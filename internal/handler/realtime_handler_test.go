package handler_test

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/handler"
	"github.com/noah-isme/vibely-go-api/internal/middleware"
	"github.com/noah-isme/vibely-go-api/internal/service"
)

type stubRealtime struct {
	opts chan service.RealtimeSessionOptions
}

func (s *stubRealtime) ServeConnection(conn service.RealtimeConn, opts service.RealtimeSessionOptions) {
	s.opts <- opts
	_ = conn.WriteJSON(dto.ServerEvent{Type: dto.EventSessionReady, Payload: dto.SessionReadyPayload{SessionID: opts.SessionID}})
	_ = conn.Close()
}

func startFiberServer(t *testing.T, app *fiber.App) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)

	t.Cleanup(func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(100 * time.Millisecond):
		}
	})
	return "http://" + listener.Addr().String()
}

func TestRealtimeHandlerUpgradesAuthenticatedCaller(t *testing.T) {
	realtime := &stubRealtime{opts: make(chan service.RealtimeSessionOptions, 1)}
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	handler.NewRealtimeHandler(realtime, zerolog.Nop()).Register(authedGroup(app, "/api/v1/realtime", "ana"))

	baseURL := startFiberServer(t, app)
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/api/v1/realtime/ws?session_id=tab-1"

	dialer := websocket.Dialer{HandshakeTimeout: 3 * time.Second}
	conn, resp, err := dialer.Dial(url, http.Header{"X-Correlation-ID": {"corr-1"}})
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()

	var event struct {
		Type    string                  `json:"type"`
		Payload dto.SessionReadyPayload `json:"payload"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, dto.EventSessionReady, event.Type)
	require.Equal(t, "tab-1", event.Payload.SessionID)

	select {
	case opts := <-realtime.opts:
		require.Equal(t, "ana", opts.UserID)
		require.Equal(t, "corr-1", opts.CorrelationID)
		require.NotNil(t, opts.Context)
	case <-time.After(2 * time.Second):
		t.Fatal("session was not served")
	}
}

func TestRealtimeHandlerRequiresUpgrade(t *testing.T) {
	app := fiber.New()
	handler.NewRealtimeHandler(&stubRealtime{opts: make(chan service.RealtimeSessionOptions, 1)}, zerolog.Nop()).Register(authedGroup(app, "/api/v1/realtime", "ana"))

	resp := perform(t, app, jsonRequest(t, http.MethodGet, "/api/v1/realtime/ws", nil))
	require.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode)
}
