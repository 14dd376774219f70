package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/middleware"
	"github.com/noah-isme/vibely-go-api/internal/observability"
)

const (
	sessionSendBufferSize  = 32
	sessionPingInterval    = 30 * time.Second
	sessionDisconnectGrace = 5 * time.Second
	sessionMaxWatchedUsers = 200
)

var errInvalidEvent = errors.New("invalid event")

// RealtimeConn is the subset of a websocket connection a session needs.
type RealtimeConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// RealtimeSessionOptions wraps metadata extracted during the HTTP upgrade.
type RealtimeSessionOptions struct {
	UserID        string
	SessionID     string
	CorrelationID string
	Context       context.Context
}

// RealtimeConfig tunes per-session limits.
type RealtimeConfig struct {
	EventRate         float64
	EventBurst        int
	HeartbeatInterval time.Duration
	PingInterval      time.Duration
}

// RealtimeService serves live sessions over a websocket connection.
type RealtimeService interface {
	ServeConnection(conn RealtimeConn, opts RealtimeSessionOptions)
}

type realtimeService struct {
	directory DirectoryService
	messages  MessageService
	receipts  ReadReceiptReconciler
	presence  PresenceService
	requests  ChatRequestService
	validator *validator.Validate
	config    RealtimeConfig
	logger    zerolog.Logger
}

type realtimeSession struct {
	service  *realtimeService
	conn     RealtimeConn
	options  RealtimeSessionOptions
	ctx      context.Context
	cancel   context.CancelFunc
	send     chan dto.ServerEvent
	closed   chan struct{}
	once     sync.Once
	limiter  *rate.Limiter
	logger   zerolog.Logger
	forwards sync.WaitGroup

	chatMu     sync.Mutex
	activeChat string
	stopChat   func()
	watched    map[string]func()
}

// NewRealtimeService constructs the websocket session service.
func NewRealtimeService(directory DirectoryService, messages MessageService, receipts ReadReceiptReconciler, presence PresenceService, requests ChatRequestService, validate *validator.Validate, cfg RealtimeConfig, logger zerolog.Logger) RealtimeService {
	if cfg.EventRate <= 0 {
		cfg.EventRate = 20
	}
	if cfg.EventBurst <= 0 {
		cfg.EventBurst = 40
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = sessionPingInterval
	}

	return &realtimeService{
		directory: directory,
		messages:  messages,
		receipts:  receipts,
		presence:  presence,
		requests:  requests,
		validator: validate,
		config:    cfg,
		logger:    logger.With().Str("component", "realtime_service").Logger(),
	}
}

// ServeConnection runs the session until the connection ends. The presence
// session is detached on exit whichever side closed.
func (s *realtimeService) ServeConnection(conn RealtimeConn, opts RealtimeSessionOptions) {
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.CorrelationID == "" {
		opts.CorrelationID = middleware.CorrelationIDFromContext(baseCtx)
	}

	ctx, cancel := context.WithCancel(baseCtx)
	session := &realtimeSession{
		service: s,
		conn:    conn,
		options: opts,
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan dto.ServerEvent, sessionSendBufferSize),
		closed:  make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(s.config.EventRate), s.config.EventBurst),
		logger: s.logger.With().
			Str("user_id", opts.UserID).
			Str("session_id", opts.SessionID).
			Str("correlation_id", opts.CorrelationID).
			Logger(),
		watched: make(map[string]func()),
	}

	observability.RealtimeSessions().Inc()
	defer observability.RealtimeSessions().Dec()

	if err := s.presence.Connect(ctx, opts.UserID, opts.SessionID); err != nil {
		session.logger.Warn().Err(err).Msg("failed to mark session online")
	}
	session.reply(dto.ServerEvent{Type: dto.EventSessionReady, Payload: dto.SessionReadyPayload{SessionID: opts.SessionID}})

	chats, stopChats := s.directory.Watch(ctx, opts.UserID)
	forward(session, chats, func(directory dto.ChatDirectory) dto.ServerEvent {
		return dto.ServerEvent{Type: dto.EventChatsSnapshot, Payload: directory}
	})
	requests, stopRequests := s.requests.Watch(ctx, opts.UserID)
	forward(session, requests, func(pending []dto.ChatRequestResponse) dto.ServerEvent {
		return dto.ServerEvent{Type: dto.EventRequestsSnapshot, Payload: pending}
	})

	go session.writer()
	session.reader()

	stopChats()
	stopRequests()
	session.shutdown()
}

func (c *realtimeSession) reader() {
	defer c.close()

	for {
		var event dto.ClientEvent
		if err := c.conn.ReadJSON(&event); err != nil {
			c.logger.Debug().Err(err).Msg("realtime read loop ended")
			return
		}

		if !c.limiter.Allow() {
			c.reply(dto.ServerEvent{Type: dto.EventError, Ref: event.Ref, Payload: dto.ErrorPayload{Message: "rate limit exceeded"}})
			continue
		}

		payload, err := c.dispatch(event)
		if err != nil {
			c.logger.Debug().Err(err).Str("event", event.Type).Msg("realtime event rejected")
			c.reply(dto.ServerEvent{Type: dto.EventError, Ref: event.Ref, Payload: dto.ErrorPayload{Message: clientErrorMessage(err)}})
			continue
		}

		select {
		case <-c.closed:
			return
		default:
		}

		reply := dto.ServerEvent{Type: dto.EventAck, Ref: event.Ref, Payload: payload}
		if event.Type == dto.EventPing {
			reply.Type = dto.EventPong
		}
		c.reply(reply)
	}
}

func (c *realtimeSession) writer() {
	defer c.close()

	ping := time.NewTicker(c.service.config.PingInterval)
	defer ping.Stop()
	heartbeat := time.NewTicker(c.service.config.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-ping.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.logger.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-heartbeat.C:
			if err := c.service.presence.Heartbeat(c.ctx, c.options.UserID, c.options.SessionID); err != nil {
				c.logger.Warn().Err(err).Msg("presence heartbeat failed")
			}
		case <-c.closed:
			return
		}
	}
}

func (c *realtimeSession) dispatch(event dto.ClientEvent) (interface{}, error) {
	if err := c.service.validator.Struct(event); err != nil {
		return nil, err
	}

	switch event.Type {
	case dto.EventPing:
		return nil, nil

	case dto.EventChatOpen:
		var payload dto.ChatOpenPayload
		if err := c.decode(event, &payload); err != nil {
			return nil, err
		}
		return nil, c.openChat(payload.ChatID)

	case dto.EventChatClose:
		c.closeChat()
		return nil, nil

	case dto.EventMessageSend:
		var payload dto.MessageSendPayload
		if err := c.decode(event, &payload); err != nil {
			return nil, err
		}
		if c.activeChat == "" {
			return nil, ErrNoActiveChat
		}
		return c.service.messages.Send(c.ctx, c.activeChat, c.options.UserID, payload.Content)

	case dto.EventReactionToggle:
		var payload dto.ReactionTogglePayload
		if err := c.decode(event, &payload); err != nil {
			return nil, err
		}
		if c.activeChat == "" {
			return nil, ErrNoActiveChat
		}
		return c.service.messages.ToggleReaction(c.ctx, c.activeChat, payload.MessageID, c.options.UserID, payload.Emoji)

	case dto.EventPresenceWatch:
		var payload dto.PresenceWatchPayload
		if err := c.decode(event, &payload); err != nil {
			return nil, err
		}
		return nil, c.watchPresence(payload.UserIDs)

	case dto.EventPresenceUnwatch:
		var payload dto.PresenceWatchPayload
		if err := c.decode(event, &payload); err != nil {
			return nil, err
		}
		for _, userID := range payload.UserIDs {
			if stop, ok := c.watched[userID]; ok {
				stop()
				delete(c.watched, userID)
			}
		}
		return nil, nil

	case dto.EventPresenceOffline:
		return nil, c.service.presence.Unload(c.ctx, c.options.UserID, c.options.SessionID)

	default:
		return nil, fmt.Errorf("%w: unsupported type %q", errInvalidEvent, event.Type)
	}
}

// openChat replaces the active chat. Every snapshot of it is delivered and
// then reconciled so messages from others become read while the chat is open.
// Snapshots still pending when the chat is closed are dropped unreconciled.
func (c *realtimeSession) openChat(chatID string) error {
	chatCtx, cancelChat := context.WithCancel(c.ctx)
	stream, stop, err := c.service.messages.Watch(chatCtx, chatID, c.options.UserID)
	if err != nil {
		cancelChat()
		return err
	}

	c.closeChat()
	c.chatMu.Lock()
	c.activeChat = chatID
	c.stopChat = func() {
		cancelChat()
		stop()
	}
	c.chatMu.Unlock()

	c.forwards.Add(1)
	go func() {
		defer c.forwards.Done()
		for snapshot := range stream {
			if !c.deliverChat(chatCtx, dto.ServerEvent{Type: dto.EventMessagesSnapshot, Payload: snapshot}) {
				stop()
				continue
			}
			c.reconcile(chatCtx, chatID, snapshot.Messages)
		}
	}()
	return nil
}

// reconcile marks the snapshot read unless its chat was closed in the meantime.
// closeChat takes the same lock, so no reconcile starts after it returns.
func (c *realtimeSession) reconcile(chatCtx context.Context, chatID string, messages []dto.MessageResponse) {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()

	if chatCtx.Err() != nil {
		return
	}
	if _, err := c.service.receipts.Reconcile(chatCtx, chatID, c.options.UserID, messages); err != nil && chatCtx.Err() == nil {
		c.logger.Warn().Err(err).Str("chat_id", chatID).Msg("read receipt reconcile failed")
	}
}

func (c *realtimeSession) closeChat() {
	c.chatMu.Lock()
	defer c.chatMu.Unlock()

	if c.stopChat != nil {
		c.stopChat()
	}
	c.stopChat = nil
	c.activeChat = ""
}

func (c *realtimeSession) watchPresence(userIDs []string) error {
	for _, userID := range userIDs {
		if _, ok := c.watched[userID]; ok {
			continue
		}
		if len(c.watched) >= sessionMaxWatchedUsers {
			return fmt.Errorf("%w: presence watch limit of %d reached", errInvalidEvent, sessionMaxWatchedUsers)
		}
		stream, stop := c.service.presence.Watch(c.ctx, userID)
		c.watched[userID] = stop
		forward(c, stream, func(presence dto.PresenceResponse) dto.ServerEvent {
			return dto.ServerEvent{Type: dto.EventPresence, Payload: presence}
		})
	}
	return nil
}

func (c *realtimeSession) decode(event dto.ClientEvent, target interface{}) error {
	if len(event.Payload) == 0 {
		return fmt.Errorf("%w: payload required for %s", errInvalidEvent, event.Type)
	}
	if err := json.Unmarshal(event.Payload, target); err != nil {
		return fmt.Errorf("%w: malformed %s payload: %v", errInvalidEvent, event.Type, err)
	}
	return c.service.validator.Struct(target)
}

// deliver queues a snapshot, waiting for room in the send buffer.
func (c *realtimeSession) deliver(event dto.ServerEvent) bool {
	select {
	case c.send <- event:
		return true
	case <-c.closed:
		return false
	}
}

// deliverChat is deliver for a chat view; it gives up once the chat is closed.
func (c *realtimeSession) deliverChat(chatCtx context.Context, event dto.ServerEvent) bool {
	select {
	case <-chatCtx.Done():
		return false
	default:
	}
	select {
	case c.send <- event:
		return true
	case <-chatCtx.Done():
		return false
	case <-c.closed:
		return false
	}
}

// reply queues a response frame, dropping it when the client is not keeping up.
func (c *realtimeSession) reply(event dto.ServerEvent) {
	select {
	case c.send <- event:
	default:
		c.logger.Warn().Str("event", event.Type).Msg("session queue full, dropping reply")
	}
}

func (c *realtimeSession) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

func (c *realtimeSession) shutdown() {
	c.closeChat()
	for userID, stop := range c.watched {
		stop()
		delete(c.watched, userID)
	}
	c.cancel()
	c.forwards.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), sessionDisconnectGrace)
	defer cancel()
	if err := c.service.presence.Disconnect(ctx, c.options.UserID, c.options.SessionID); err != nil {
		c.logger.Warn().Err(err).Msg("failed to detach presence session")
	}
}

func forward[T any](session *realtimeSession, stream <-chan T, toEvent func(T) dto.ServerEvent) {
	session.forwards.Add(1)
	go func() {
		defer session.forwards.Done()
		for item := range stream {
			if !session.deliver(toEvent(item)) {
				return
			}
		}
	}()
}

func clientErrorMessage(err error) string {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return validationErrs.Error()
	}

	for _, known := range []error{
		errInvalidEvent, ErrChatNotFound, ErrNotChatMember, ErrEmptyMessage,
		ErrMessageNotFound, ErrNoActiveChat, ErrUserNotFound,
	} {
		if errors.Is(err, known) {
			return err.Error()
		}
	}
	return "internal error"
}
