package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/observability"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
)

const presenceTxRetries = 8

// PresenceReader resolves presence without mutating it.
type PresenceReader interface {
	Get(ctx context.Context, userID string) (dto.PresenceResponse, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]dto.PresenceResponse, error)
}

// PresenceService tracks online/offline state per user across sessions.
type PresenceService interface {
	PresenceReader
	Connect(ctx context.Context, userID, sessionID string) error
	Heartbeat(ctx context.Context, userID, sessionID string) error
	Unload(ctx context.Context, userID, sessionID string) error
	Disconnect(ctx context.Context, userID, sessionID string) error
	Logout(ctx context.Context, userID string) error
	Sweep(ctx context.Context) (int, error)
	Watch(ctx context.Context, userID string) (<-chan dto.PresenceResponse, func())
	Start(ctx context.Context, spec string) error
}

type presenceService struct {
	redis    *redis.Client
	prefix   string
	ttl      time.Duration
	clock    realtime.Clock
	notifier realtime.Notifier
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewPresenceService constructs a presence tracker backed by Redis.
func NewPresenceService(redisClient *redis.Client, channelBase string, sessionTTL time.Duration, clock realtime.Clock, notifier realtime.Notifier, logger zerolog.Logger) PresenceService {
	if sessionTTL <= 0 {
		sessionTTL = 90 * time.Second
	}
	if channelBase == "" {
		channelBase = "vibely"
	}
	if clock == nil {
		clock = realtime.SystemClock{}
	}

	return &presenceService{
		redis:    redisClient,
		prefix:   channelBase + ":presence",
		ttl:      sessionTTL,
		clock:    clock,
		notifier: notifier,
		logger:   logger.With().Str("component", "presence_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/vibely-go-api/internal/service/presence"),
	}
}

func (s *presenceService) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, userID)
}

func (s *presenceService) sessionsKey(userID string) string {
	return fmt.Sprintf("%s:sessions:%s", s.prefix, userID)
}

func (s *presenceService) leaseKey(userID, sessionID string) string {
	return fmt.Sprintf("%s:lease:%s:%s", s.prefix, userID, sessionID)
}

func (s *presenceService) activeKey() string {
	return s.prefix + ":active"
}

// Connect registers the session and moves the user online if it was offline.
func (s *presenceService) Connect(ctx context.Context, userID, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "presence.connect", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return s.attach(ctx, userID, sessionID)
}

// Heartbeat refreshes the session lease, re-registering a session the sweeper already removed.
func (s *presenceService) Heartbeat(ctx context.Context, userID, sessionID string) error {
	return s.attach(ctx, userID, sessionID)
}

// Unload is the client's best-effort offline write before navigating away.
func (s *presenceService) Unload(ctx context.Context, userID, sessionID string) error {
	return s.detach(ctx, userID, sessionID)
}

// Disconnect runs when the server observes the session's connection end.
func (s *presenceService) Disconnect(ctx context.Context, userID, sessionID string) error {
	ctx, span := s.tracer.Start(ctx, "presence.disconnect", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	return s.detach(ctx, userID, sessionID)
}

// Logout drops every session of the user.
func (s *presenceService) Logout(ctx context.Context, userID string) error {
	sessions, err := s.redis.SMembers(ctx, s.sessionsKey(userID)).Result()
	if err != nil {
		return err
	}
	for _, sessionID := range sessions {
		if err := s.detach(ctx, userID, sessionID); err != nil {
			return err
		}
	}
	if len(sessions) == 0 {
		return s.detach(ctx, userID, "")
	}
	return nil
}

// Sweep detaches sessions whose lease expired without a disconnect and returns
// how many users went offline as a result.
func (s *presenceService) Sweep(ctx context.Context) (int, error) {
	users, err := s.redis.SMembers(ctx, s.activeKey()).Result()
	if err != nil {
		return 0, err
	}

	flipped := 0
	for _, userID := range users {
		sessions, err := s.redis.SMembers(ctx, s.sessionsKey(userID)).Result()
		if err != nil {
			return flipped, err
		}
		if len(sessions) == 0 {
			s.redis.SRem(ctx, s.activeKey(), userID)
			continue
		}

		wasOnline := false
		for _, sessionID := range sessions {
			alive, err := s.redis.Exists(ctx, s.leaseKey(userID, sessionID)).Result()
			if err != nil {
				return flipped, err
			}
			if alive > 0 {
				continue
			}
			s.logger.Debug().Str("user_id", userID).Str("session_id", sessionID).Msg("sweeping expired presence session")
			went, err := s.detachSession(ctx, userID, sessionID)
			if err != nil {
				return flipped, err
			}
			wasOnline = wasOnline || went
		}
		if wasOnline {
			flipped++
			observability.PresenceSwept().Inc()
		}
	}

	return flipped, nil
}

// Start schedules Sweep on the given cron spec until ctx is cancelled.
func (s *presenceService) Start(ctx context.Context, spec string) error {
	scheduler := cron.New(cron.WithSeconds())
	_, err := scheduler.AddFunc(spec, func() {
		swept, err := s.Sweep(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("presence sweep failed")
			return
		}
		if swept > 0 {
			s.logger.Info().Int("users", swept).Msg("presence sweep flipped users offline")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule presence sweep: %w", err)
	}

	scheduler.Start()
	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()
	return nil
}

// Get returns the user's presence. Unknown users are offline with no last-seen.
func (s *presenceService) Get(ctx context.Context, userID string) (dto.PresenceResponse, error) {
	values, err := s.redis.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return dto.PresenceResponse{UserID: userID}, err
	}
	return presenceFromHash(userID, values), nil
}

// GetMany resolves presence for several users in one round trip.
func (s *presenceService) GetMany(ctx context.Context, userIDs []string) (map[string]dto.PresenceResponse, error) {
	result := make(map[string]dto.PresenceResponse, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(userIDs))
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, userID := range userIDs {
			cmds[i] = pipe.HGetAll(ctx, s.userKey(userID))
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	for i, userID := range userIDs {
		result[userID] = presenceFromHash(userID, cmds[i].Val())
	}
	return result, nil
}

// Watch streams the user's presence on every change.
func (s *presenceService) Watch(ctx context.Context, userID string) (<-chan dto.PresenceResponse, func()) {
	return realtime.Watch(ctx, s.notifier, []string{realtime.PresenceTopic(userID)}, func(ctx context.Context) (dto.PresenceResponse, error) {
		return s.Get(ctx, userID)
	}, s.logger)
}

func (s *presenceService) attach(ctx context.Context, userID, sessionID string) error {
	now := s.clock.Now(ctx)
	userKey := s.userKey(userID)
	sessionsKey := s.sessionsKey(userID)
	transitioned := false

	txf := func(tx *redis.Tx) error {
		transitioned = false
		online, err := tx.HGet(ctx, userKey, "online").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SAdd(ctx, sessionsKey, sessionID)
			pipe.Set(ctx, s.leaseKey(userID, sessionID), now.Format(time.RFC3339Nano), s.ttl)
			pipe.SAdd(ctx, s.activeKey(), userID)
			if online != "1" {
				transitioned = true
				pipe.HSet(ctx, userKey, "online", "1", "online_since", now.Format(time.RFC3339Nano))
			}
			return nil
		})
		return err
	}

	if err := s.runTx(ctx, txf, userKey, sessionsKey); err != nil {
		return err
	}

	if transitioned {
		observability.PresenceTransitions().WithLabelValues("online").Inc()
		s.notifier.Publish(ctx, realtime.PresenceTopic(userID))
	}
	return nil
}

func (s *presenceService) detach(ctx context.Context, userID, sessionID string) error {
	_, err := s.detachSession(ctx, userID, sessionID)
	return err
}

// detachSession removes one session and flips the user offline when it was the last.
// Repeating it for the same session is a no-op.
func (s *presenceService) detachSession(ctx context.Context, userID, sessionID string) (bool, error) {
	now := s.clock.Now(ctx)
	userKey := s.userKey(userID)
	sessionsKey := s.sessionsKey(userID)
	transitioned := false

	txf := func(tx *redis.Tx) error {
		transitioned = false
		sessions, err := tx.SMembers(ctx, sessionsKey).Result()
		if err != nil {
			return err
		}
		state, err := tx.HMGet(ctx, userKey, "online", "online_since").Result()
		if err != nil {
			return err
		}

		remaining := 0
		for _, id := range sessions {
			if id != sessionID {
				remaining++
			}
		}
		online := stringValue(state[0]) == "1"

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if sessionID != "" {
				pipe.SRem(ctx, sessionsKey, sessionID)
				pipe.Del(ctx, s.leaseKey(userID, sessionID))
			}
			if remaining == 0 {
				pipe.SRem(ctx, s.activeKey(), userID)
				if online {
					transitioned = true
					lastSeen := now
					if since, ok := parseTime(stringValue(state[1])); ok && since.After(lastSeen) {
						lastSeen = since
					}
					pipe.HSet(ctx, userKey, "online", "0", "last_seen", lastSeen.Format(time.RFC3339Nano))
				}
			}
			return nil
		})
		return err
	}

	if err := s.runTx(ctx, txf, userKey, sessionsKey); err != nil {
		return false, err
	}

	if transitioned {
		observability.PresenceTransitions().WithLabelValues("offline").Inc()
		s.notifier.Publish(ctx, realtime.PresenceTopic(userID))
	}
	return transitioned, nil
}

func (s *presenceService) runTx(ctx context.Context, txf func(tx *redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < presenceTxRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, keys...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("presence update contended: %w", redis.TxFailedErr)
}

func presenceFromHash(userID string, values map[string]string) dto.PresenceResponse {
	presence := dto.PresenceResponse{UserID: userID, Online: values["online"] == "1"}
	if lastSeen, ok := parseTime(values["last_seen"]); ok {
		presence.LastSeen = &lastSeen
	}
	return presence
}

func parseTime(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

func stringValue(value interface{}) string {
	if s, ok := value.(string); ok {
		return s
	}
	return ""
}
