package service

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/vibely-go-api/internal/dto"
	"github.com/noah-isme/vibely-go-api/internal/models"
	"github.com/noah-isme/vibely-go-api/internal/realtime"
	"github.com/noah-isme/vibely-go-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatMember{},
		&models.Message{},
		&models.MessageReaction{},
		&models.ChatRequest{},
		&models.Companion{},
	))
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

// stepClock is a manually advanced clock.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now(context.Context) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

func (c *stepClock) Set(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = at
}

// testEnv wires every chat service against sqlite and miniredis.
type testEnv struct {
	db        *gorm.DB
	redis     *redis.Client
	miniredis *miniredis.Miniredis
	hub       *realtime.Hub
	bus       *realtime.Bus
	clock     *stepClock

	users    repository.UserRepository
	chats    repository.ChatRepository
	messages repository.MessageRepository
	requests repository.ChatRequestRepository

	presence   PresenceService
	cache      MessageCache
	directory  DirectoryService
	messaging  MessageService
	receipts   ReadReceiptReconciler
	chatReqs   ChatRequestService
	automation AutomationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	mr, client := newTestRedis(t)
	log := testLogger()
	hub := realtime.NewHub(log)
	bus := realtime.NewBus(hub, nil, "", nil, log)
	clock := newStepClock()
	validate := dto.NewValidator()

	env := &testEnv{
		db:        db,
		redis:     client,
		miniredis: mr,
		hub:       hub,
		bus:       bus,
		clock:     clock,
		users:     repository.NewUserRepository(db),
		chats:     repository.NewChatRepository(db),
		messages:  repository.NewMessageRepository(db),
		requests:  repository.NewChatRequestRepository(db),
	}

	env.presence = NewPresenceService(client, "test", time.Minute, clock, bus, log)
	env.cache = NewMessageCache(client, "test", log)
	env.directory = NewDirectoryService(env.chats, env.users, env.presence, env.cache, bus, clock, validate, log)
	env.messaging = NewMessageService(env.messages, env.chats, env.users, env.directory, env.cache, bus, clock, 50, log)
	env.receipts = NewReadReceiptReconciler(env.messages, env.messaging, bus, log)
	env.chatReqs = NewChatRequestService(env.requests, env.users, env.directory, bus, clock, log)
	env.automation = NewAutomationService(env.chats, env.users, env.directory, nil, bus, clock, validate, log)
	return env
}

func (e *testEnv) seedUser(t *testing.T, id, username string) models.User {
	t.Helper()

	user := models.User{
		ID:            id,
		SchemaVersion: models.UserSchemaVersion,
		Email:         username + "@example.com",
		FullName:      strings.ToUpper(username[:1]) + username[1:],
		Username:      username,
		UserCode:      models.FormatUserCode(username, 1000+len(id)),
	}
	require.NoError(t, e.users.Create(context.Background(), &user))
	return user
}

func (e *testEnv) seedMessage(t *testing.T, chatID, authorID, content string) models.Message {
	t.Helper()

	message := models.Message{
		ID:        fmt.Sprintf("m-%s-%d", authorID, e.clock.Advance(time.Second).UnixNano()),
		ChatID:    chatID,
		AuthorID:  authorID,
		Content:   content,
		Timestamp: e.clock.Now(context.Background()),
	}
	require.NoError(t, e.messages.Create(context.Background(), &message))
	return message
}

func buildFileHeader(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(int64(len(content))+1024))

	files := req.MultipartForm.File[field]
	require.Len(t, files, 1)
	return files[0]
}

// receive waits for the next value on ch.
func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case value, ok := <-ch:
		require.True(t, ok, "stream closed")
		return value
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream value")
	}
	var zero T
	return zero
}
