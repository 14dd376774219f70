package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBusForwardsSignalsAcrossNodes(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewBus(NewHub(zerolog.Nop()), clientA, "vibely-test", nil, zerolog.Nop())
	nodeB := NewBus(NewHub(zerolog.Nop()), clientB, "vibely-test", nil, zerolog.Nop())
	nodeA.Start(ctx)
	nodeB.Start(ctx)
	require.NotEqual(t, nodeA.NodeID(), nodeB.NodeID())

	sub := nodeB.Subscribe(ChatMessagesTopic("c1"))
	defer sub.Close()

	require.Eventually(t, func() bool {
		nodeA.Publish(ctx, ChatMessagesTopic("c1"))
		select {
		case <-sub.C():
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBusResumesAfterRedisRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = clientA.Close()
		_ = clientB.Close()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nodeA := NewBus(NewHub(zerolog.Nop()), clientA, "vibely-test", nil, zerolog.Nop())
	nodeB := NewBus(NewHub(zerolog.Nop()), clientB, "vibely-test", nil, zerolog.Nop())
	nodeB.retryDelay = 20 * time.Millisecond
	nodeB.Start(ctx)

	sub := nodeB.Subscribe(ChatMessagesTopic("c1"))
	defer sub.Close()

	delivered := func() bool {
		nodeA.Publish(ctx, ChatMessagesTopic("c1"))
		select {
		case <-sub.C():
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}
	require.Eventually(t, delivered, 2*time.Second, 10*time.Millisecond)

	mr.Close()
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, mr.Restart())

	require.Eventually(t, delivered, 5*time.Second, 50*time.Millisecond)
}

func TestBusDropsOwnEcho(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	bus := NewBus(hub, nil, "", nil, zerolog.Nop())
	sub := hub.Subscribe(PresenceTopic("u1"))
	defer sub.Close()

	bus.handleEvent([]byte(`{"source":"` + bus.NodeID() + `","topics":["presence:u1"]}`))
	select {
	case <-sub.C():
		t.Fatal("own events must not re-signal")
	default:
	}

	bus.handleEvent([]byte(`{"source":"peer","topics":["presence:u1"]}`))
	select {
	case <-sub.C():
	default:
		t.Fatal("expected peer event to signal")
	}
}

func TestRedisClockUsesServerTime(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mr.SetTime(fixed)

	clock := NewRedisClock(client, zerolog.Nop())
	require.True(t, clock.Now(context.Background()).Equal(fixed))
}

func TestRedisClockFallsBackToLocalTime(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	t.Cleanup(func() { _ = client.Close() })

	before := time.Now().UTC().Add(-time.Second)
	now := NewRedisClock(client, zerolog.Nop()).Now(context.Background())
	require.True(t, now.After(before))
}
