package api

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/lms/internal/domain"
)

func TestPublishLeaderboardUpdated(t *testing.T) {
	ctx := context.Background()
	a, rdb := newPubsubAPI(t)

	alice, bob := mustID(t), mustID(t)
	subAlice := subscribe(t, rdb, UserChannel("lms", alice))
	subBob := subscribe(t, rdb, UserChannel("lms", bob))

	err := a.PublishLeaderboardUpdated(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{Entries: []domain.LeaderboardEntry{
			{Rank: 1, UserID: bob, Handle: "BOB2345", TotalPoints: decimal.RequireFromString("225")},
			{Rank: 2, UserID: alice, Handle: "ALI6789", TotalPoints: decimal.RequireFromString("65.5")},
		}},
	})
	require.NoError(t, err)

	for _, sub := range []*redis.PubSub{subAlice, subBob} {
		var n struct {
			Event string             `json:"event"`
			Data  domain.Leaderboard `json:"data"`
		}
		receive(t, sub, &n)

		assert.Equal(t, domain.EventNameLeaderboardUpdated, n.Event)
		require.Len(t, n.Data.Entries, 2)
		assert.Equal(t, "BOB2345", n.Data.Entries[0].Handle)
		assert.Equal(t, "65.5", n.Data.Entries[1].TotalPoints.String())
	}
}

func TestPublishNotificationCreated(t *testing.T) {
	ctx := context.Background()
	a, rdb := newPubsubAPI(t)

	user := mustID(t)
	sub := subscribe(t, rdb, UserChannel("lms", user))

	err := a.PublishNotificationCreated(ctx, domain.EventNotificationCreated{
		Notification: domain.Notification{UserID: user, Kind: "enrollment_approved", Message: "approved"},
	})
	require.NoError(t, err)

	var n struct {
		Event string              `json:"event"`
		Data  domain.Notification `json:"data"`
	}
	receive(t, sub, &n)

	assert.Equal(t, domain.EventNameNotificationCreated, n.Event)
	assert.Equal(t, "approved", n.Data.Message)
}

func newPubsubAPI(t *testing.T) (*API, *redis.Client) {
	t.Helper()

	s := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, a := newTestAPI(t, func(c *Config) {
		c.Redis = rdb
		c.PubsubPrefix = "lms"
	})
	return a, rdb
}

func subscribe(t *testing.T, rdb *redis.Client, channel string) *redis.PubSub {
	t.Helper()

	sub := rdb.Subscribe(context.Background(), channel)
	t.Cleanup(func() { _ = sub.Close() })

	_, err := sub.Receive(context.Background())
	require.NoError(t, err)
	return sub
}

func receive(t *testing.T, sub *redis.PubSub, v any) {
	t.Helper()

	select {
	case msg := <-sub.Channel():
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), v))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
