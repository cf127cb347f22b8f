package redis

import (
	"context"
	"time"

	"github.com/mbartos/pension-reservations/internal/domain"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

func nightKey(roomID string, night domain.Date) string {
	return "night:" + roomID + ":" + night.String()
}

// SetNightLock takes a short-lived lock on one room night. It narrows the
// window between the availability re-check and the hold insert; losing it
// means another session got there first.
func (c *Cache) SetNightLock(ctx context.Context, roomID string, night domain.Date, sessionID string, ttl time.Duration) (bool, error) {
	res := c.client.SetNX(ctx, nightKey(roomID, night), sessionID, ttl)
	return res.Val(), res.Err()
}

// ReleaseNightLocks drops the lock keys for every night of the stay; called
// when a hold expires or its session abandons the flow.
func (c *Cache) ReleaseNightLocks(ctx context.Context, roomIDs []string, stay domain.DateRange) error {
	var keys []string
	for _, roomID := range roomIDs {
		for d := stay.Start; d.Before(stay.End); d = d.AddDays(1) {
			keys = append(keys, nightKey(roomID, d))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
