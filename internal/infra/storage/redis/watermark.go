package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gabapcia/tronwatch/internal/txtracker"

	"github.com/redis/go-redis/v9"
)

// watermarkKeyPrefix is the namespace prefix for all per-wallet watermark keys.
const watermarkKeyPrefix = "txtracker"

// watermarkKey constructs the Redis key holding a wallet's watermark.
//
// Format: "txtracker:watermark:<address>"
func watermarkKey(address string) string {
	return fmt.Sprintf("%s:watermark:%s", watermarkKeyPrefix, address)
}

// LoadWatermark retrieves the persisted watermark for the wallet in epoch
// milliseconds. Wallets never advanced before yield
// txtracker.ErrNoWatermarkFound, letting the orchestrator fall back to
// the wallet source's lower bound.
func (c *client) LoadWatermark(ctx context.Context, address string) (int64, error) {
	val, err := c.conn.Get(ctx, watermarkKey(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			err = txtracker.ErrNoWatermarkFound
		}
		return 0, err
	}

	return strconv.ParseInt(val, 10, 64)
}

// SaveWatermark persists the wallet's watermark with no expiration, so
// tracking resumes from the correct position after restarts.
func (c *client) SaveWatermark(ctx context.Context, address string, epochMillis int64) error {
	return c.conn.Set(ctx, watermarkKey(address), epochMillis, 0).Err()
}

// Compile-time assertion that client implements the WatermarkStorage interface.
var _ txtracker.WatermarkStorage = new(client)
