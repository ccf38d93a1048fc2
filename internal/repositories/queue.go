package repositories

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// Positional edits run as Lua so the read-modify-write over the list is
// atomic. Each script raises the bare error "e" when the queue key does not
// exist, which maps to [shared.ErrQueueNotFound].
var (
	insertScript = redis.NewScript(`
local key = KEYS[1]
local value = ARGV[1]
local pos = tonumber(ARGV[2]) + 1
local ttl = tonumber(ARGV[3])

local len = redis.call('LLEN', key)
if len == 0 then return redis.error_reply("e") end
if pos > len then pos = len + 1 end

local elements = redis.call('LRANGE', key, 0, -1)
table.insert(elements, pos, value)

redis.call('DEL', key)

if #elements > 0 then
    redis.call('RPUSH', key, unpack(elements))
end

redis.call('EXPIRE', key, ttl)
return 'OK'
`)

	moveScript = redis.NewScript(`
local key = KEYS[1]
local src = tonumber(ARGV[1]) + 1
local dest = tonumber(ARGV[2]) + 1
local ttl = tonumber(ARGV[3])

local len = redis.call('LLEN', key)
if len == 0 then return redis.error_reply("e") end
if src > len then src = len end
if dest >= len then dest = len + 1 end

local elements = redis.call('LRANGE', key, 0, -1)
local elem = table.remove(elements, src)

if dest > src then dest = dest - 1 end

table.insert(elements, dest, elem)
redis.call('DEL', key)
if #elements > 0 then
    redis.call('RPUSH', key, unpack(elements))
end

redis.call('EXPIRE', key, ttl)
return 'OK'
`)

	removeScript = redis.NewScript(`
local key = KEYS[1]
local pos = tonumber(ARGV[1]) + 1
local ttl = tonumber(ARGV[2])

local len = redis.call('LLEN', key)
if len == 0 then return redis.error_reply("e") end
if pos > len then pos = len end

local elements = redis.call('LRANGE', key, 0, -1)
table.remove(elements, pos)
redis.call('DEL', key)
if #elements > 0 then
    redis.call('RPUSH', key, unpack(elements))
end

redis.call('EXPIRE', key, ttl)
return 'OK'
`)
)

// QueueRepository keeps per-user playback queues as redis lists. Every
// access refreshes the key's TTL so an active queue never expires.
type QueueRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQueueRepository creates a new [QueueRepository] over the given client.
func NewQueueRepository(client *redis.Client, ttl time.Duration) *QueueRepository {
	return &QueueRepository{client: client, ttl: ttl}
}

func queueKey(userID int64) string {
	return fmt.Sprintf("queue:%d", userID)
}

// queueNotFound recognizes the "e" sentinel the scripts raise for a missing
// queue key.
func queueNotFound(err error) bool {
	return err != nil && strings.TrimSpace(err.Error()) == "e"
}

// PushLeft prepends a track to the user's queue, creating it when absent.
func (r *QueueRepository) PushLeft(ctx context.Context, userID, trackID int64) error {
	key := queueKey(userID)
	if err := r.client.LPush(ctx, key, trackID).Err(); err != nil {
		return fmt.Errorf("failed to push queue: %w", err)
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

// PushRight appends a track to the user's queue, creating it when absent.
func (r *QueueRepository) PushRight(ctx context.Context, userID, trackID int64) error {
	key := queueKey(userID)
	if err := r.client.RPush(ctx, key, trackID).Err(); err != nil {
		return fmt.Errorf("failed to push queue: %w", err)
	}
	return r.client.Expire(ctx, key, r.ttl).Err()
}

// List returns a window of the user's queue. An empty result means the
// queue does not exist (empty queues are deleted keys) and fails with
// [shared.ErrQueueNotFound].
func (r *QueueRepository) List(ctx context.Context, userID int64, window models.QueueWindow) (models.Queue, error) {
	key := queueKey(userID)
	stop := int64(-1)
	if window.Limit > 0 {
		stop = window.Offset + window.Limit - 1
	}

	res, err := r.client.LRange(ctx, key, window.Offset, stop).Result()
	if err != nil {
		return models.Queue{}, fmt.Errorf("failed to read queue: %w", err)
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return models.Queue{}, fmt.Errorf("failed to refresh queue ttl: %w", err)
	}
	if len(res) == 0 {
		return models.Queue{}, fmt.Errorf("%w: user '%d'", shared.ErrQueueNotFound, userID)
	}

	ids := make([]int64, len(res))
	for i, v := range res {
		ids[i], err = strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.Queue{}, fmt.Errorf("failed to parse queue entry %q: %w", v, err)
		}
	}
	return models.Queue{TrackIDs: ids}, nil
}

// Insert places a track at a 0-based position in an existing queue.
// Positions past the end append.
func (r *QueueRepository) Insert(ctx context.Context, userID, trackID, position int64) error {
	err := insertScript.Run(ctx, r.client, []string{queueKey(userID)}, trackID, position, int64(r.ttl.Seconds())).Err()
	if queueNotFound(err) {
		return fmt.Errorf("%w: user '%d'", shared.ErrQueueNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert into queue: %w", err)
	}
	return nil
}

// Move relocates the entry at src to dest, both 0-based. Out-of-range
// positions clamp to the ends.
func (r *QueueRepository) Move(ctx context.Context, userID, src, dest int64) error {
	err := moveScript.Run(ctx, r.client, []string{queueKey(userID)}, src, dest, int64(r.ttl.Seconds())).Err()
	if queueNotFound(err) {
		return fmt.Errorf("%w: user '%d'", shared.ErrQueueNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to move within queue: %w", err)
	}
	return nil
}

// Remove drops the entry at a 0-based position. Positions past the end
// remove the last entry.
func (r *QueueRepository) Remove(ctx context.Context, userID, position int64) error {
	err := removeScript.Run(ctx, r.client, []string{queueKey(userID)}, position, int64(r.ttl.Seconds())).Err()
	if queueNotFound(err) {
		return fmt.Errorf("%w: user '%d'", shared.ErrQueueNotFound, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	return nil
}

// Delete drops the whole queue.
func (r *QueueRepository) Delete(ctx context.Context, userID int64) error {
	n, err := r.client.Del(ctx, queueKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete queue: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: user '%d'", shared.ErrQueueNotFound, userID)
	}
	return nil
}
