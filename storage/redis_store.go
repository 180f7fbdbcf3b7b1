package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rental-digest/models"
)

const (
	redisListingPrefix = "listing:"
	redisUpdatedIndex  = "listings:updated"
)

// insertIfAbsentScript writes the record and its time-index entry in one
// atomic step, and only when the key does not exist yet.
var insertIfAbsentScript = redis.NewScript(`
if redis.call('SET', KEYS[1], ARGV[1], 'NX') then
	redis.call('ZADD', KEYS[2], ARGV[2], ARGV[3])
	return 1
end
return 0
`)

// RedisStore keeps one JSON document per listing and a sorted set scored by
// last-updated time for window queries.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

type redisListing struct {
	ID            string    `json:"id"`
	Source        string    `json:"source"`
	Neighborhood  string    `json:"neighborhood"`
	Address       string    `json:"address"`
	Price         float64   `json:"price"`
	Area          string    `json:"area"`
	Rooms         int       `json:"rooms"`
	ParkingSpaces int       `json:"parking_spaces"`
	Link          string    `json:"link"`
	FirstSeenAt   time.Time `json:"first_seen_at"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

func (r *RedisStore) InsertIfAbsent(ctx context.Context, l *models.Listing) (models.InsertOutcome, error) {
	doc, err := json.Marshal(redisListing{
		ID:            l.ID,
		Source:        l.Source,
		Neighborhood:  l.Neighborhood,
		Address:       l.Address,
		Price:         l.Price,
		Area:          l.Area,
		Rooms:         l.Rooms,
		ParkingSpaces: l.ParkingSpaces,
		Link:          l.DetailURL,
		FirstSeenAt:   l.FirstSeenAt.UTC(),
		LastUpdatedAt: l.LastUpdatedAt.UTC(),
	})
	if err != nil {
		return 0, fmt.Errorf("redis: encode: %w", err)
	}

	keys := []string{redisListingPrefix + l.ID, redisUpdatedIndex}
	n, err := insertIfAbsentScript.Run(ctx, r.rdb, keys, doc, l.LastUpdatedAt.UnixMilli(), l.ID).Int()
	if err != nil {
		return 0, fmt.Errorf("redis: insert: %w", err)
	}
	if n == 0 {
		return models.AlreadyExists, nil
	}
	return models.Inserted, nil
}

func (r *RedisStore) ScanSince(ctx context.Context, cutoff time.Time) ([]*models.Listing, error) {
	ids, err := r.rdb.ZRangeByScore(ctx, redisUpdatedIndex, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: range index: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisListingPrefix + id
	}
	docs, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget: %w", err)
	}

	listings := make([]*models.Listing, 0, len(docs))
	for i, d := range docs {
		s, ok := d.(string)
		if !ok {
			// index entry without a document; skip rather than fail the digest
			continue
		}
		var rl redisListing
		if err := json.Unmarshal([]byte(s), &rl); err != nil {
			return nil, fmt.Errorf("redis: decode %s: %w", keys[i], err)
		}
		listings = append(listings, &models.Listing{
			ID:            rl.ID,
			Source:        rl.Source,
			Neighborhood:  rl.Neighborhood,
			Address:       rl.Address,
			Price:         rl.Price,
			Area:          rl.Area,
			Rooms:         rl.Rooms,
			ParkingSpaces: rl.ParkingSpaces,
			DetailURL:     rl.Link,
			FirstSeenAt:   rl.FirstSeenAt,
			LastUpdatedAt: rl.LastUpdatedAt,
		})
	}
	return listings, nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.rdb.Close()
}
