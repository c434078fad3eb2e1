package utils

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Cache key layout shared with middlewares.ResponseCache.
const (
	EventListPrefix = "cache:events:list:"
	EventItemPrefix = "cache:events:item:"
)

// EventItemKey is the cache key of GET /events/:id. The raw id stays in the
// key so a single event can be purged exactly.
func EventItemKey(id string) string { return EventItemPrefix + id }

type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator { return &CacheInvalidator{rdb} }

// PurgeEventsList drops every cached event listing (all, upcoming, past, filter).
func (ci *CacheInvalidator) PurgeEventsList(ctx context.Context) error {
	iter := ci.rdb.Scan(ctx, 0, EventListPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return ci.rdb.Del(ctx, keys...).Err()
}

func (ci *CacheInvalidator) PurgeEventItem(ctx context.Context, id int64) error {
	return ci.rdb.Del(ctx, EventItemKey(strconv.FormatInt(id, 10))).Err()
}

// PurgeEvent drops the item and every listing; used after any write that
// changes an event or its occupancy.
func (ci *CacheInvalidator) PurgeEvent(ctx context.Context, id int64) error {
	if err := ci.PurgeEventItem(ctx, id); err != nil {
		return err
	}
	return ci.PurgeEventsList(ctx)
}
