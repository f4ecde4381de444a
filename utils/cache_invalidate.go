package utils

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// CacheKeyPrefix namespaces every cached public response.
const CacheKeyPrefix = "cache:registration:"

type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator { return &CacheInvalidator{rdb} }

// PurgeOptions drops every cached option list and form page. Called after any event
// change, since a rename, a date move or a window edit reshapes the cascade.
func (ci *CacheInvalidator) PurgeOptions(ctx context.Context) (int, error) {
	purged := 0
	iter := ci.rdb.Scan(ctx, 0, CacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := ci.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, iter.Err()
}
