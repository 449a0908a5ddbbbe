// Package livecache mirrors live bus positions into a Redis GEO set so
// nearby-bus lookups avoid scanning the database.
package livecache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"shuttle_tracker/internal/events"
)

// Hit is one bus returned by a radius search.
type Hit struct {
	BusID     uint
	Lat       float64
	Lng       float64
	DistanceM float64
}

// GeoIndex is the subset of Redis GEO commands the cache relies on.
type GeoIndex interface {
	Add(ctx context.Context, key, member string, lat, lng float64) error
	Search(ctx context.Context, key string, lat, lng, radiusM float64, count int) ([]redis.GeoLocation, error)
}

type redisIndex struct {
	client *redis.Client
}

func (r redisIndex) Add(ctx context.Context, key, member string, lat, lng float64) error {
	return r.client.GeoAdd(ctx, key, &redis.GeoLocation{Name: member, Latitude: lat, Longitude: lng}).Err()
}

func (r redisIndex) Search(ctx context.Context, key string, lat, lng, radiusM float64, count int) ([]redis.GeoLocation, error) {
	return r.client.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lng,
			Latitude:   lat,
			Radius:     radiusM,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      count,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
}

// RedisGeo is both an event sink (positions are written on every location
// event) and the nearby-bus index.
type RedisGeo struct {
	index  GeoIndex
	client *redis.Client
	key    string
}

func NewRedisGeo(addr, password, key string) *RedisGeo {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisGeo{index: redisIndex{client: c}, client: c, key: key}
}

func NewRedisGeoWithIndex(index GeoIndex, key string) *RedisGeo {
	return &RedisGeo{index: index, key: key}
}

// Ping checks connectivity at startup.
func (r *RedisGeo) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx).Err()
}

func (r *RedisGeo) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *RedisGeo) PublishBusLocation(ctx context.Context, ev events.BusLocation) error {
	return r.index.Add(ctx, r.key, strconv.FormatUint(uint64(ev.BusID), 10), ev.Lat, ev.Lng)
}

func (r *RedisGeo) PublishWaitRequest(context.Context, events.WaitRequest) error { return nil }

// Nearby returns buses within radiusM meters, closest first.
func (r *RedisGeo) Nearby(ctx context.Context, lat, lng, radiusM float64, limit int) ([]Hit, error) {
	locs, err := r.index.Search(ctx, r.key, lat, lng, radiusM, limit)
	if err != nil {
		return nil, fmt.Errorf("redis geo search: %w", err)
	}
	hits := make([]Hit, 0, len(locs))
	for _, l := range locs {
		id, err := strconv.ParseUint(l.Name, 10, 64)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{BusID: uint(id), Lat: l.Latitude, Lng: l.Longitude, DistanceM: l.Dist})
	}
	return hits, nil
}
