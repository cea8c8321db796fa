package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"studydeck/models"

	"github.com/redis/go-redis/v9"
)

// CourseCache holds the most recent course list. Get reports a generation
// token on a miss; Set only fills the cache if no Invalidate happened since
// that token was read.
type CourseCache interface {
	Get(ctx context.Context) (courses []models.CourseSummary, token int64, ok bool)
	Set(ctx context.Context, token int64, courses []models.CourseSummary)
	Invalidate(ctx context.Context)
}

const (
	courseListKey           = "studydeck:courses"
	courseListGenerationKey = "studydeck:courses:generation"
)

// noFill is the token handed out when the generation could not be read.
const noFill int64 = -1

type RedisCourseCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisCourseCache(client *redis.Client, ttl time.Duration) *RedisCourseCache {
	return &RedisCourseCache{redis: client, ttl: ttl}
}

func (c *RedisCourseCache) Get(ctx context.Context) ([]models.CourseSummary, int64, bool) {
	// the generation is read before the list so a miss carries a token older
	// than any database read that follows
	token, err := generation(ctx, c.redis)
	if err != nil {
		log.Printf("Redis error getting course list generation: %v", err)
		return nil, noFill, false
	}

	data, err := c.redis.Get(ctx, courseListKey).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis error getting course list: %v", err)
		}
		return nil, token, false
	}

	var courses []models.CourseSummary
	if err := json.Unmarshal([]byte(data), &courses); err != nil {
		log.Printf("Failed to unmarshal cached course list: %v", err)
		return nil, token, false
	}
	return courses, token, true
}

func (c *RedisCourseCache) Set(ctx context.Context, token int64, courses []models.CourseSummary) {
	if token == noFill {
		return
	}

	data, err := json.Marshal(courses)
	if err != nil {
		log.Printf("Failed to marshal course list: %v", err)
		return
	}

	err = c.redis.Watch(ctx, func(tx *redis.Tx) error {
		current, err := generation(ctx, tx)
		if err != nil {
			return err
		}
		if current != token {
			return errStaleFill
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, courseListKey, data, c.ttl)
			return nil
		})
		return err
	}, courseListGenerationKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		log.Printf("Skipping stale course list fill (generation %d)", token)
	default:
		log.Printf("Failed to store course list in Redis: %v", err)
	}
}

// Invalidate bumps the generation, so fills started earlier are refused, and
// drops the cached list.
func (c *RedisCourseCache) Invalidate(ctx context.Context) {
	_, err := c.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, courseListGenerationKey)
		pipe.Del(ctx, courseListKey)
		return nil
	})
	if err != nil {
		log.Printf("Failed to invalidate course list in Redis: %v", err)
	}
}

var errStaleFill = errors.New("course list changed during fill")

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, cmd stringGetter) (int64, error) {
	n, err := cmd.Get(ctx, courseListGenerationKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
