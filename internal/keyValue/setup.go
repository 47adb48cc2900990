package keyValue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

type Value struct {
	value   string
	expires time.Time
}

// Store is a small TTL cache. Without a redis client it keeps everything
// in a local hashmap, which is what self contained mode uses.
type Store struct {
	mutex   sync.RWMutex
	hashmap map[string]Value

	sugar       *zap.SugaredLogger
	redisClient *redis.Client
	breaker     *gobreaker.CircuitBreaker[string]
	now         func() time.Time
}

func NewLocal(sugar *zap.SugaredLogger) *Store {
	return &Store{
		hashmap: make(map[string]Value),
		sugar:   sugar,
		now:     time.Now,
	}
}

func NewRedis(sugar *zap.SugaredLogger, redisClient *redis.Client) *Store {
	s := NewLocal(sugar)
	s.redisClient = redisClient
	s.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "redis",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			sugar.Warnf("Circuit breaker [%s] changed from %s to %s", name, from, to)
		},
	})
	return s
}

func (s *Store) selfContained() bool {
	return s.redisClient == nil
}

// Serve drops expired local keys every minute until ctx is done
func (s *Store) Serve(ctx context.Context) error {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.deleteExpired()
		}
	}
}

func (s *Store) deleteExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for key, v := range s.hashmap {
		if v.expires.Before(now) {
			delete(s.hashmap, key)
		}
	}
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	debugText := fmt.Sprintf("Getting value of key [%s]", key)
	if s.selfContained() {
		s.sugar.Debugf("%s from hashmap", debugText)

		s.mutex.RLock()
		defer s.mutex.RUnlock()

		v, ok := s.hashmap[key]
		if !ok || v.expires.Before(s.now()) {
			return "", nil
		}
		return v.value, nil
	}

	s.sugar.Debugf("%s from redis", debugText)

	return s.breaker.Execute(func() (string, error) {
		value, err := s.redisClient.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return value, err
	})
}

func (s *Store) GetDel(ctx context.Context, key string) (string, error) {
	debugText := fmt.Sprintf("Getting and deleting value of key [%s]", key)
	if s.selfContained() {
		s.sugar.Debugf("%s from hashmap", debugText)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		v, ok := s.hashmap[key]
		delete(s.hashmap, key)
		if !ok || v.expires.Before(s.now()) {
			return "", nil
		}
		return v.value, nil
	}

	s.sugar.Debugf("%s from redis", debugText)

	return s.breaker.Execute(func() (string, error) {
		value, err := s.redisClient.GetDel(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return value, err
	})
}

func (s *Store) Set(ctx context.Context, key string, value string, expires time.Duration) error {
	debugText := fmt.Sprintf("Setting value of key [%s] to [%s]", key, value)
	if s.selfContained() {
		s.sugar.Debugf("%s in hashmap", debugText)

		s.mutex.Lock()
		defer s.mutex.Unlock()

		s.hashmap[key] = Value{value, s.now().Add(expires)}
		return nil
	}

	s.sugar.Debugf("%s in redis", debugText)

	_, err := s.breaker.Execute(func() (string, error) {
		return s.redisClient.Set(ctx, key, value, expires).Result()
	})
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.selfContained() {
		s.mutex.Lock()
		defer s.mutex.Unlock()

		delete(s.hashmap, key)
		return nil
	}

	_, err := s.breaker.Execute(func() (string, error) {
		return "", s.redisClient.Del(ctx, key).Err()
	})
	return err
}

func ConnectRedis(ctx context.Context, address string, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}
