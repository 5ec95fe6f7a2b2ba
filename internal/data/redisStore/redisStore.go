package redisStore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/redis/go-redis/v9"
)

var (
	instances = make(map[string]*Store)
	mu        sync.RWMutex
	logger    = logger_i.NewLogger("Redis Store")
	once      sync.Once
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

type Store struct {
	client *redis.Client
	Type   int
}

func (o Options) key() string {
	return fmt.Sprintf("%s/%d", o.Addr, o.DB)
}

// GetRedisStore returns one shared store per address and DB. Clients are closed when ctx ends.
func GetRedisStore(ctx context.Context, opts Options) (*Store, error) {
	mu.RLock()
	instance, exists := instances[opts.key()]
	mu.RUnlock()

	if exists {
		return instance, nil
	}

	mu.Lock()
	defer mu.Unlock()

	if instance, exists = instances[opts.key()]; exists {
		return instance, nil
	}
	return createNewStore(ctx, opts)
}

func closeRedisStores(ctx context.Context) {
	<-ctx.Done()
	logger.Info("Closing Redis Stores")
	mu.Lock()
	defer mu.Unlock()
	for key, store := range instances {
		err := store.client.Close()
		if err != nil {
			logger.Error("Error closing redis client", "error", err)
		}
		delete(instances, key)
	}
	logger.Info("Redis Store Closed successfully")
}

func createNewStore(ctx context.Context, opts Options) (*Store, error) {
	newClient := redis.NewClient(&redis.Options{
		Addr:                  opts.Addr,
		Password:              opts.Password,
		DB:                    opts.DB,
		ContextTimeoutEnabled: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := newClient.Ping(pingCtx).Err(); err != nil {
		_ = newClient.Close()
		return nil, fmt.Errorf("redis %s is offline: %w", opts.Addr, err)
	}

	logger.Info("Redis client init successfully", "addr", opts.Addr, "db", opts.DB)

	newStore := &Store{
		client: newClient,
		Type:   opts.DB,
	}

	instances[opts.key()] = newStore
	once.Do(func() {
		go closeRedisStores(ctx)
	})
	return newStore, nil
}

func NewTestStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}
