package internal

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

var rdb *redis.Client
var ctx = context.Background()
var memCache *cache.Cache

var redisDataExpiration time.Duration
var memoryDataExpiration time.Duration

var redisInitialized bool

// InitCache initializes the tiered cache used for display lookups (worker
// names). In DRY_RUN mode only the in-memory tier is used.
func InitCache(redisURI string, redisPassword string, redisDB int, dryRun string) {
	redisDataExpiration = 12 * time.Hour
	memoryDataExpiration = 10 * time.Second
	memCache = cache.New(memoryDataExpiration, 20*time.Second)

	if dryRun == "True" || dryRun == "true" || redisURI == "" {
		zap.S().Infof("Running cache without redis backend")
		return
	}

	options := redis.Options{
		Addr:     redisURI,
		Password: redisPassword,
		DB:       redisDB,
	}
	zap.S().Debugf("Initializing redis cache with options: %#v", options)

	rdb = redis.NewClient(&options)
	redisInitialized = true
}

// InitMemcache sets up the in-memory tier only; used by tests.
func InitMemcache() {
	memoryDataExpiration = 10 * time.Second
	memCache = cache.New(memoryDataExpiration, 20*time.Second)
	redisInitialized = false
}

func IsRedisAvailable() bool {
	if !redisInitialized {
		return false
	}
	if rdb != nil {
		timeout, cancel := context.WithTimeout(ctx, time.Second*10)
		defer cancel()
		statusCmd := rdb.Ping(timeout)

		if statusCmd != nil && statusCmd.Val() == "PONG" {
			return true
		}
		zap.S().Debugf("Redis Error: %s", statusCmd)
	}
	return false
}

// GetTiered attempts to get key from the memory cache, falling back to redis.
func GetTiered(key string) (cached bool, value interface{}) {
	if memCache == nil {
		return false, nil
	}
	value, cached = memCache.Get(key)
	if cached {
		return
	}

	if !redisInitialized {
		return false, nil
	}

	d := time.Now().Add(memoryDataExpiration)
	getCtx, cancel := context.WithDeadline(ctx, d)
	defer cancel()

	raw, err := rdb.Get(getCtx, key).Bytes()
	if err != nil {
		return false, nil
	}

	// Write back to the memory tier
	memCache.SetDefault(key, raw)
	return true, raw
}

// SetTiered sets the memory tier and redis with the given expiration.
func SetTiered(key string, value interface{}, redisExpiration time.Duration) {
	if memCache == nil {
		return
	}
	memCache.SetDefault(key, value)
	if redisInitialized {
		rdb.Set(ctx, key, value, redisExpiration)
	}
}

// SetTieredLongTerm is a helper that calls SetTiered with the default redis
// expiration.
func SetTieredLongTerm(key string, value interface{}) {
	SetTiered(key, value, redisDataExpiration)
}

// SetTieredShortTerm is a helper that calls SetTiered with the default memory
// expiration.
func SetTieredShortTerm(key string, value interface{}) {
	SetTiered(key, value, memoryDataExpiration)
}
