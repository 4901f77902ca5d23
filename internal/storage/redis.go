package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/types"
)

// ErrNotFound is returned when a key is not found in Redis.
var ErrNotFound = redis.Nil

var redisTracer = otel.Tracer("resume-match-go/storage/redis")

// checkAndAddScript 原子地检查成员是否存在并加入集合，同时刷新集合过期时间
var checkAndAddScript = redis.NewScript(`
	local exists = redis.call('SISMEMBER', KEYS[1], ARGV[1])
	redis.call('SADD', KEYS[1], ARGV[1])
	redis.call('EXPIRE', KEYS[1], ARGV[2])
	return exists
`)

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,
	})

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{Client: client, config: cfg}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// GetMD5ExpireDuration 返回配置的MD5记录过期时间
func (r *Redis) GetMD5ExpireDuration() time.Duration {
	days := r.config.MD5RecordExpireDays
	if days <= 0 {
		days = constants.DefaultMD5ExpireDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// CheckAndAddUploadMD5 检查并添加上传文件MD5，返回此前是否已存在
func (r *Redis) CheckAndAddUploadMD5(ctx context.Context, md5Hex string) (exists bool, err error) {
	ctx, span := redisTracer.Start(ctx, "Redis.CheckAndAddUploadMD5",
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		semconv.DBSystemRedis,
		attribute.String("db.redis.database", fmt.Sprintf("%d", r.config.DB)),
		attribute.String("db.operation", "EVALSHA"),
		attribute.String("db.redis.key", constants.KeyUploadedMD5Set),
		attribute.String("db.redis.member", md5Hex),
	)

	if r.Client == nil {
		err = fmt.Errorf("redis client is not initialized")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	expiry := int64(r.GetMD5ExpireDuration().Seconds())
	res, err := checkAndAddScript.Run(ctx, r.Client, []string{constants.KeyUploadedMD5Set}, md5Hex, expiry).Int64()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("执行原子检查和添加操作失败: %w", err)
	}

	exists = res == 1
	span.SetAttributes(attribute.Bool("already_exists", exists))
	span.SetStatus(codes.Ok, "")
	return exists, nil
}

// RemoveUploadMD5 从去重集合中移除MD5，上传失败时回滚使用
func (r *Redis) RemoveUploadMD5(ctx context.Context, md5Hex string) error {
	if err := r.Client.SRem(ctx, constants.KeyUploadedMD5Set, md5Hex).Err(); err != nil {
		return fmt.Errorf("从集合中移除MD5失败: %w", err)
	}
	return nil
}

// CorpusVersion 读取当前简历库版本，不存在视为0
func (r *Redis) CorpusVersion(ctx context.Context) (int64, error) {
	v, err := r.Client.Get(ctx, constants.KeyCorpusVersion).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// BumpCorpusVersion 递增简历库版本号，旧版本的匹配缓存随之失效
func (r *Redis) BumpCorpusVersion(ctx context.Context) error {
	return r.Client.Incr(ctx, constants.KeyCorpusVersion).Err()
}

// MatchCacheKey 生成匹配结果缓存键
func MatchCacheKey(version int64, userID uint64, jdText string, topK int) string {
	sum := md5.Sum([]byte(jdText))
	return fmt.Sprintf(constants.KeyMatchResult, version, userID, hex.EncodeToString(sum[:]), topK)
}

// GetMatchResults 读取 version 版本下缓存的匹配结果，未命中返回 (nil, false, nil)
func (r *Redis) GetMatchResults(ctx context.Context, version int64, userID uint64, query types.MatchQuery) ([]types.MatchResult, bool, error) {
	val, err := r.Client.Get(ctx, MatchCacheKey(version, userID, query.Text, query.TopK)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var results []types.MatchResult
	if err := json.Unmarshal([]byte(val), &results); err != nil {
		return nil, false, fmt.Errorf("反序列化匹配缓存失败: %w", err)
	}
	return results, true, nil
}

// SetMatchResults 把匹配结果缓存在 version 版本下
// version 必须是加载语料之前读到的版本，期间有保存或重置时结果写入已失效的键
func (r *Redis) SetMatchResults(ctx context.Context, version int64, userID uint64, query types.MatchQuery, results []types.MatchResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("序列化匹配结果失败: %w", err)
	}
	return r.Client.Set(ctx, MatchCacheKey(version, userID, query.Text, query.TopK), data, ttl).Err()
}

// Reset 清空上传去重集合并使所有匹配缓存失效
func (r *Redis) Reset(ctx context.Context) error {
	pipe := r.Client.TxPipeline()
	pipe.Del(ctx, constants.KeyUploadedMD5Set)
	pipe.Incr(ctx, constants.KeyCorpusVersion)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("重置Redis状态失败: %w", err)
	}
	return nil
}
