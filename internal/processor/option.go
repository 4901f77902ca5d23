package processor

import (
	"time"

	"github.com/rs/zerolog"

	"resume-match-go/internal/config"
	"resume-match-go/internal/constants"
	"resume-match-go/internal/matcher"
	"resume-match-go/internal/metrics"
	"resume-match-go/internal/storage"
)

// Components 服务依赖的组件，可选组件为 nil 时对应功能降级
type Components struct {
	Decoder   DocumentDecoder
	Extractor ProfileExtractor
	Store     ProfileStore  // 为 nil 时只能解析，不能保存
	Cache     MatchCache    // 可选
	Deduper   UploadDeduper // 可选
	Blobs     BlobStore     // 可选，队列模式需要
	Metrics   *metrics.Metrics
}

// Settings 服务设置
type Settings struct {
	BatchWorkers int
	DefaultTopK  int
	CacheTTL     time.Duration
	// Outbox 非 nil 时批量上传走 outbox + 队列
	Outbox *storage.OutboxTarget
	Logger *zerolog.Logger
}

func defaultSettings() Settings {
	return Settings{
		BatchWorkers: 4,
		DefaultTopK:  matcher.DefaultTopK,
		CacheTTL:     constants.DefaultMatchCacheTTL,
	}
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// ----- 组件选项 -----

// WithDecoder 设置文档解码器
func WithDecoder(d DocumentDecoder) ComponentOpt {
	return func(c *Components) {
		c.Decoder = d
	}
}

// WithExtractor 设置信息提取器
func WithExtractor(e ProfileExtractor) ComponentOpt {
	return func(c *Components) {
		c.Extractor = e
	}
}

// WithStore 设置关系存储
func WithStore(s ProfileStore) ComponentOpt {
	return func(c *Components) {
		c.Store = s
	}
}

// WithMatchCache 设置匹配缓存
func WithMatchCache(cache MatchCache) ComponentOpt {
	return func(c *Components) {
		c.Cache = cache
	}
}

// WithDeduper 设置上传去重
func WithDeduper(d UploadDeduper) ComponentOpt {
	return func(c *Components) {
		c.Deduper = d
	}
}

// WithBlobStore 设置原始文件存储
func WithBlobStore(b BlobStore) ComponentOpt {
	return func(c *Components) {
		c.Blobs = b
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) ComponentOpt {
	return func(c *Components) {
		c.Metrics = m
	}
}

// WithStorage 从存储管理器装配已初始化的组件
// 未初始化的组件保持为 nil 接口，避免出现包着 nil 指针的非 nil 接口
func WithStorage(s *storage.Storage) ComponentOpt {
	return func(c *Components) {
		if s == nil {
			return
		}
		if s.MySQL != nil {
			c.Store = s.MySQL
		}
		if s.Redis != nil {
			c.Cache = s.Redis
			c.Deduper = s.Redis
		}
		if s.MinIO != nil {
			c.Blobs = s.MinIO
		}
	}
}

// ----- 设置选项 -----

// WithBatchWorkers 设置批量处理并发数
func WithBatchWorkers(n int) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.BatchWorkers = n
		}
	}
}

// WithDefaultTopK 设置默认返回的匹配数量
func WithDefaultTopK(k int) SettingOpt {
	return func(s *Settings) {
		if k > 0 {
			s.DefaultTopK = k
		}
	}
}

// WithCacheTTL 设置匹配缓存时长，0 表示不缓存
func WithCacheTTL(ttl time.Duration) SettingOpt {
	return func(s *Settings) {
		if ttl >= 0 {
			s.CacheTTL = ttl
		}
	}
}

// WithOutboxTarget 启用队列模式
func WithOutboxTarget(exchange, routingKey string) SettingOpt {
	return func(s *Settings) {
		s.Outbox = &storage.OutboxTarget{Exchange: exchange, RoutingKey: routingKey}
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *zerolog.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		}
	}
}

// SettingsFromConfig 把配置文件中的服务参数转为设置选项
func SettingsFromConfig(cfg *config.Config) []SettingOpt {
	opts := []SettingOpt{
		WithBatchWorkers(cfg.Upload.BatchWorkers),
		WithDefaultTopK(cfg.Matcher.DefaultTopK),
	}
	if cfg.Matcher.CacheTTL == "" {
		opts = append(opts, WithCacheTTL(0))
	} else {
		opts = append(opts, WithCacheTTL(config.GetDuration(cfg.Matcher.CacheTTL, constants.DefaultMatchCacheTTL)))
	}
	return opts
}
