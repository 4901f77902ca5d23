package processor

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/matcher"
	"resume-match-go/internal/metrics"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

// 缓存状态，用作 match_requests_total 的 cache 标签
const (
	cacheHit      = "hit"
	cacheMiss     = "miss"
	cacheDisabled = "disabled"
)

// MatchService 按岗位描述对已保存的简历排序
type MatchService struct {
	corpus   CorpusSource
	cache    MatchCache
	metrics  *metrics.Metrics
	settings Settings
	logger   *zerolog.Logger
}

// NewMatchService 创建匹配服务，Store 为必需组件
func NewMatchService(compOpts []ComponentOpt, setOpts ...SettingOpt) (*MatchService, error) {
	c, s := buildOptions(compOpts, setOpts)
	if c.Store == nil {
		return nil, ErrStorageNotInit
	}
	return &MatchService{
		corpus:   c.Store,
		cache:    c.Cache,
		metrics:  c.Metrics,
		settings: s,
		logger:   s.Logger,
	}, nil
}

func (m *MatchService) cacheEnabled() bool {
	return m.cache != nil && m.settings.CacheTTL > 0
}

// Match 返回与岗位描述最相似的简历，userID 为 0 时在所有用户的简历中匹配
func (m *MatchService) Match(ctx context.Context, query types.MatchQuery, userID uint64) ([]types.MatchResult, error) {
	if strings.TrimSpace(query.Text) == "" {
		return nil, NewInvalidInputError("match", "jd_text 不能为空")
	}
	if query.TopK < 0 {
		return nil, NewInvalidInputError("match", "top_k 必须为正数")
	}
	if query.TopK == 0 {
		query.TopK = m.settings.DefaultTopK
	}

	ctx, span := tracer.Start(ctx, "MatchService.Match",
		trace.WithAttributes(
			attribute.String("match.jd", tracing.SafeJDText(query.Text)),
			attribute.Int("match.top_k", query.TopK),
			attribute.Int64("match.user_id", int64(userID)),
		))
	defer span.End()

	start := time.Now()
	state := cacheDisabled
	// 版本在加载语料前读取一次，读写缓存都用它
	var version int64
	useCache := m.cacheEnabled()
	if useCache {
		var err error
		if version, err = m.cache.CorpusVersion(ctx); err != nil {
			m.logger.Warn().Err(err).Msg("读取简历库版本失败，跳过匹配缓存")
			useCache = false
		}
	}
	if useCache {
		state = cacheMiss
		cached, hit, err := m.cache.GetMatchResults(ctx, version, userID, query)
		switch {
		case err != nil:
			m.logger.Warn().Err(err).Msg("读取匹配缓存失败")
		case hit:
			span.SetAttributes(attribute.String("match.cache", cacheHit))
			m.metrics.ObserveMatch(cacheHit, -1, time.Since(start))
			return cached, nil
		}
	}

	corpus, err := m.corpus.ListProfiles(ctx, userID)
	if err != nil {
		storeErr := NewStorageError("corpus", err.Error())
		tracing.RecordError(span, storeErr, tracing.ErrorTypeDB)
		return nil, storeErr
	}

	results := matcher.Rank(corpus, query.Text, query.TopK)

	if useCache {
		if err := m.cache.SetMatchResults(ctx, version, userID, query, results, m.settings.CacheTTL); err != nil {
			m.logger.Warn().Err(err).Msg("写入匹配缓存失败")
		}
	}

	span.SetAttributes(
		attribute.String("match.cache", state),
		attribute.Int("match.corpus_size", len(corpus)),
		attribute.Int("match.results", len(results)),
	)
	m.metrics.ObserveMatch(state, len(corpus), time.Since(start))
	return results, nil
}
