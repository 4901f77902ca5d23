package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/types"
)

func matchCorpus() []types.StoredProfile {
	return []types.StoredProfile{
		{ProfileID: "1", Name: "Alice", Email: "alice@x.io", Filename: "alice.pdf", RawText: "python django postgres"},
		{ProfileID: "2", Name: "Bob", Email: "bob@x.io", Filename: "bob.pdf", RawText: "java spring kafka"},
		{ProfileID: "3", Name: "Carol", Email: "carol@x.io", Filename: "carol.pdf", RawText: "python django"},
	}
}

func TestNewMatchService_RequiresStore(t *testing.T) {
	_, err := NewMatchService(nil)
	assert.ErrorIs(t, err, ErrStorageNotInit)
}

func TestMatch_Validation(t *testing.T) {
	m, err := NewMatchService([]ComponentOpt{WithStore(&fakeStore{})})
	require.NoError(t, err)

	_, err = m.Match(context.Background(), types.MatchQuery{Text: "   "}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = m.Match(context.Background(), types.MatchQuery{Text: "python", TopK: -1}, 1)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMatch_RanksCorpus(t *testing.T) {
	store := &fakeStore{corpus: matchCorpus()}
	m, err := NewMatchService([]ComponentOpt{WithStore(store)}, WithDefaultTopK(2))
	require.NoError(t, err)

	results, err := m.Match(context.Background(), types.MatchQuery{Text: "python django"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 2, "top_k 为 0 时使用默认值")
	assert.Equal(t, "3", results[0].ProfileID)
	assert.Equal(t, 1.0, results[0].Score)
	assert.Equal(t, "1", results[1].ProfileID)
}

func TestMatch_UsesCache(t *testing.T) {
	store := &fakeStore{corpus: matchCorpus()}
	cache := newFakeCache()
	m, err := NewMatchService([]ComponentOpt{WithStore(store), WithMatchCache(cache)}, WithCacheTTL(time.Minute))
	require.NoError(t, err)

	q := types.MatchQuery{Text: "java kafka", TopK: 1}
	first, err := m.Match(context.Background(), q, 1)
	require.NoError(t, err)
	second, err := m.Match(context.Background(), q, 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.listCalls, "第二次请求应命中缓存")
	assert.Equal(t, time.Minute, cache.lastTTL)

	// 不同用户不共享缓存
	_, err = m.Match(context.Background(), q, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls)

	// 简历库变化后缓存失效
	require.NoError(t, cache.BumpCorpusVersion(context.Background()))
	_, err = m.Match(context.Background(), q, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, store.listCalls)
}

func TestMatch_CacheDisabledWithZeroTTL(t *testing.T) {
	store := &fakeStore{corpus: matchCorpus()}
	cache := newFakeCache()
	m, err := NewMatchService([]ComponentOpt{WithStore(store), WithMatchCache(cache)}, WithCacheTTL(0))
	require.NoError(t, err)

	q := types.MatchQuery{Text: "python", TopK: 3}
	for i := 0; i < 2; i++ {
		_, err := m.Match(context.Background(), q, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.listCalls)
	assert.Empty(t, cache.entries)
}

func TestMatch_CacheErrorFallsBackToStore(t *testing.T) {
	store := &fakeStore{corpus: matchCorpus()}
	cache := newFakeCache()
	cache.getErr = errBoom
	m, err := NewMatchService([]ComponentOpt{WithStore(store), WithMatchCache(cache)})
	require.NoError(t, err)

	results, err := m.Match(context.Background(), types.MatchQuery{Text: "python", TopK: 1}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestMatch_StoreError(t *testing.T) {
	m, err := NewMatchService([]ComponentOpt{WithStore(&fakeStore{listErr: errBoom})})
	require.NoError(t, err)
	_, err = m.Match(context.Background(), types.MatchQuery{Text: "python"}, 1)
	assert.ErrorIs(t, err, ErrStorage)
}

func TestMatch_EmptyCorpus(t *testing.T) {
	m, err := NewMatchService([]ComponentOpt{WithStore(&fakeStore{})})
	require.NoError(t, err)
	results, err := m.Match(context.Background(), types.MatchQuery{Text: "python"}, 1)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestMatch_SaveDuringLoadDoesNotCacheStaleRanking(t *testing.T) {
	cache := newFakeCache()
	store := &fakeStore{corpus: matchCorpus()[:1]}
	m, err := NewMatchService([]ComponentOpt{WithStore(store), WithMatchCache(cache)}, WithCacheTTL(time.Minute))
	require.NoError(t, err)

	// 第一次加载语料期间有新简历保存：库已变化，版本递增
	store.onList = func() {
		store.corpus = matchCorpus()
		store.onList = nil
		require.NoError(t, cache.BumpCorpusVersion(context.Background()))
	}

	q := types.MatchQuery{Text: "python django", TopK: 3}
	first, err := m.Match(context.Background(), q, 1)
	require.NoError(t, err)
	require.Len(t, first, 1, "返回加载到的旧语料")

	second, err := m.Match(context.Background(), q, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, store.listCalls, "旧排序不能写到新版本下")
	assert.Len(t, second, 3)
}

func TestMatch_VersionErrorSkipsCache(t *testing.T) {
	store := &fakeStore{corpus: matchCorpus()}
	cache := newFakeCache()
	cache.versionErr = errBoom
	m, err := NewMatchService([]ComponentOpt{WithStore(store), WithMatchCache(cache)}, WithCacheTTL(time.Minute))
	require.NoError(t, err)

	q := types.MatchQuery{Text: "python", TopK: 1}
	for i := 0; i < 2; i++ {
		_, err := m.Match(context.Background(), q, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, store.listCalls)
	assert.Empty(t, cache.entries)
}
