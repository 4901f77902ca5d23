package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"resume-match-go/internal/extract"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"
)

func textRegistry() *parser.Registry {
	r := parser.NewRegistry()
	r.Register(".txt", parser.TextDecoder{})
	return r
}

type savedFile struct {
	userID  uint64
	meta    storage.FileMeta
	profile types.ExtractedProfile
}

type fakeStore struct {
	mu         sync.Mutex
	saved      []savedFile
	registered []storage.FileMeta
	targets    []storage.OutboxTarget
	corpus     []types.StoredProfile
	listCalls  int
	resetCalls int

	saveErr     error
	registerErr error
	listErr     error

	onList func() // 在返回语料之前调用
}

func (f *fakeStore) SaveProfile(_ context.Context, userID uint64, meta storage.FileMeta, p types.ExtractedProfile) (string, error) {
	ids, err := f.SaveProfilesBatch(context.Background(), userID, []storage.ProfileItem{{File: meta, Profile: p}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

func (f *fakeStore) SaveProfilesBatch(_ context.Context, userID uint64, items []storage.ProfileItem) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		id := item.File.FileID
		if id == "" {
			id = fmt.Sprintf("file-%d", len(f.saved)+1)
		}
		f.saved = append(f.saved, savedFile{userID: userID, meta: item.File, profile: item.Profile})
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) RegisterUpload(_ context.Context, _ uint64, meta storage.FileMeta, target storage.OutboxTarget) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.registerErr != nil {
		return "", f.registerErr
	}
	f.registered = append(f.registered, meta)
	f.targets = append(f.targets, target)
	return meta.FileID, nil
}

func (f *fakeStore) ListProfiles(_ context.Context, _ uint64) ([]types.StoredProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	corpus := f.corpus
	if f.onList != nil {
		f.onList()
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return corpus, nil
}

func (f *fakeStore) ListProfilesPage(_ context.Context, _ uint64, page, size int) ([]types.StoredProfile, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := (page - 1) * size
	if start >= len(f.corpus) {
		return []types.StoredProfile{}, int64(len(f.corpus)), nil
	}
	end := min(start+size, len(f.corpus))
	return f.corpus[start:end], int64(len(f.corpus)), nil
}

func (f *fakeStore) Reset(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	f.saved = nil
	return nil
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]types.MatchResult
	bumps   int
	getErr     error
	versionErr error
	lastTTL    time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]types.MatchResult)}
}

func (c *fakeCache) CorpusVersion(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versionErr != nil {
		return 0, c.versionErr
	}
	return int64(c.bumps), nil
}

func (c *fakeCache) GetMatchResults(_ context.Context, version int64, userID uint64, q types.MatchQuery) ([]types.MatchResult, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	r, ok := c.entries[storage.MatchCacheKey(version, userID, q.Text, q.TopK)]
	return r, ok, nil
}

func (c *fakeCache) SetMatchResults(_ context.Context, version int64, userID uint64, q types.MatchQuery, results []types.MatchResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[storage.MatchCacheKey(version, userID, q.Text, q.TopK)] = results
	c.lastTTL = ttl
	return nil
}

func (c *fakeCache) BumpCorpusVersion(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bumps++
	return nil
}

type fakeDeduper struct {
	mu         sync.Mutex
	seen       map[string]bool
	removed    []string
	resetCalls int
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) CheckAndAddUploadMD5(_ context.Context, md5 string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	exists := d.seen[md5]
	d.seen[md5] = true
	return exists, nil
}

func (d *fakeDeduper) RemoveUploadMD5(_ context.Context, md5 string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, md5)
	d.removed = append(d.removed, md5)
	return nil
}

func (d *fakeDeduper) Reset(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetCalls++
	d.seen = make(map[string]bool)
	return nil
}

type fakeBlobs struct {
	mu          sync.Mutex
	objects     map[string][]byte
	uploadErr   error
	getErr      error
	removeCalls int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) UploadResumeFile(_ context.Context, fileID, ext string, r io.Reader, _ int64) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	key := storage.ResumeObjectKey(fileID, ext)
	b.mu.Lock()
	b.objects[key] = data
	b.mu.Unlock()
	return key, nil
}

func (b *fakeBlobs) GetResumeFile(_ context.Context, key string) ([]byte, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrObjectNotFound, key)
	}
	return data, nil
}

func (b *fakeBlobs) RemoveAll(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeCalls++
	b.objects = make(map[string][]byte)
	return nil
}

var errBoom = errors.New("boom")

func baseComponents() []ComponentOpt {
	return []ComponentOpt{
		WithDecoder(textRegistry()),
		WithExtractor(extract.Default()),
	}
}

var (
	spanRecorderOnce sync.Once
	spanRecorder     *tracetest.SpanRecorder
)

// recordedSpans 安装全局 TracerProvider，包内所有 span 都写入同一个记录器
func recordedSpans() *tracetest.SpanRecorder {
	spanRecorderOnce.Do(func() {
		spanRecorder = tracetest.NewSpanRecorder()
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	})
	return spanRecorder
}

// endedSpanAttrs 找到名为 name 且 resume.filename 为 filename 的最后一个 span 的属性
func endedSpanAttrs(t *testing.T, name, filename string) map[attribute.Key]string {
	t.Helper()
	ended := recordedSpans().Ended()
	for i := len(ended) - 1; i >= 0; i-- {
		if ended[i].Name() != name {
			continue
		}
		attrs := make(map[attribute.Key]string, len(ended[i].Attributes()))
		for _, kv := range ended[i].Attributes() {
			attrs[kv.Key] = kv.Value.Emit()
		}
		if attrs["resume.filename"] == filename {
			return attrs
		}
	}
	t.Fatalf("span %s (%s) not found", name, filename)
	return nil
}
