package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/metrics"
	"resume-match-go/internal/parser"
	"resume-match-go/internal/types"
)

const sampleResume = "John Doe\nEmail: john.doe@example.com\nPhone: 9876543210\nSkills: Python, SQL, Docker\n"

func newService(t *testing.T, comps []ComponentOpt, settings ...SettingOpt) *ResumeService {
	t.Helper()
	s, err := NewResumeService(append(baseComponents(), comps...), settings...)
	require.NoError(t, err)
	return s
}

func TestNewResumeService_RequiresDecoderAndExtractor(t *testing.T) {
	_, err := NewResumeService(nil)
	assert.Error(t, err)

	_, err = NewResumeService([]ComponentOpt{WithDecoder(textRegistry())})
	assert.Error(t, err)
}

func TestParseResume(t *testing.T) {
	s := newService(t, nil)

	profile, err := s.ParseResume(context.Background(), []byte(sampleResume), "john.txt")
	require.NoError(t, err)
	assert.Equal(t, "john.txt", profile.Filename)
	assert.Equal(t, "john.doe@example.com", profile.Email)
	assert.Contains(t, profile.Skills, "python")
	assert.Equal(t, sampleResume, profile.RawText)
}

func TestParseResume_Errors(t *testing.T) {
	m := metrics.New()
	s := newService(t, []ComponentOpt{WithMetrics(m)})

	_, err := s.ParseResume(context.Background(), []byte("x"), "photo.xyz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDecode))
	var rpe *ResumeProcessError
	require.True(t, errors.As(err, &rpe))
	assert.Equal(t, "Unsupported file type: .xyz", rpe.Detail)
	assert.Equal(t, "photo.xyz", rpe.FileID)

	_, err = s.ParseResume(context.Background(), nil, "a.txt")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = s.ParseResume(context.Background(), []byte{0xff, 0xfe, 0xfd}, "bad.txt")
	assert.True(t, errors.Is(err, ErrDecode))
}

func TestParseResume_CancelledIsNotDecodeError(t *testing.T) {
	r := parser.NewRegistry()
	r.Register(".pdf", parser.DecoderFunc(func(ctx context.Context, _ []byte, _ string) (types.RawDocument, error) {
		return types.RawDocument{}, ctx.Err()
	}))
	s := newService(t, []ComponentOpt{WithDecoder(r)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ParseResume(ctx, []byte("%PDF-1.4"), "slow.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrDecode), "取消不应映射为 415")

	blobs := newFakeBlobs()
	blobs.objects["resume/f9/original.pdf"] = []byte("%PDF-1.4")
	s = newService(t, []ComponentOpt{WithDecoder(r), WithStore(&fakeStore{}), WithBlobStore(blobs)})
	ok := s.HandleUploadMessage(ctx, uploadMessage(t, "f9", "slow.pdf", "resume/f9/original.pdf"))
	assert.False(t, ok, "中断的解析应重新入队")
}

func TestParseResume_SpanAttributesAreRedacted(t *testing.T) {
	recordedSpans()
	s := newService(t, nil)

	_, err := s.ParseResume(context.Background(), []byte(sampleResume), "span-john.txt")
	require.NoError(t, err)
	attrs := endedSpanAttrs(t, "ResumeService.ParseResume", "span-john.txt")
	assert.Equal(t, "j***@example.com", attrs["candidate.email"])
	assert.Equal(t, "John Doe Email: j***@example.com Phone: ******3210 Skills: Python, SQL, Docker", attrs["resume.preview"])
	assert.NotContains(t, attrs["resume.preview"], "john.doe@")

	_, err = s.ParseResume(context.Background(), []byte("x"), "span-photo.XYZ")
	require.Error(t, err)
	attrs = endedSpanAttrs(t, "ResumeService.ParseResume", "span-photo.XYZ")
	assert.Equal(t, ".xyz", attrs["resume.ext"])
	assert.Equal(t, "decode", attrs["error.type"])
}

func TestAnalyzeAndSave(t *testing.T) {
	store := &fakeStore{}
	cache := newFakeCache()
	s := newService(t, []ComponentOpt{WithStore(store), WithMatchCache(cache)})

	fileID, profile, err := s.AnalyzeAndSave(context.Background(), 7, "john.txt", []byte(sampleResume))
	require.NoError(t, err)
	assert.Equal(t, "file-1", fileID)
	assert.Equal(t, "john.doe@example.com", profile.Email)

	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, uint64(7), saved.userID)
	assert.Equal(t, ".txt", saved.meta.FileType)
	assert.Equal(t, int64(len(sampleResume)), saved.meta.FileSize)
	assert.Len(t, saved.meta.ContentMD5, 32)
	assert.Equal(t, 1, cache.bumps, "保存后应使匹配缓存失效")
}

func TestAnalyzeAndSave_Errors(t *testing.T) {
	s := newService(t, nil)
	_, _, err := s.AnalyzeAndSave(context.Background(), 1, "a.txt", []byte("x"))
	assert.ErrorIs(t, err, ErrStorageNotInit)

	store := &fakeStore{saveErr: errBoom}
	s = newService(t, []ComponentOpt{WithStore(store)})
	_, _, err = s.AnalyzeAndSave(context.Background(), 1, "a.txt", []byte(sampleResume))
	assert.ErrorIs(t, err, ErrStorage)
}

func TestSubmitBatch_InlineFallback(t *testing.T) {
	store := &fakeStore{}
	dedupe := newFakeDeduper()
	s := newService(t,
		[]ComponentOpt{WithStore(store), WithDeduper(dedupe)},
		WithBatchWorkers(1),
	)
	require.False(t, s.QueueMode())

	receipt, err := s.SubmitBatch(context.Background(), 1, []UploadedFile{
		{Filename: "john.txt", Data: []byte(sampleResume)},
		{Filename: "photo.png", Data: []byte("png")},
		{Filename: "john-copy.txt", Data: []byte(sampleResume)},
		{Filename: "empty.txt"},
	})
	require.NoError(t, err)

	assert.False(t, receipt.Queued)
	require.Len(t, receipt.Accepted, 1)
	assert.Equal(t, "john.txt", receipt.Accepted[0].Filename)
	assert.Equal(t, "file-1", receipt.Accepted[0].FileID)
	require.Len(t, receipt.Duplicates, 1)
	assert.Equal(t, "john-copy.txt", receipt.Duplicates[0].Filename)
	require.Len(t, receipt.Failed, 2)
	assert.Equal(t, "photo.png", receipt.Failed[0].Filename)
	assert.Equal(t, "Unsupported file type: .png", receipt.Failed[0].Reason)
	assert.Equal(t, "empty.txt", receipt.Failed[1].Filename)
	assert.Len(t, store.saved, 1)
}

func TestSubmitBatch_EmptyInput(t *testing.T) {
	s := newService(t, []ComponentOpt{WithStore(&fakeStore{})})
	_, err := s.SubmitBatch(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestProcessBatchInline_SaveFailureRollsBackDedupe(t *testing.T) {
	store := &fakeStore{saveErr: errBoom}
	dedupe := newFakeDeduper()
	s := newService(t, []ComponentOpt{WithStore(store), WithDeduper(dedupe)})

	_, err := s.ProcessBatchInline(context.Background(), 1, []UploadedFile{
		{Filename: "john.txt", Data: []byte(sampleResume)},
	})
	require.ErrorIs(t, err, ErrStorage)
	assert.Len(t, dedupe.removed, 1)
	assert.Empty(t, dedupe.seen, "保存失败后应允许重新上传")
}

func TestProcessBatchInline_ParseFailureIsSkipped(t *testing.T) {
	store := &fakeStore{}
	s := newService(t, []ComponentOpt{WithStore(store)}, WithBatchWorkers(3))

	receipt, err := s.ProcessBatchInline(context.Background(), 1, []UploadedFile{
		{Filename: "a.txt", Data: []byte(sampleResume)},
		{Filename: "bad.txt", Data: []byte{0xff, 0xfe}},
		{Filename: "b.txt", Data: []byte("Jane Smith\njane@corp.io\n")},
	})
	require.NoError(t, err)
	require.Len(t, receipt.Accepted, 2)
	assert.Equal(t, "a.txt", receipt.Accepted[0].Filename)
	assert.Equal(t, "b.txt", receipt.Accepted[1].Filename)
	require.Len(t, receipt.Failed, 1)
	assert.Equal(t, "bad.txt", receipt.Failed[0].Filename)
}

func queueService(t *testing.T, store *fakeStore, blobs *fakeBlobs, dedupe *fakeDeduper) *ResumeService {
	return newService(t,
		[]ComponentOpt{WithStore(store), WithBlobStore(blobs), WithDeduper(dedupe)},
		WithOutboxTarget("resume.match.events", "resume.uploaded"),
	)
}

func TestSubmitBatch_Queued(t *testing.T) {
	store := &fakeStore{}
	blobs := newFakeBlobs()
	s := queueService(t, store, blobs, newFakeDeduper())
	require.True(t, s.QueueMode())

	receipt, err := s.SubmitBatch(context.Background(), 3, []UploadedFile{
		{Filename: "john.txt", Data: []byte(sampleResume)},
	})
	require.NoError(t, err)
	assert.True(t, receipt.Queued)
	require.Len(t, receipt.Accepted, 1)

	require.Len(t, store.registered, 1)
	meta := store.registered[0]
	assert.Equal(t, receipt.Accepted[0].FileID, meta.FileID)
	assert.Equal(t, "resume/"+meta.FileID+"/original.txt", meta.ObjectKey)
	assert.Equal(t, "resume.uploaded", store.targets[0].RoutingKey)
	assert.Equal(t, []byte(sampleResume), blobs.objects[meta.ObjectKey])
	assert.Empty(t, store.saved, "队列模式下不应同步保存")
}

func TestSubmitBatch_QueuedUploadFailure(t *testing.T) {
	store := &fakeStore{}
	blobs := newFakeBlobs()
	blobs.uploadErr = errBoom
	dedupe := newFakeDeduper()
	s := queueService(t, store, blobs, dedupe)

	receipt, err := s.SubmitBatch(context.Background(), 3, []UploadedFile{
		{Filename: "john.txt", Data: []byte(sampleResume)},
	})
	require.NoError(t, err)
	require.Len(t, receipt.Failed, 1)
	assert.Contains(t, receipt.Failed[0].Reason, ErrUploadFailed.Error())
	assert.Empty(t, store.registered)
	assert.Len(t, dedupe.removed, 1)
}

func TestSubmitBatch_QueuedRegisterFailure(t *testing.T) {
	store := &fakeStore{registerErr: errBoom}
	dedupe := newFakeDeduper()
	s := queueService(t, store, newFakeBlobs(), dedupe)

	receipt, err := s.SubmitBatch(context.Background(), 3, []UploadedFile{
		{Filename: "john.txt", Data: []byte(sampleResume)},
	})
	require.NoError(t, err)
	require.Len(t, receipt.Failed, 1)
	assert.Contains(t, receipt.Failed[0].Reason, ErrStorage.Error())
	assert.Len(t, dedupe.removed, 1)
}

func uploadMessage(t *testing.T, fileID, filename, key string) []byte {
	body, err := json.Marshal(types.ResumeUploadMessage{
		FileID:      fileID,
		UserID:      3,
		Filename:    filename,
		ObjectKey:   key,
		SubmittedAt: time.Now(),
	})
	require.NoError(t, err)
	return body
}

func TestHandleUploadMessage(t *testing.T) {
	store := &fakeStore{}
	blobs := newFakeBlobs()
	cache := newFakeCache()
	blobs.objects["resume/f1/original.txt"] = []byte(sampleResume)
	s := newService(t, []ComponentOpt{WithStore(store), WithBlobStore(blobs), WithMatchCache(cache)})

	ok := s.HandleUploadMessage(context.Background(), uploadMessage(t, "f1", "john.txt", "resume/f1/original.txt"))
	require.True(t, ok)
	require.Len(t, store.saved, 1)
	saved := store.saved[0]
	assert.Equal(t, uint64(3), saved.userID)
	assert.Equal(t, "f1", saved.meta.FileID)
	assert.Equal(t, "resume/f1/original.txt", saved.meta.ObjectKey)
	assert.Equal(t, "john.doe@example.com", saved.profile.Email)
	assert.Equal(t, 1, cache.bumps)
}

func TestHandleUploadMessage_AckOrRequeue(t *testing.T) {
	tests := []struct {
		name  string
		body  func(t *testing.T) []byte
		setup func(store *fakeStore, blobs *fakeBlobs)
		want  bool
	}{
		{
			name: "malformed json is dropped",
			body: func(*testing.T) []byte { return []byte("{not json") },
			want: true,
		},
		{
			name: "missing object is dropped",
			body: func(t *testing.T) []byte { return uploadMessage(t, "f2", "gone.txt", "resume/f2/original.txt") },
			want: true,
		},
		{
			name:  "blob store error is requeued",
			body:  func(t *testing.T) []byte { return uploadMessage(t, "f1", "john.txt", "resume/f1/original.txt") },
			setup: func(_ *fakeStore, b *fakeBlobs) { b.getErr = errBoom },
			want:  false,
		},
		{
			name: "undecodable document is dropped",
			body: func(t *testing.T) []byte { return uploadMessage(t, "f3", "photo.png", "resume/f3/original.png") },
			want: true,
		},
		{
			name:  "store error is requeued",
			body:  func(t *testing.T) []byte { return uploadMessage(t, "f1", "john.txt", "resume/f1/original.txt") },
			setup: func(s *fakeStore, _ *fakeBlobs) { s.saveErr = errBoom },
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			blobs := newFakeBlobs()
			blobs.objects["resume/f1/original.txt"] = []byte(sampleResume)
			blobs.objects["resume/f3/original.png"] = []byte("png")
			if tt.setup != nil {
				tt.setup(store, blobs)
			}
			s := newService(t, []ComponentOpt{WithStore(store), WithBlobStore(blobs)})
			assert.Equal(t, tt.want, s.HandleUploadMessage(context.Background(), tt.body(t)))
		})
	}
}

func TestListProfiles(t *testing.T) {
	store := &fakeStore{corpus: []types.StoredProfile{{ProfileID: "a"}, {ProfileID: "b"}, {ProfileID: "c"}}}
	s := newService(t, []ComponentOpt{WithStore(store)})

	items, total, err := s.ListProfiles(context.Background(), 1, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 1)
	assert.Equal(t, "c", items[0].ProfileID)

	_, _, err = s.ListProfiles(context.Background(), 1, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, _, err = s.ListProfiles(context.Background(), 1, 1, 101)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReset(t *testing.T) {
	store := &fakeStore{}
	dedupe := newFakeDeduper()
	blobs := newFakeBlobs()
	cache := newFakeCache()
	s := newService(t, []ComponentOpt{WithStore(store), WithDeduper(dedupe), WithBlobStore(blobs), WithMatchCache(cache)})

	require.NoError(t, s.Reset(context.Background()))
	assert.Equal(t, 1, store.resetCalls)
	assert.Equal(t, 1, dedupe.resetCalls)
	assert.Equal(t, 1, blobs.removeCalls)
	assert.Equal(t, 0, cache.bumps, "去重组件的 Reset 已负责使缓存失效")

	s = newService(t, []ComponentOpt{WithStore(&fakeStore{}), WithMatchCache(cache)})
	require.NoError(t, s.Reset(context.Background()))
	assert.Equal(t, 1, cache.bumps)
}
