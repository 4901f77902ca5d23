package processor

import (
	"context"
	"io"
	"time"

	"resume-match-go/internal/storage"
	"resume-match-go/internal/types"
)

// DocumentDecoder 按文件扩展名把原始字节解码为文本，由 parser.Registry 实现
type DocumentDecoder interface {
	Decode(ctx context.Context, data []byte, filename string) (types.RawDocument, error)
	Supports(filename string) bool
}

// ProfileExtractor 从解码后的文档中提取结构化信息，由 extract.Extractor 实现
type ProfileExtractor interface {
	ExtractProfile(doc types.RawDocument, filename string) types.ExtractedProfile
}

// CorpusSource 提供匹配语料
type CorpusSource interface {
	ListProfiles(ctx context.Context, userID uint64) ([]types.StoredProfile, error)
}

// ProfileStore 关系存储，由 storage.MySQL 实现
type ProfileStore interface {
	CorpusSource
	SaveProfile(ctx context.Context, userID uint64, file storage.FileMeta, profile types.ExtractedProfile) (string, error)
	SaveProfilesBatch(ctx context.Context, userID uint64, items []storage.ProfileItem) ([]string, error)
	RegisterUpload(ctx context.Context, userID uint64, meta storage.FileMeta, target storage.OutboxTarget) (string, error)
	ListProfilesPage(ctx context.Context, userID uint64, page, size int) ([]types.StoredProfile, int64, error)
	Reset(ctx context.Context) error
}

// MatchCache 匹配结果缓存，由 storage.Redis 实现
type MatchCache interface {
	CorpusVersion(ctx context.Context) (int64, error)
	GetMatchResults(ctx context.Context, version int64, userID uint64, query types.MatchQuery) ([]types.MatchResult, bool, error)
	SetMatchResults(ctx context.Context, version int64, userID uint64, query types.MatchQuery, results []types.MatchResult, ttl time.Duration) error
	BumpCorpusVersion(ctx context.Context) error
}

// UploadDeduper 基于内容MD5的上传去重，由 storage.Redis 实现
type UploadDeduper interface {
	CheckAndAddUploadMD5(ctx context.Context, md5Hex string) (bool, error)
	RemoveUploadMD5(ctx context.Context, md5Hex string) error
	// Reset 清空去重集合并使匹配缓存失效
	Reset(ctx context.Context) error
}

// BlobStore 原始文件存储，由 storage.MinIO 实现
type BlobStore interface {
	UploadResumeFile(ctx context.Context, fileID, fileExt string, reader io.Reader, fileSize int64) (string, error)
	GetResumeFile(ctx context.Context, objectName string) ([]byte, error)
	RemoveAll(ctx context.Context) error
}

// UploadedFile 一份待处理的上传文件
type UploadedFile struct {
	Filename string
	Data     []byte
}

// FileOutcome 批量上传中单个文件的处理结果
type FileOutcome struct {
	Filename string `json:"filename"`
	FileID   string `json:"file_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// BatchReceipt 批量上传回执
type BatchReceipt struct {
	Queued     bool          `json:"queued"` // true 表示已投递到队列异步抽取
	Accepted   []FileOutcome `json:"accepted"`
	Duplicates []FileOutcome `json:"duplicates"`
	Failed     []FileOutcome `json:"failed"`
}

func newBatchReceipt(queued bool) BatchReceipt {
	return BatchReceipt{
		Queued:     queued,
		Accepted:   []FileOutcome{},
		Duplicates: []FileOutcome{},
		Failed:     []FileOutcome{},
	}
}
