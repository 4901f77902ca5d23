package processor

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"resume-match-go/internal/logger"
	"resume-match-go/internal/metrics"
	"resume-match-go/internal/storage"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var tracer = otel.Tracer("resume-match-go/processor")

// ResumeService 简历解析、保存和批量上传
type ResumeService struct {
	components Components
	settings   Settings
	logger     *zerolog.Logger
}

func buildOptions(compOpts []ComponentOpt, setOpts []SettingOpt) (Components, Settings) {
	var c Components
	for _, opt := range compOpts {
		opt(&c)
	}
	s := defaultSettings()
	for _, opt := range setOpts {
		opt(&s)
	}
	if s.Logger == nil {
		l := logger.Logger
		s.Logger = &l
	}
	return c, s
}

// NewResumeService 创建简历服务，Decoder 和 Extractor 为必需组件
func NewResumeService(compOpts []ComponentOpt, setOpts ...SettingOpt) (*ResumeService, error) {
	c, s := buildOptions(compOpts, setOpts)
	if c.Decoder == nil {
		return nil, errors.New("decoder is not initialized")
	}
	if c.Extractor == nil {
		return nil, errors.New("extractor is not initialized")
	}
	return &ResumeService{components: c, settings: s, logger: s.Logger}, nil
}

// QueueMode 批量上传是否走 outbox + 队列
func (s *ResumeService) QueueMode() bool {
	return s.settings.Outbox != nil && s.components.Blobs != nil && s.components.Store != nil
}

func md5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func fileMeta(filename string, data []byte) storage.FileMeta {
	return storage.FileMeta{
		Filename:   filename,
		FileSize:   int64(len(data)),
		FileType:   strings.ToLower(filepath.Ext(filename)),
		ContentMD5: md5Hex(data),
	}
}

func unsupportedReason(filename string) string {
	return fmt.Sprintf("Unsupported file type: %s", strings.ToLower(filepath.Ext(filename)))
}

// ExtractText 只解码文档，不做信息提取
func (s *ResumeService) ExtractText(ctx context.Context, data []byte, filename string) (types.RawDocument, error) {
	if len(data) == 0 {
		return types.RawDocument{}, NewInvalidInputError("extract_text", "文件内容为空")
	}
	doc, err := s.components.Decoder.Decode(ctx, data, filename)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return types.RawDocument{}, err
		}
		return types.RawDocument{}, NewDecodeError(filename, err.Error())
	}
	return doc, nil
}

// ParseResume 解码并提取简历信息
func (s *ResumeService) ParseResume(ctx context.Context, data []byte, filename string) (types.ExtractedProfile, error) {
	ctx, span := tracer.Start(ctx, "ResumeService.ParseResume",
		trace.WithAttributes(
			attribute.String("resume.filename", filename),
			attribute.Int("resume.size_bytes", len(data)),
		))
	defer span.End()

	start := time.Now()
	doc, err := s.ExtractText(ctx, data, filename)
	if err != nil {
		outcome := metrics.OutcomeFailed
		errType := tracing.ErrorTypeDecode
		switch {
		case errors.Is(err, ErrInvalidInput):
			errType = tracing.ErrorTypeValidation
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			errType = tracing.ErrorTypeTimeout
		case !s.components.Decoder.Supports(filename):
			outcome = metrics.OutcomeUnsupported
		}
		s.components.Metrics.ObserveExtraction(outcome, 0)
		tracing.RecordErrorWithInfo(span, err, errType,
			attribute.String("resume.ext", strings.ToLower(filepath.Ext(filename))))
		return types.ExtractedProfile{}, err
	}

	profile := s.components.Extractor.ExtractProfile(doc, filename)
	s.components.Metrics.ObserveExtraction(metrics.OutcomeSuccess, time.Since(start))
	span.SetAttributes(
		attribute.Int("resume.skills", len(profile.Skills)),
		attribute.Int("resume.education", len(profile.Education)),
		attribute.Bool("resume.has_email", profile.Email != ""),
		tracing.Redact("candidate.email", profile.Email),
		tracing.Redact("candidate.name", profile.Name),
		attribute.String("resume.preview", tracing.ResumePreview(doc.Text)),
	)
	return profile, nil
}

// invalidateMatches 简历库变化后使匹配缓存失效
func (s *ResumeService) invalidateMatches(ctx context.Context) {
	if s.components.Cache == nil {
		return
	}
	if err := s.components.Cache.BumpCorpusVersion(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("更新简历库版本失败，匹配缓存可能短暂过期")
	}
}

// AnalyzeAndSave 解析单份简历并同步保存
func (s *ResumeService) AnalyzeAndSave(ctx context.Context, userID uint64, filename string, data []byte) (string, types.ExtractedProfile, error) {
	if s.components.Store == nil {
		return "", types.ExtractedProfile{}, ErrStorageNotInit
	}
	profile, err := s.ParseResume(ctx, data, filename)
	if err != nil {
		return "", types.ExtractedProfile{}, err
	}

	fileID, err := s.components.Store.SaveProfile(ctx, userID, fileMeta(filename, data), profile)
	if err != nil {
		return "", profile, NewStorageError(filename, err.Error())
	}
	s.invalidateMatches(ctx)

	s.logger.Info().
		Str("file_id", fileID).
		Str("filename", filename).
		Int("skills", len(profile.Skills)).
		Msg("简历解析并保存成功")
	return fileID, profile, nil
}

type outcomeKind int

const (
	outcomeAccepted outcomeKind = iota
	outcomeDuplicate
	outcomeFailed
)

type fileResult struct {
	kind    outcomeKind
	outcome FileOutcome
	item    storage.ProfileItem // 仅同步模式解析成功时有效
}

func (r *BatchReceipt) add(res fileResult) {
	switch res.kind {
	case outcomeAccepted:
		r.Accepted = append(r.Accepted, res.outcome)
	case outcomeDuplicate:
		r.Duplicates = append(r.Duplicates, res.outcome)
	default:
		r.Failed = append(r.Failed, res.outcome)
	}
}

// isDuplicate 原子地检查并记录MD5；去重不可用时按非重复处理
func (s *ResumeService) isDuplicate(ctx context.Context, md5 string) bool {
	if s.components.Deduper == nil {
		return false
	}
	exists, err := s.components.Deduper.CheckAndAddUploadMD5(ctx, md5)
	if err != nil {
		s.logger.Warn().Err(err).Str("md5", md5).Msg("上传去重检查失败，按新文件处理")
		return false
	}
	return exists
}

// rollbackMD5 处理失败时移除MD5，允许重新上传
func (s *ResumeService) rollbackMD5(ctx context.Context, md5 string) {
	if s.components.Deduper == nil {
		return
	}
	if err := s.components.Deduper.RemoveUploadMD5(ctx, md5); err != nil {
		s.logger.Warn().Err(err).Str("md5", md5).Msg("回滚上传MD5失败")
	}
}

// precheck 空文件和不支持的类型直接判为失败，重复文件判为重复
func (s *ResumeService) precheck(ctx context.Context, f UploadedFile) (storage.FileMeta, *fileResult) {
	out := FileOutcome{Filename: f.Filename}
	if len(f.Data) == 0 {
		out.Reason = "文件内容为空"
		return storage.FileMeta{}, &fileResult{kind: outcomeFailed, outcome: out}
	}
	if !s.components.Decoder.Supports(f.Filename) {
		s.components.Metrics.ObserveExtraction(metrics.OutcomeUnsupported, 0)
		out.Reason = unsupportedReason(f.Filename)
		return storage.FileMeta{}, &fileResult{kind: outcomeFailed, outcome: out}
	}

	meta := fileMeta(f.Filename, f.Data)
	if s.isDuplicate(ctx, meta.ContentMD5) {
		s.components.Metrics.ObserveExtraction(metrics.OutcomeDuplicate, 0)
		out.Reason = NewDuplicateError(f.Filename, meta.ContentMD5).Error()
		return meta, &fileResult{kind: outcomeDuplicate, outcome: out}
	}
	return meta, nil
}

// SubmitBatch 批量上传。队列模式下保存原始文件并写入 outbox，由消费者异步抽取；
// 否则退化为同步处理
func (s *ResumeService) SubmitBatch(ctx context.Context, userID uint64, files []UploadedFile) (BatchReceipt, error) {
	if len(files) == 0 {
		return BatchReceipt{}, NewInvalidInputError("submit_batch", "没有上传文件")
	}
	if s.components.Store == nil {
		return BatchReceipt{}, ErrStorageNotInit
	}
	if !s.QueueMode() {
		return s.ProcessBatchInline(ctx, userID, files)
	}

	ctx, span := tracer.Start(ctx, "ResumeService.SubmitBatch",
		trace.WithAttributes(attribute.Int("batch.size", len(files))))
	defer span.End()

	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(s.settings.BatchWorkers)
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.submitOne(ctx, userID, f)
			return nil
		})
	}
	_ = g.Wait()

	receipt := newBatchReceipt(true)
	for _, res := range results {
		receipt.add(res)
	}
	span.SetAttributes(
		attribute.Int("batch.accepted", len(receipt.Accepted)),
		attribute.Int("batch.duplicates", len(receipt.Duplicates)),
		attribute.Int("batch.failed", len(receipt.Failed)),
	)
	s.logger.Info().
		Uint64("user_id", userID).
		Int("accepted", len(receipt.Accepted)).
		Int("duplicates", len(receipt.Duplicates)).
		Int("failed", len(receipt.Failed)).
		Msg("批量上传已提交到队列")
	return receipt, nil
}

func (s *ResumeService) submitOne(ctx context.Context, userID uint64, f UploadedFile) fileResult {
	meta, done := s.precheck(ctx, f)
	if done != nil {
		return *done
	}
	out := FileOutcome{Filename: f.Filename}

	id, err := uuid.NewV7()
	if err != nil {
		s.rollbackMD5(ctx, meta.ContentMD5)
		out.Reason = NewStorageError(f.Filename, err.Error()).Error()
		return fileResult{kind: outcomeFailed, outcome: out}
	}
	meta.FileID = id.String()

	key, err := s.components.Blobs.UploadResumeFile(ctx, meta.FileID, meta.FileType, bytes.NewReader(f.Data), meta.FileSize)
	if err != nil {
		s.rollbackMD5(ctx, meta.ContentMD5)
		uploadErr := NewUploadError(f.Filename, err.Error())
		s.logger.Error().Err(uploadErr).Msg("上传原始文件失败")
		out.Reason = uploadErr.Error()
		return fileResult{kind: outcomeFailed, outcome: out}
	}
	meta.ObjectKey = key

	fileID, err := s.components.Store.RegisterUpload(ctx, userID, meta, *s.settings.Outbox)
	if err != nil {
		s.rollbackMD5(ctx, meta.ContentMD5)
		storeErr := NewStorageError(f.Filename, err.Error())
		s.logger.Error().Err(storeErr).Msg("登记上传文件失败")
		out.Reason = storeErr.Error()
		return fileResult{kind: outcomeFailed, outcome: out}
	}
	out.FileID = fileID
	return fileResult{kind: outcomeAccepted, outcome: out}
}

// ProcessBatchInline 并发解析一批文件，成功的结果在一个事务中保存
// 单个文件失败只记录在回执中，不影响其余文件
func (s *ResumeService) ProcessBatchInline(ctx context.Context, userID uint64, files []UploadedFile) (BatchReceipt, error) {
	if s.components.Store == nil {
		return BatchReceipt{}, ErrStorageNotInit
	}
	ctx, span := tracer.Start(ctx, "ResumeService.ProcessBatchInline",
		trace.WithAttributes(attribute.Int("batch.size", len(files))))
	defer span.End()

	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(s.settings.BatchWorkers)
	for i, f := range files {
		g.Go(func() error {
			results[i] = s.parseOne(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	receipt := newBatchReceipt(false)
	items := make([]storage.ProfileItem, 0, len(files))
	for _, res := range results {
		if res.kind == outcomeAccepted {
			items = append(items, res.item)
			continue
		}
		receipt.add(res)
	}
	if len(items) == 0 {
		return receipt, nil
	}

	ids, err := s.components.Store.SaveProfilesBatch(ctx, userID, items)
	if err != nil {
		for _, item := range items {
			s.rollbackMD5(ctx, item.File.ContentMD5)
		}
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		return receipt, NewStorageError("batch", err.Error())
	}
	for i, id := range ids {
		receipt.Accepted = append(receipt.Accepted, FileOutcome{Filename: items[i].File.Filename, FileID: id})
	}
	s.invalidateMatches(ctx)

	s.logger.Info().
		Uint64("user_id", userID).
		Int("saved", len(ids)).
		Int("duplicates", len(receipt.Duplicates)).
		Int("failed", len(receipt.Failed)).
		Msg("批量简历同步处理完成")
	return receipt, nil
}

func (s *ResumeService) parseOne(ctx context.Context, f UploadedFile) fileResult {
	meta, done := s.precheck(ctx, f)
	if done != nil {
		return *done
	}
	profile, err := s.ParseResume(ctx, f.Data, f.Filename)
	if err != nil {
		s.rollbackMD5(ctx, meta.ContentMD5)
		s.logger.Warn().Err(err).Str("filename", f.Filename).Msg("跳过无法解析的文件")
		return fileResult{kind: outcomeFailed, outcome: FileOutcome{Filename: f.Filename, Reason: err.Error()}}
	}
	return fileResult{
		kind:    outcomeAccepted,
		outcome: FileOutcome{Filename: f.Filename},
		item:    storage.ProfileItem{File: meta, Profile: profile},
	}
}

// HandleUploadMessage 消费上传消息。返回 true 表示确认消息，false 表示重新入队
// 消息格式错误、原始文件已不存在或文档无法解码时直接丢弃
func (s *ResumeService) HandleUploadMessage(ctx context.Context, body []byte) bool {
	var msg types.ResumeUploadMessage
	if err := json.Unmarshal(body, &msg); err != nil || msg.FileID == "" || msg.ObjectKey == "" {
		s.logger.Error().Err(err).Int("body_len", len(body)).Msg("无法解析上传消息，丢弃")
		return true
	}
	log := s.logger.With().Str("file_id", msg.FileID).Str("filename", msg.Filename).Logger()

	if s.components.Blobs == nil || s.components.Store == nil {
		log.Error().Msg("原始文件存储或数据库未初始化，消息重新入队")
		return false
	}

	ctx, span := tracer.Start(ctx, "ResumeService.HandleUploadMessage",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("resume.file_id", msg.FileID),
			attribute.String("resume.object_key", msg.ObjectKey),
		))
	defer span.End()

	data, err := s.components.Blobs.GetResumeFile(ctx, msg.ObjectKey)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeStorage)
		if errors.Is(err, storage.ErrObjectNotFound) {
			log.Warn().Err(err).Msg("原始文件不存在，丢弃消息")
			return true
		}
		log.Warn().Err(err).Msg("读取原始文件失败，稍后重试")
		return false
	}

	profile, err := s.ParseResume(ctx, data, msg.Filename)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.Warn().Err(err).Msg("解析被中断，稍后重试")
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("简历解析失败，丢弃消息")
		return true
	}

	meta := fileMeta(msg.Filename, data)
	meta.FileID = msg.FileID
	meta.ObjectKey = msg.ObjectKey
	if _, err := s.components.Store.SaveProfile(ctx, msg.UserID, meta, profile); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeDB)
		log.Warn().Err(err).Msg("保存抽取结果失败，稍后重试")
		return false
	}
	s.invalidateMatches(ctx)
	span.SetAttributes(tracing.Redact("candidate.email", profile.Email))

	ev := log.Info().Int("skills", len(profile.Skills))
	if !msg.SubmittedAt.IsZero() {
		ev = ev.Dur("queue_latency", time.Since(msg.SubmittedAt))
	}
	ev.Msg("队列简历处理完成")
	return true
}

// ListProfiles 分页列出已保存的简历，page 从1开始
func (s *ResumeService) ListProfiles(ctx context.Context, userID uint64, page, size int) ([]types.StoredProfile, int64, error) {
	if s.components.Store == nil {
		return nil, 0, ErrStorageNotInit
	}
	if page < 1 || size < 1 || size > 100 {
		return nil, 0, NewInvalidInputError("list", fmt.Sprintf("page=%d size=%d 超出范围", page, size))
	}
	items, total, err := s.components.Store.ListProfilesPage(ctx, userID, page, size)
	if err != nil {
		return nil, 0, NewStorageError("list", err.Error())
	}
	return items, total, nil
}

// Reset 清空数据库、去重集合、匹配缓存和原始文件
func (s *ResumeService) Reset(ctx context.Context) error {
	if s.components.Store == nil {
		return ErrStorageNotInit
	}
	if err := s.components.Store.Reset(ctx); err != nil {
		return NewStorageError("*", err.Error())
	}
	if s.components.Deduper != nil {
		if err := s.components.Deduper.Reset(ctx); err != nil {
			return NewStorageError("*", err.Error())
		}
	} else {
		s.invalidateMatches(ctx)
	}
	if s.components.Blobs != nil {
		if err := s.components.Blobs.RemoveAll(ctx); err != nil {
			return NewStorageError("*", err.Error())
		}
	}
	s.logger.Warn().Msg("所有简历数据已清空")
	return nil
}
