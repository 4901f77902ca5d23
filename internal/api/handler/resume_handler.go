package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/processor"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

// ResumeService 简历相关操作，由 processor.ResumeService 实现
type ResumeService interface {
	SubmitBatch(ctx context.Context, userID uint64, files []processor.UploadedFile) (processor.BatchReceipt, error)
	AnalyzeAndSave(ctx context.Context, userID uint64, filename string, data []byte) (string, types.ExtractedProfile, error)
	ExtractText(ctx context.Context, data []byte, filename string) (types.RawDocument, error)
	ListProfiles(ctx context.Context, userID uint64, page, size int) ([]types.StoredProfile, int64, error)
	Reset(ctx context.Context) error
}

// MatchService 岗位匹配，由 processor.MatchService 实现
type MatchService interface {
	Match(ctx context.Context, query types.MatchQuery, userID uint64) ([]types.MatchResult, error)
}

// ResumeHandler 简历上传、解析与匹配的 HTTP 处理器
type ResumeHandler struct {
	cfg     *config.Config
	resumes ResumeService
	matches MatchService
}

// NewResumeHandler 创建一个新的简历处理器
func NewResumeHandler(cfg *config.Config, resumes ResumeService, matches MatchService) *ResumeHandler {
	return &ResumeHandler{cfg: cfg, resumes: resumes, matches: matches}
}

// UploadBatchResponse 批量上传响应
type UploadBatchResponse struct {
	Status     string                  `json:"status"`
	Message    string                  `json:"message"`
	Accepted   []processor.FileOutcome `json:"accepted"`
	Duplicates []processor.FileOutcome `json:"duplicates"`
	Failed     []processor.FileOutcome `json:"failed"`
}

// AnalyzeResponse 单份简历解析响应
type AnalyzeResponse struct {
	Status string                 `json:"status"`
	FileID string                 `json:"file_id"`
	Data   types.ExtractedProfile `json:"data"`
}

// ExtractTextResponse 文本提取响应
type ExtractTextResponse struct {
	Filename   string   `json:"filename"`
	Text       string   `json:"text"`
	Hyperlinks []string `json:"hyperlinks"`
}

// ListResponse 分页列表响应
type ListResponse struct {
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
	Items []types.StoredProfile `json:"items"`
}

// writeError 解码失败 415，输入错误 400，其余 500
func writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := consts.StatusInternalServerError
	msg := err.Error()

	var rpe *processor.ResumeProcessError
	switch {
	case errors.Is(err, processor.ErrDecode):
		status = consts.StatusUnsupportedMediaType
	case errors.Is(err, processor.ErrInvalidInput):
		status = consts.StatusBadRequest
	}
	if status != consts.StatusInternalServerError && errors.As(err, &rpe) && rpe.Detail != "" {
		msg = rpe.Detail
	}

	if status >= consts.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Str("path", string(c.Path())).Msg("请求处理失败")
	}
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	c.JSON(status, utils.H{"error": msg})
}

func badRequest(ctx context.Context, c *app.RequestContext, detail string) {
	writeError(ctx, c, processor.NewInvalidInputError(string(c.Path()), detail))
}

// userID 读取 user_id 查询参数，缺省时使用配置的默认用户
func (h *ResumeHandler) userID(c *app.RequestContext) (uint64, error) {
	raw := strings.TrimSpace(c.Query("user_id"))
	if raw == "" {
		return h.cfg.Upload.DefaultUserID, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("user_id 无效: %q", raw)
	}
	return id, nil
}

// readFile 读取上传文件，超过大小限制时返回错误
func (h *ResumeHandler) readFile(fh *multipart.FileHeader) ([]byte, error) {
	limit := h.cfg.MaxFileSizeBytes()
	if fh.Size > limit {
		return nil, fmt.Errorf("文件 %s 超过大小限制 %dMB", fh.Filename, h.cfg.Upload.MaxFileSizeMB)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("打开文件 %s 失败: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("读取文件 %s 失败: %w", fh.Filename, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("文件 %s 超过大小限制 %dMB", fh.Filename, h.cfg.Upload.MaxFileSizeMB)
	}
	return data, nil
}

// singleFile 读取表单字段 file 中的单个文件
func (h *ResumeHandler) singleFile(ctx context.Context, c *app.RequestContext) (string, []byte, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(ctx, c, "文件未找到")
		return "", nil, false
	}
	data, err := h.readFile(fh)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return "", nil, false
	}
	return fh.Filename, data, true
}

// HandleUploadBatch POST /api/v1/resume/upload-batch
func (h *ResumeHandler) HandleUploadBatch(ctx context.Context, c *app.RequestContext) {
	userID, err := h.userID(c)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return
	}
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		badRequest(ctx, c, "没有上传文件")
		return
	}

	headers := form.File["files"]
	files := make([]processor.UploadedFile, 0, len(headers))
	var rejected []processor.FileOutcome
	for _, fh := range headers {
		data, err := h.readFile(fh)
		if err != nil {
			rejected = append(rejected, processor.FileOutcome{Filename: fh.Filename, Reason: err.Error()})
			continue
		}
		files = append(files, processor.UploadedFile{Filename: fh.Filename, Data: data})
	}

	receipt := processor.BatchReceipt{
		Accepted:   []processor.FileOutcome{},
		Duplicates: []processor.FileOutcome{},
		Failed:     []processor.FileOutcome{},
	}
	if len(files) > 0 {
		receipt, err = h.resumes.SubmitBatch(ctx, userID, files)
		if err != nil {
			writeError(ctx, c, err)
			return
		}
	}
	receipt.Failed = append(receipt.Failed, rejected...)

	status, message := "success", fmt.Sprintf("已处理 %d 个文件", len(receipt.Accepted))
	if receipt.Queued {
		status, message = "processing", fmt.Sprintf("已接收 %d 个文件，正在后台解析", len(receipt.Accepted))
	}
	c.JSON(consts.StatusOK, UploadBatchResponse{
		Status:     status,
		Message:    message,
		Accepted:   receipt.Accepted,
		Duplicates: receipt.Duplicates,
		Failed:     receipt.Failed,
	})
}

// HandleAnalyze POST /api/v1/resume/analyze
func (h *ResumeHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	userID, err := h.userID(c)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return
	}
	filename, data, ok := h.singleFile(ctx, c)
	if !ok {
		return
	}

	fileID, profile, err := h.resumes.AnalyzeAndSave(ctx, userID, filename, data)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, AnalyzeResponse{Status: "success", FileID: fileID, Data: profile})
}

// HandleExtractText POST /api/v1/utils/extract-text
func (h *ResumeHandler) HandleExtractText(ctx context.Context, c *app.RequestContext) {
	filename, data, ok := h.singleFile(ctx, c)
	if !ok {
		return
	}
	doc, err := h.resumes.ExtractText(ctx, data, filename)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	if doc.Hyperlinks == nil {
		doc.Hyperlinks = []string{}
	}
	c.JSON(consts.StatusOK, ExtractTextResponse{Filename: filename, Text: doc.Text, Hyperlinks: doc.Hyperlinks})
}

// HandleReset DELETE /api/v1/utils/reset
func (h *ResumeHandler) HandleReset(ctx context.Context, c *app.RequestContext) {
	if err := h.resumes.Reset(ctx); err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"status": "success", "message": "所有简历数据已清空"})
}

// HandleMatch POST /api/v1/resume/match
func (h *ResumeHandler) HandleMatch(ctx context.Context, c *app.RequestContext) {
	userID, err := h.userID(c)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return
	}
	var query types.MatchQuery
	if err := json.Unmarshal(c.Request.Body(), &query); err != nil {
		badRequest(ctx, c, "请求体不是合法的JSON")
		return
	}

	results, err := h.matches.Match(ctx, query, userID)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, utils.H{"matches": results})
}

func queryInt(c *app.RequestContext, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 无效: %q", key, raw)
	}
	return v, nil
}

// HandleList GET /api/v1/resume/list
func (h *ResumeHandler) HandleList(ctx context.Context, c *app.RequestContext) {
	userID, err := h.userID(c)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return
	}
	page, err := queryInt(c, "page", 1)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return
	}
	size, err := queryInt(c, "size", 10)
	if err != nil {
		badRequest(ctx, c, err.Error())
		return
	}

	items, total, err := h.resumes.ListProfiles(ctx, userID, page, size)
	if err != nil {
		writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, ListResponse{Total: total, Page: page, Size: size, Items: items})
}

// HandleHealth GET /health
func (h *ResumeHandler) HandleHealth(_ context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, utils.H{"status": "ok"})
}
