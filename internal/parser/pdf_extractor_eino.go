package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"

	"resume-match-go/internal/types"
)

const defaultEinoTimeout = 30 * time.Second

// EinoPDFDecoder 使用 Eino PDF Parser 提取文本，链接注释交由 ledongthuc/pdf 读取
type EinoPDFDecoder struct {
	parser  *pdf.PDFParser
	logger  *log.Logger
	timeout time.Duration
}

// EinoPDFOption PDF解码器的配置选项
type EinoPDFOption func(*EinoPDFDecoder)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFDecoder) {
		e.logger = logger
	}
}

// WithEinoTimeout 单个文档的解析超时
func WithEinoTimeout(d time.Duration) EinoPDFOption {
	return func(e *EinoPDFDecoder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// NewEinoPDFDecoder 初始化 Eino PDF 解码器
// 不按页面分割，以获取整个文档的连续文本
func NewEinoPDFDecoder(ctx context.Context, options ...EinoPDFOption) (*EinoPDFDecoder, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{
		ToPages: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Eino PDF parser: %w", err)
	}

	decoder := &EinoPDFDecoder{
		parser:  p,
		logger:  log.New(os.Stderr, "[PDF解析器] ", log.LstdFlags),
		timeout: defaultEinoTimeout,
	}
	for _, option := range options {
		option(decoder)
	}
	return decoder, nil
}

// Decode 实现 Decoder
func (e *EinoPDFDecoder) Decode(ctx context.Context, data []byte, uri string) (types.RawDocument, error) {
	text, err := e.extractText(ctx, bytes.NewReader(data), uri)
	if err != nil {
		return types.RawDocument{}, corrupt(uri, err)
	}

	links, err := ExtractPDFLinks(data)
	if err != nil {
		// 文本已成功提取，链接读取失败不影响结果
		e.logger.Printf("读取PDF链接失败 (URI: %s): %v", uri, err)
		links = []string{}
	}
	return types.RawDocument{Text: text, Hyperlinks: links}, nil
}

func (e *EinoPDFDecoder) extractText(ctx context.Context, reader io.Reader, uri string) (string, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	docs, err := e.parser.Parse(ctx, reader,
		einoParser.WithURI(uri),
		einoParser.WithExtraMeta(map[string]any{
			"extraction_time": startTime.Format(time.RFC3339),
		}),
	)
	duration := time.Since(startTime)
	if err != nil {
		e.logger.Printf("PDF解析失败: %s (用时 %.2f秒)", err, duration.Seconds())
		return "", fmt.Errorf("eino PDF parser failed for URI %s: %w", uri, err)
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("eino PDF parser returned no documents for URI %s", uri)
	}

	// 正常情况下只有一个文档，多个时按页拼接
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	text := strings.Join(parts, "\n")

	e.logger.Printf("PDF提取完成: 提取了 %d 个字符 (用时 %.2f秒)", len(text), duration.Seconds())
	return text, nil
}
