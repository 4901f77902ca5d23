package parser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"resume-match-go/internal/config"
)

// BuildRegistry 统一构建解码器注册表
// 根据 parser.pdf_engine 选择PDF文本提取实现，.docx 与 .txt 固定注册
func BuildRegistry(ctx context.Context, cfg *config.Config, loggerProvider func(prefix string) *log.Logger) (*Registry, error) {
	initLogger := loggerProvider("[DecoderInit] ")
	r := NewRegistry()

	switch engine := strings.ToLower(cfg.Parser.PDFEngine); engine {
	case "", "eino":
		initLogger.Println("使用Eino作为PDF解析器...")
		d, err := NewEinoPDFDecoder(ctx,
			WithEinoLogger(loggerProvider("[EinoPDF] ")),
			WithEinoTimeout(time.Duration(cfg.Parser.TimeoutSeconds)*time.Second),
		)
		if err != nil {
			return nil, err
		}
		r.Register(".pdf", d)
	case "ledongthuc":
		initLogger.Println("使用ledongthuc/pdf作为PDF解析器...")
		r.Register(".pdf", NewLedongthucPDFDecoder())
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", cfg.Parser.PDFEngine)
	}

	r.Register(".docx", NewDocxDecoder())
	r.Register(".txt", TextDecoder{})
	return r, nil
}
