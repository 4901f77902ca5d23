package parser

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"resume-match-go/internal/types"
)

// LedongthucPDFDecoder 使用 ledongthuc/pdf 逐页提取文本，同时读取链接注释
type LedongthucPDFDecoder struct{}

// NewLedongthucPDFDecoder 创建PDF解码器
func NewLedongthucPDFDecoder() *LedongthucPDFDecoder {
	return &LedongthucPDFDecoder{}
}

// Decode 实现 Decoder
func (d *LedongthucPDFDecoder) Decode(ctx context.Context, data []byte, uri string) (doc types.RawDocument, err error) {
	// 该库遇到畸形PDF时可能 panic
	defer func() {
		if r := recover(); r != nil {
			err = corrupt(uri, fmt.Errorf("pdf reader panic: %v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.RawDocument{}, corrupt(uri, fmt.Errorf("failed to read pdf: %w", err))
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return types.RawDocument{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return types.RawDocument{}, corrupt(uri, fmt.Errorf("page %d: %w", i, err))
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	return types.RawDocument{Text: b.String(), Hyperlinks: linksFromReader(reader)}, nil
}

// ExtractPDFLinks 读取所有页面 /Annots 中 /A /URI 形式的链接
func ExtractPDFLinks(data []byte) (links []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			links, err = nil, fmt.Errorf("%w: pdf reader panic: %v", ErrCorruptDocument, r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	return linksFromReader(reader), nil
}

func linksFromReader(reader *pdf.Reader) []string {
	links := []string{}
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		annots := page.V.Key("Annots")
		for j := 0; j < annots.Len(); j++ {
			annot := annots.Index(j)
			if annot.Key("Subtype").Name() != "Link" {
				continue
			}
			uri := annot.Key("A").Key("URI")
			if uri.Kind() != pdf.String {
				continue
			}
			if s := strings.TrimSpace(uri.RawString()); s != "" {
				links = append(links, s)
			}
		}
	}
	return links
}
