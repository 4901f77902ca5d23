package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"

	"resume-match-go/internal/types"
)

var (
	paragraphEndRe = regexp.MustCompile(`</w:p>`)
	lineBreakRe    = regexp.MustCompile(`<w:(br|cr)\s*/>`)
	tabRe          = regexp.MustCompile(`<w:tab\s*/>`)
	xmlTagRe       = regexp.MustCompile(`<[^>]+>`)
)

// DocxDecoder 解析 .docx，按段落输出文本，不提取超链接
type DocxDecoder struct{}

// NewDocxDecoder 创建DOCX解码器
func NewDocxDecoder() *DocxDecoder {
	return &DocxDecoder{}
}

// Decode 实现 Decoder
func (d *DocxDecoder) Decode(_ context.Context, data []byte, uri string) (types.RawDocument, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return types.RawDocument{}, corrupt(uri, fmt.Errorf("failed to parse docx: %w", err))
	}
	defer doc.Close()

	return types.RawDocument{
		Text:       paragraphsFromDocumentXML(doc.Editable().GetContent()),
		Hyperlinks: []string{},
	}, nil
}

// paragraphsFromDocumentXML 将 word/document.xml 转为按段落换行的纯文本
func paragraphsFromDocumentXML(content string) string {
	content = paragraphEndRe.ReplaceAllString(content, "\n")
	content = lineBreakRe.ReplaceAllString(content, "\n")
	content = tabRe.ReplaceAllString(content, "\t")
	content = xmlTagRe.ReplaceAllString(content, "")
	content = html.UnescapeString(content)

	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// TextDecoder 纯文本直通，要求内容为合法UTF-8
type TextDecoder struct{}

// Decode 实现 Decoder
func (TextDecoder) Decode(_ context.Context, data []byte, uri string) (types.RawDocument, error) {
	if !utf8.Valid(data) {
		return types.RawDocument{}, corrupt(uri, fmt.Errorf("text is not valid UTF-8"))
	}
	return types.RawDocument{Text: string(data), Hyperlinks: []string{}}, nil
}
