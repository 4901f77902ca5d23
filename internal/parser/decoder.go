package parser

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"resume-match-go/internal/types"
)

var (
	// ErrUnsupportedFileType 不支持的文件扩展名
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrCorruptDocument 文档内容损坏或无法解析
	ErrCorruptDocument = errors.New("corrupt document")
)

// DecodeError 单个文档解码失败，对该文档是致命的，但不影响同批次其他文档
type DecodeError struct {
	Filename string
	Ext      string
	Err      error
}

func (e *DecodeError) Error() string {
	if errors.Is(e.Err, ErrUnsupportedFileType) {
		return fmt.Sprintf("Unsupported file type: %s", e.Ext)
	}
	return fmt.Sprintf("decode %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func corrupt(filename string, err error) *DecodeError {
	return &DecodeError{
		Filename: filename,
		Ext:      strings.ToLower(filepath.Ext(filename)),
		Err:      fmt.Errorf("%w: %v", ErrCorruptDocument, err),
	}
}

// Decoder 将某种格式的文档字节解码为纯文本和超链接
type Decoder interface {
	Decode(ctx context.Context, data []byte, uri string) (types.RawDocument, error)
}

// DecoderFunc 函数适配为 Decoder
type DecoderFunc func(ctx context.Context, data []byte, uri string) (types.RawDocument, error)

func (f DecoderFunc) Decode(ctx context.Context, data []byte, uri string) (types.RawDocument, error) {
	return f(ctx, data, uri)
}

// Registry 按扩展名分发到具体解码器
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry 创建空的解码器注册表
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register 注册扩展名（如 ".pdf"）对应的解码器，重复注册会覆盖
func (r *Registry) Register(ext string, d Decoder) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	r.decoders[ext] = d
}

// Supports 判断文件名的扩展名是否已注册
func (r *Registry) Supports(filename string) bool {
	_, ok := r.decoders[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extensions 已注册的扩展名，排序后返回
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Decode 按文件扩展名解码；未知扩展名返回 ErrUnsupportedFileType
func (r *Registry) Decode(ctx context.Context, data []byte, filename string) (types.RawDocument, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	d, ok := r.decoders[ext]
	if !ok {
		return types.RawDocument{}, &DecodeError{Filename: filename, Ext: ext, Err: ErrUnsupportedFileType}
	}

	doc, err := d.Decode(ctx, data, filename)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			return types.RawDocument{}, de
		}
		// 取消和超时不是文档的问题，原样返回
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return types.RawDocument{}, err
		}
		return types.RawDocument{}, corrupt(filename, err)
	}
	if doc.Hyperlinks == nil {
		doc.Hyperlinks = []string{}
	}
	return doc, nil
}

// IsDecodeError 判断错误链中是否含有 DecodeError
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
