package processor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResumeProcessError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		base    error
		message string
	}{
		{"decode", NewDecodeError("a.png", "Unsupported file type: .png"), ErrDecode, "文档解码失败 (操作:decode, 文件:a.png): Unsupported file type: .png"},
		{"storage", NewStorageError("a.pdf", "timeout"), ErrStorage, "存储操作失败 (操作:store, 文件:a.pdf): timeout"},
		{"duplicate", NewDuplicateError("a.pdf", "abc"), ErrDuplicate, "重复的简历文件 (操作:dedupe, 文件:a.pdf): md5=abc"},
		{"upload", NewUploadError("a.pdf", ""), ErrUploadFailed, "上传原始文件失败 (操作:upload, 文件:a.pdf)"},
		{"invalid", NewInvalidInputError("match", "empty"), ErrInvalidInput, "无效的输入 (操作:match, 文件:): empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.ErrorIs(t, tt.err, tt.base)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tt.err), tt.base)

			var rpe *ResumeProcessError
			assert.True(t, errors.As(tt.err, &rpe))
			assert.Equal(t, tt.base, rpe.Unwrap())
		})
	}

	assert.False(t, errors.Is(NewDecodeError("a", "b"), ErrStorage))
}
