package processor

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrDecode         = errors.New("文档解码失败")
	ErrStorage        = errors.New("存储操作失败")
	ErrDuplicate      = errors.New("重复的简历文件")
	ErrInvalidInput   = errors.New("无效的输入")
	ErrUploadFailed   = errors.New("上传原始文件失败")
	ErrStorageNotInit = errors.New("storage is not initialized")
)

// ResumeProcessError 包含详细错误信息的自定义错误
type ResumeProcessError struct {
	FileID  string // 尚未分配 file_id 时为文件名
	Op      string
	BaseErr error
	Detail  string
}

func (e *ResumeProcessError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (操作:%s, 文件:%s): %s", e.BaseErr, e.Op, e.FileID, e.Detail)
	}
	return fmt.Sprintf("%s (操作:%s, 文件:%s)", e.BaseErr, e.Op, e.FileID)
}

func (e *ResumeProcessError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *ResumeProcessError) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// 错误构造函数
func NewDecodeError(file, detail string) error {
	return &ResumeProcessError{FileID: file, Op: "decode", BaseErr: ErrDecode, Detail: detail}
}

func NewStorageError(file, detail string) error {
	return &ResumeProcessError{FileID: file, Op: "store", BaseErr: ErrStorage, Detail: detail}
}

func NewDuplicateError(file, md5Hex string) error {
	return &ResumeProcessError{FileID: file, Op: "dedupe", BaseErr: ErrDuplicate, Detail: "md5=" + md5Hex}
}

func NewInvalidInputError(op, detail string) error {
	return &ResumeProcessError{Op: op, BaseErr: ErrInvalidInput, Detail: detail}
}

func NewUploadError(file, detail string) error {
	return &ResumeProcessError{FileID: file, Op: "upload", BaseErr: ErrUploadFailed, Detail: detail}
}
