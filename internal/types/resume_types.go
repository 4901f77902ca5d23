package types

import (
	"strings"
	"time"
)

// RawDocument 解码器输出：纯文本与文档中的超链接
type RawDocument struct {
	Text       string   `json:"text"`
	Hyperlinks []string `json:"hyperlinks"`
}

// EducationEntry 一条教育经历
type EducationEntry struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution,omitempty"`
	Score       string `json:"score,omitempty"`
}

// String 渲染为 "degree, institution, score"，空字段省略
func (e EducationEntry) String() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Degree, e.Institution, e.Score} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ExtractedProfile 从一份简历中提取出的结构化信息
// 空字符串表示未找到
type ExtractedProfile struct {
	Filename  string           `json:"filename"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Phone     string           `json:"mobile"`
	Skills    []string         `json:"skills"`
	Education []EducationEntry `json:"education"`
	RawText   string           `json:"raw_text"`
}

// SkillsText 技能以 ", " 连接，用于展示和持久化
func (p ExtractedProfile) SkillsText() string {
	return strings.Join(p.Skills, ", ")
}

// EducationText 教育经历以 "; " 连接
func (p ExtractedProfile) EducationText() string {
	lines := make([]string, 0, len(p.Education))
	for _, e := range p.Education {
		lines = append(lines, e.String())
	}
	return strings.Join(lines, "; ")
}

// StoredProfile 存储层返回的简历记录，作为匹配语料
type StoredProfile struct {
	ProfileID       string    `json:"profile_id"`
	UserID          uint64    `json:"user_id"`
	Filename        string    `json:"filename"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Skills          string    `json:"skills"`
	Education       string    `json:"education"`
	RawText         string    `json:"-"`
	InterviewStatus string    `json:"interview_status"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// MatchQuery 一次JD匹配请求
type MatchQuery struct {
	Text string `json:"jd_text"`
	TopK int    `json:"top_k"`
}

// MatchResult 匹配结果
type MatchResult struct {
	ProfileID string  `json:"id"`
	Name      string  `json:"Name"`
	Email     string  `json:"Email"`
	Phone     string  `json:"Phone"`
	Education string  `json:"Education"`
	Skills    string  `json:"Skills"`
	Filename  string  `json:"File"`
	Score     float64 `json:"MatchScore"`
}

// ResumeUploadMessage 批量上传后投递到队列的消息
type ResumeUploadMessage struct {
	FileID      string    `json:"file_id"`
	UserID      uint64    `json:"user_id"`
	Filename    string    `json:"filename"`
	ObjectKey   string    `json:"object_key"`
	ContentMD5  string    `json:"content_md5"`
	SubmittedAt time.Time `json:"submitted_at"`
}
