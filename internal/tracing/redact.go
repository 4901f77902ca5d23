package tracing

import (
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// DefaultMaxLength 普通属性最大长度
	DefaultMaxLength = 200

	// MaxSQLLength SQL语句最大长度
	MaxSQLLength = 500

	// MaxJDLength 岗位描述在 span 中保留的最大长度
	MaxJDLength = 120

	// MaxResumePreview 简历正文预览最大长度
	MaxResumePreview = 150

	// phoneKeepDigits 电话号码保留的末尾位数
	phoneKeepDigits = 4
)

// piiKeys 属性名中包含这些片段时值需要掩码
var piiKeys = []string{"email", "phone", "mobile", "name", "api_key", "token", "password", "secret"}

func isPIIKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range piiKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Redact 生成 span 属性：候选人身份信息掩码，其余值按 DefaultMaxLength 截断
func Redact(key, value string) attribute.KeyValue {
	if isPIIKey(key) {
		return attribute.String(key, MaskPII(value))
	}
	return attribute.String(key, Truncate(value, DefaultMaxLength))
}

// MaskPII 掩码候选人信息
//
//	邮箱  jane@corp.io    -> j***@corp.io
//	电话  +91 98765 43210 -> +** ***** *3210
//	姓名  Rahul Verma     -> R**** V****
func MaskPII(value string) string {
	if value == "" {
		return ""
	}
	if at := strings.LastIndex(value, "@"); at > 0 {
		local := []rune(value[:at])
		return string(local[0]) + "***" + value[at:]
	}
	if countDigits(value) >= 7 {
		return maskDigits(value)
	}
	return maskWords(value)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

// maskDigits 只保留最后几位数字，分隔符原样保留
func maskDigits(s string) string {
	visibleFrom := countDigits(s) - phoneKeepDigits
	var b strings.Builder
	idx := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			if idx < visibleFrom {
				r = '*'
			}
			idx++
		}
		b.WriteRune(r)
	}
	return b.String()
}

// maskWords 每个词保留首字符，单字符词整体掩码
func maskWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		if len(runes) == 1 {
			words[i] = "*"
			continue
		}
		words[i] = string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}
	return strings.Join(words, " ")
}

// Truncate 按字符截断，超长时以 "..." 结尾，结果不超过 maxLength
func Truncate(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	return string(runes[:maxLength-3]) + "..."
}

// SafeSQL 截断SQL语句
func SafeSQL(sql string) string {
	return Truncate(sql, MaxSQLLength)
}

// SafeJDText 截断岗位描述
func SafeJDText(jd string) string {
	return Truncate(jd, MaxJDLength)
}

// ResumePreview 合并空白后的简历正文开头，词内的邮箱和长数字串被掩码
func ResumePreview(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		if strings.Contains(w, "@") || countDigits(w) >= 7 {
			words[i] = MaskPII(w)
		}
	}
	return Truncate(strings.Join(words, " "), MaxResumePreview)
}
