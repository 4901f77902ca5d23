package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	// 电话号码形态的并集：国际区号、分组10位号码、印度 91/+91/0 前缀、6-9 开头的手机号
	phoneRe = regexp.MustCompile(`(\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}` +
		`|\+\d{1,3}\s?\(\d{1,4}\)\s?\d{1,4}[-.\s]?\d{1,4}[-.\s]?\d{1,9}` +
		`|\b91[-.\s]?\d{5}[-.\s]?\d{5}\b` +
		`|\b\+91[-.\s]?\d{5}[-.\s]?\d{5}\b` +
		`|\b0\d{5}[-.\s]?\d{5}\b` +
		`|\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b` +
		`|\b\(\d{3}\)[-.\s]?\d{3}[-.\s]?\d{4}\b` +
		`|\b\d{10}\b` +
		`|\b\d{3}[-.\s]\d{3}[-.\s]\d{4}\b` +
		`|\b\d{5}[-.\s]\d{5}\b` +
		`|\b(?:6|7|8|9)\d{9}\b` +
		`|\b\d{4}[-.\s]?\d{3}[-.\s]?\d{3}\b)`)

	mobilePrefixRe = regexp.MustCompile(`[6-9]\d{9}`)
	emailLabelRe   = regexp.MustCompile(`(?i)(email|e-mail|mail)\s*[:|-]`)
	headerGuardRe  = regexp.MustCompile(`\d|@|http`)
	nameTokenRe    = regexp.MustCompile(`[A-Za-z][A-Za-z'’\-]*\.?`)
	localSplitRe   = regexp.MustCompile(`[._-]+`)
	spaceRe        = regexp.MustCompile(`\s+`)
	nonWordRe      = regexp.MustCompile(`[^\p{L}\p{N}_]`)
)

// splitLines 按行切分，规则与常见 splitlines 一致：不保留末尾空行
func splitLines(text string) []string {
	isBreak := func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			return true
		}
		return false
	}
	var lines []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if !isBreak(runes[i]) {
			continue
		}
		lines = append(lines, string(runes[start:i]))
		if runes[i] == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
			i++
		}
		start = i + 1
	}
	if start < len(runes) {
		lines = append(lines, string(runes[start:]))
	}
	return lines
}

// collapseSpace 合并连续空白并去掉首尾空白
func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// nonEmptyLines 去掉空行，其余行合并空白
func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range splitLines(text) {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, collapseSpace(l))
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

// normalizeAlnum 转小写并去掉所有非单词字符
func normalizeAlnum(s string) string {
	return nonWordRe.ReplaceAllString(strings.ToLower(s), "")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// isUpperLine 至少含一个有大小写之分的字母，且没有小写字母
func isUpperLine(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

// formatPercent 按浮点形式渲染百分比，整数值保留一位小数，如 85 -> "85.0%"
func formatPercent(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}

// capitalize 首字母大写，其余小写
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(strings.ToLower(s))
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
