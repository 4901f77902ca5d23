package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"resume-match-go/internal/types"
)

const (
	maxEducationEntries  = 3
	minDegreeFragmentLen = 4
	contextBefore        = 2 // 上下文窗口 [i-2, i+4)
	contextAfter         = 4
	minInstitutionLen    = 10 // 院校行长度需严格介于 10 和 100 之间
	maxInstitutionLen    = 100
	minPercent           = 40.0
	maxPercent           = 100.0
)

var (
	socialURLRe   = regexp.MustCompile(`(?i)(https?://)?(www\.)?(github\.com|linkedin\.com)\S+`)
	inlineEmailRe = regexp.MustCompile(`\S+@\S+`)
	longDigitsRe  = regexp.MustCompile(`[\(\[\{]?\+?\d[\d\-\s]{8,}\d[\)\]\}]?`)
	segmentSepRe  = regexp.MustCompile(`[|•·]`)
	gpaRe         = regexp.MustCompile(`(?i)\b(?:CGPA|SGPA|GPA)\s*[:=-]?\s*(\d+(?:\.\d+)?)`)
	percentRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
)

// ExtractEducation 按出现顺序提取最多3条教育经历
func (e *Extractor) ExtractEducation(text string) []types.EducationEntry {
	lines := splitLines(text)
	entries := make([]types.EducationEntry, 0, maxEducationEntries)
	rendered := make([]string, 0, maxEducationEntries)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		line = stripContactNoise(line)
		if e.isNoise(line) {
			continue
		}
		cleaned := collapseSpace(line)

		degree, ok := e.matchDegree(cleaned)
		if !ok {
			continue
		}
		fragment := isolateDegree(cleaned, degree)
		if utf8.RuneCountInString(fragment) < minDegreeFragmentLen && !e.hasInstitutionFold(fragment) {
			continue
		}

		institution, score := e.scanContext(lines, i)
		entry := types.EducationEntry{Degree: fragment}
		normDegree := normalizeAlnum(fragment)
		if institution != "" && !strings.Contains(normDegree, normalizeAlnum(institution)) {
			entry.Institution = institution
		}
		if score != "" && !strings.Contains(normDegree, normalizeAlnum(score)) {
			entry.Score = score
		}

		if isDuplicateDegree(rendered, fragment) {
			continue
		}
		entries = append(entries, entry)
		rendered = append(rendered, entry.String())
	}

	if len(entries) > maxEducationEntries {
		entries = entries[:maxEducationEntries]
	}
	return entries
}

// stripContactNoise 去掉社交链接、邮箱和类似电话的长数字串
func stripContactNoise(line string) string {
	line = socialURLRe.ReplaceAllString(line, "")
	line = inlineEmailRe.ReplaceAllString(line, "")
	return longDigitsRe.ReplaceAllString(line, "")
}

func (e *Extractor) isNoise(line string) bool {
	return containsAny(strings.ToLower(line), e.lex.NoiseKeywords)
}

// matchDegree 返回第一个命中的学位模式的匹配文本
func (e *Extractor) matchDegree(line string) (string, bool) {
	for _, re := range e.degreeRes {
		if m := re.FindString(line); m != "" {
			return m, true
		}
	}
	return "", false
}

// isolateDegree 按 | • · 切分，保留包含学位的片段
func isolateDegree(line, degree string) string {
	for _, part := range segmentSepRe.Split(line, -1) {
		if strings.Contains(part, degree) {
			if p := strings.TrimSpace(part); p != "" {
				return p
			}
		}
	}
	return line
}

func (e *Extractor) hasInstitutionFold(s string) bool {
	low := strings.ToLower(s)
	for _, kw := range e.lex.InstitutionKeywords {
		if strings.Contains(low, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// scanContext 在学位行附近查找院校行和成绩
func (e *Extractor) scanContext(lines []string, i int) (institution, score string) {
	start := max(0, i-contextBefore)
	end := min(len(lines), i+contextAfter)
	for _, raw := range lines[start:end] {
		c := strings.TrimSpace(raw)
		if e.isNoise(c) {
			continue
		}
		if institution == "" && containsAny(c, e.lex.InstitutionKeywords) {
			if n := utf8.RuneCountInString(c); n > minInstitutionLen && n < maxInstitutionLen {
				institution = c
			}
		}
		if score == "" {
			score = findScore(c)
		}
	}
	return institution, score
}

// findScore 识别 CGPA/SGPA/GPA 数值，其次识别 40-100 之间的百分比
func findScore(line string) string {
	if m := gpaRe.FindStringSubmatch(line); m != nil {
		return "CGPA: " + m[1]
	}
	if m := percentRe.FindStringSubmatch(line); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil && v >= minPercent && v <= maxPercent {
			return formatPercent(v)
		}
	}
	return ""
}

func isDuplicateDegree(rendered []string, degree string) bool {
	for _, r := range rendered {
		if strings.Contains(r, degree) {
			return true
		}
	}
	return false
}
