package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Extractor 基于词表的确定性简历信息提取器
// 所有方法均为纯函数，无共享可变状态，可并发调用
type Extractor struct {
	lex Lexicon

	degreeRes   []*regexp.Regexp
	shortSkills map[string]*regexp.Regexp // 长度<=3 的技能需整词匹配
}

// Option 配置 Extractor
type Option func(*Extractor)

// WithLexicon 使用自定义词表，缺失的表回落到内置默认值
func WithLexicon(lex Lexicon) Option {
	return func(e *Extractor) {
		e.lex = lex.withDefaults()
	}
}

// New 创建提取器并预编译正则表
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{lex: DefaultLexicon()}
	for _, opt := range opts {
		opt(e)
	}

	e.degreeRes = make([]*regexp.Regexp, 0, len(e.lex.DegreePatterns))
	for _, pat := range e.lex.DegreePatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("编译学位正则 %q 失败: %w", pat, err)
		}
		e.degreeRes = append(e.degreeRes, re)
	}

	e.shortSkills = make(map[string]*regexp.Regexp)
	skills := make([]string, 0, len(e.lex.Skills))
	for _, skill := range e.lex.Skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill == "" {
			continue
		}
		skills = append(skills, skill)
		if len(skill) <= 3 {
			e.shortSkills[skill] = regexp.MustCompile(`\b` + regexp.QuoteMeta(skill) + `\b`)
		}
	}
	e.lex.Skills = skills
	return e, nil
}

// Lexicon 返回当前词表的拷贝
func (e *Extractor) Lexicon() Lexicon {
	return Lexicon{
		Skills:              clone(e.lex.Skills),
		SectionHints:        clone(e.lex.SectionHints),
		HeaderStopWords:     clone(e.lex.HeaderStopWords),
		DegreePatterns:      clone(e.lex.DegreePatterns),
		InstitutionKeywords: clone(e.lex.InstitutionKeywords),
		NoiseKeywords:       clone(e.lex.NoiseKeywords),
		PlaceholderEmails:   clone(e.lex.PlaceholderEmails),
	}
}

var defaultExtractor = mustNew()

func mustNew() *Extractor {
	e, err := New()
	if err != nil {
		panic(err)
	}
	return e
}

// Default 返回使用内置词表的共享提取器
func Default() *Extractor {
	return defaultExtractor
}

// looksLikeSectionHeader 判断一行是否像章节标题或表格标签行
func (e *Extractor) looksLikeSectionHeader(line string) bool {
	low := strings.ToLower(line)
	if containsAny(low, e.lex.HeaderStopWords) {
		return true
	}
	if len(strings.Fields(line)) <= 4 && !headerGuardRe.MatchString(line) {
		if containsAny(low, e.lex.SectionHints) {
			return true
		}
	}
	return false
}
