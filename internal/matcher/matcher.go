// Package matcher 用词袋 Jaccard 相似度对已存储的简历与 JD 文本进行排序
package matcher

import (
	"regexp"
	"sort"
	"strings"

	"resume-match-go/internal/types"
)

const (
	// DefaultTopK 未指定返回条数时的默认值
	DefaultTopK = 5

	unknownCandidate = "Unknown Candidate"
	unknownFile      = "Unknown File"
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// TokenSet 文本的小写词集合
type TokenSet map[string]struct{}

// Tokenize 将文本切分为小写词集合
func Tokenize(text string) TokenSet {
	set := make(TokenSet)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard 交集大小除以并集大小，任一集合为空时为0
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Rank 对语料打分并排序：分数降序（同分保持语料原顺序），按邮箱或文件名去重，截取前 topK 条
// 空语料返回空结果
func Rank(corpus []types.StoredProfile, query string, topK int) []types.MatchResult {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if len(corpus) == 0 {
		return []types.MatchResult{}
	}

	q := Tokenize(query)
	scored := make([]types.MatchResult, 0, len(corpus))
	for _, p := range corpus {
		scored = append(scored, toResult(p, Jaccard(q, Tokenize(p.RawText))))
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	out := make([]types.MatchResult, 0, min(topK, len(scored)))
	seen := make(map[string]struct{}, len(scored))
	for _, r := range scored {
		key := identityKey(r)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
		if len(out) == topK {
			break
		}
	}
	return out
}

// identityKey 邮箱非空时按邮箱去重，否则按文件名
func identityKey(r types.MatchResult) string {
	if r.Email != "" {
		return r.Email
	}
	return r.Filename
}

func toResult(p types.StoredProfile, score float64) types.MatchResult {
	name := p.Name
	if name == "" {
		name = unknownCandidate
	}
	file := p.Filename
	if file == "" {
		file = unknownFile
	}
	return types.MatchResult{
		ProfileID: p.ProfileID,
		Name:      name,
		Email:     p.Email,
		Phone:     p.Phone,
		Education: p.Education,
		Skills:    p.Skills,
		Filename:  file,
		Score:     score,
	}
}
