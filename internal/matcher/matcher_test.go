package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/types"
)

func TestTokenize(t *testing.T) {
	set := Tokenize("Go, GO and go_lang! C++ 2024")
	assert.Len(t, set, 5)
	for _, tok := range []string{"go", "and", "go_lang", "c", "2024"} {
		assert.Contains(t, set, tok)
	}
	assert.Empty(t, Tokenize("  ... !!"))
}

func TestJaccard(t *testing.T) {
	a := Tokenize("python django docker")
	b := Tokenize("python flask docker kubernetes")

	assert.InDelta(t, 2.0/5.0, Jaccard(a, b), 1e-9)
	assert.Equal(t, Jaccard(a, b), Jaccard(b, a), "Jaccard 应对称")
	assert.Equal(t, 1.0, Jaccard(a, a))
	assert.Equal(t, 0.0, Jaccard(a, TokenSet{}))
	assert.Equal(t, 0.0, Jaccard(TokenSet{}, TokenSet{}))
}

func corpus() []types.StoredProfile {
	return []types.StoredProfile{
		{ProfileID: "1", Filename: "a.pdf", Name: "Alice", Email: "alice@corp.io", RawText: "python django rest api"},
		{ProfileID: "2", Filename: "a_v2.pdf", Name: "Alice", Email: "alice@corp.io", RawText: "python django"},
		{ProfileID: "3", Filename: "empty.pdf", Name: "", Email: "", RawText: ""},
		{ProfileID: "4", Filename: "", Name: "Bob", Email: "", RawText: "java spring"},
		{ProfileID: "5", Filename: "carol.docx", Name: "Carol", Email: "carol@corp.io", RawText: "python django rest api"},
	}
}

func TestRank(t *testing.T) {
	got := Rank(corpus(), "python django rest api", 10)
	require.Len(t, got, 4)

	ids := make([]string, 0, len(got))
	for _, r := range got {
		ids = append(ids, r.ProfileID)
	}
	// 1 与 5 同为满分，保持原顺序；2 与 1 邮箱相同被去重
	assert.Equal(t, []string{"1", "5", "3", "4"}, ids)
	assert.Equal(t, 1.0, got[0].Score)
	assert.Equal(t, 0.0, got[2].Score, "空文本得分为0")
	assert.Equal(t, "Unknown Candidate", got[2].Name)
	assert.Equal(t, "Unknown File", got[3].Filename)
}

func TestRank_DuplicateEmailKeepsFirstSeen(t *testing.T) {
	profiles := []types.StoredProfile{
		{ProfileID: "x", Filename: "one.pdf", Email: "same@corp.io", RawText: "golang kubernetes"},
		{ProfileID: "y", Filename: "two.pdf", Email: "same@corp.io", RawText: "golang kubernetes"},
	}
	got := Rank(profiles, "golang", 5)
	require.Len(t, got, 1)
	assert.Equal(t, "x", got[0].ProfileID)
	assert.Greater(t, got[0].Score, 0.0)
}

func TestRank_EmptyTextRankedLast(t *testing.T) {
	profiles := []types.StoredProfile{
		{ProfileID: "empty", Filename: "e.pdf", RawText: ""},
		{ProfileID: "full", Filename: "f.pdf", RawText: "data analysis with excel"},
	}
	got := Rank(profiles, "excel", 5)
	require.Len(t, got, 2)
	assert.Equal(t, "empty", got[1].ProfileID)
	assert.Equal(t, 0.0, got[1].Score)
}

func TestRank_TopKAndDefaults(t *testing.T) {
	got := Rank(corpus(), "python", 2)
	assert.Len(t, got, 2)

	got = Rank(corpus(), "python", 0)
	assert.Len(t, got, 4, "topK<=0 时使用默认值5，去重后剩4条")
}

func TestRank_EmptyCorpus(t *testing.T) {
	got := Rank(nil, "anything", 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRank_Idempotent(t *testing.T) {
	c := corpus()
	first := Rank(c, "python django", 5)
	second := Rank(c, "python django", 5)
	assert.Equal(t, first, second)
}
