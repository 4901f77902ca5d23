package extract

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/types"
)

const sampleResume = `Rahul Verma
rahul.verma@gmail.com | +91 98765 43210
linkedin.com/in/rahulverma

SUMMARY
Backend engineer working with Python, Django and Docker.

EDUCATION
B.Tech in Computer Science
Indian Institute of Technology Bombay
CGPA: 8.7
`

func TestExtractProfile(t *testing.T) {
	doc := types.RawDocument{Text: sampleResume}
	p := ExtractProfile(doc, "rahul.pdf")

	assert.Equal(t, "rahul.pdf", p.Filename)
	assert.Equal(t, "Rahul Verma", p.Name)
	assert.Equal(t, "rahul.verma@gmail.com", p.Email)
	assert.Equal(t, "+91 98765 43210", p.Phone)
	assert.Equal(t, []string{"django", "docker", "python"}, p.Skills)
	require.Len(t, p.Education, 1)
	assert.Equal(t, "B.Tech in Computer Science, Indian Institute of Technology Bombay, CGPA: 8.7", p.Education[0].String())
	assert.Equal(t, sampleResume, p.RawText)
	assert.Equal(t, "django, docker, python", p.SkillsText())
}

func TestExtractProfile_ParallelCallers(t *testing.T) {
	docs := map[string]types.RawDocument{
		"full":  {Text: sampleResume},
		"links": {Text: "Priya Shah\nSkills: Go, Kubernetes", Hyperlinks: []string{"mailto:priya.shah@corp.io"}},
		"empty": {},
	}
	want := make(map[string]types.ExtractedProfile, len(docs))
	for name, doc := range docs {
		want[name] = Default().ExtractProfile(doc, name+".pdf")
	}

	for name, doc := range docs {
		for i := 0; i < 8; i++ {
			t.Run(name, func(t *testing.T) {
				t.Parallel()
				got := Default().ExtractProfile(doc, name+".pdf")
				assert.Equal(t, want[name], got)
				// 返回的切片归调用方所有，改写不能影响其他调用
				for j := range got.Skills {
					got.Skills[j] = "x"
				}
			})
		}
	}
}

func TestExtractProfile_EmptyDocument(t *testing.T) {
	p := ExtractProfile(types.RawDocument{}, "blank.docx")
	assert.Equal(t, "blank.docx", p.Filename)
	assert.Empty(t, p.Name)
	assert.Empty(t, p.Email)
	assert.Empty(t, p.Phone)
	assert.Empty(t, p.Skills)
	assert.Empty(t, p.Education)
	assert.Empty(t, p.EducationText())
}

func TestExtractProfile_Concurrent(t *testing.T) {
	e := Default()
	want := e.ExtractProfile(types.RawDocument{Text: sampleResume}, "r.pdf")

	var wg sync.WaitGroup
	results := make([]types.ExtractedProfile, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.ExtractProfile(types.RawDocument{Text: sampleResume}, "r.pdf")
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}
