package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Lexicon 提取规则使用的全部词表
// 构造 Extractor 之后只读，可在多个 goroutine 之间共享
type Lexicon struct {
	Skills              []string `yaml:"skills"`               // 技能词表，小写
	SectionHints        []string `yaml:"section_hints"`        // 简历章节标题提示词
	HeaderStopWords     []string `yaml:"header_stop_words"`    // 出现即视为表头/标签行
	DegreePatterns      []string `yaml:"degree_patterns"`      // 学位正则，按优先级排列
	InstitutionKeywords []string `yaml:"institution_keywords"` // 院校关键词，大小写敏感
	NoiseKeywords       []string `yaml:"noise_keywords"`       // 出现即不视为教育经历行
	PlaceholderEmails   []string `yaml:"placeholder_emails"`   // 占位邮箱片段
}

var defaultSkills = []string{
	"python", "java", "c++", "c#", ".net", "javascript", "typescript", "react", "angular", "vue", "node.js", "express",
	"django", "flask", "fastapi", "html", "css", "sql", "mysql", "postgresql", "mongodb", "redis", "aws", "azure", "gcp",
	"docker", "kubernetes", "jenkins", "git", "linux", "machine learning", "deep learning", "nlp", "tensorflow", "pytorch",
	"pandas", "numpy", "scikit-learn", "spark", "hadoop", "tableau", "power bi", "excel", "agile", "scrum", "jira",
	"rest api", "graphql", "devops", "ci/cd", "selenium", "cypress", "junit", "mocha", "jest", "php", "ruby", "rails",
	"go", "golang", "rust", "swift", "kotlin", "android", "ios", "flutter", "react native", "unity", "unreal",
	"blockchain", "solidity", "web3", "cybersecurity", "network security", "cloud computing", "big data", "data analysis",
	"project management", "communication", "leadership", "teamwork", "problem solving", "time management", "critical thinking",
}

var defaultSectionHints = []string{
	"education", "experience", "work experience", "employment", "skills", "projects",
	"certification", "certifications", "awards", "publications", "summary", "objective",
	"profile", "interests", "languages",
}

var defaultHeaderStopWords = []string{
	"degree", "certificate", "degree/certificate", "year", "institute", "cgpa", "gpa",
	"highlights", "responsibilities", "role", "company", "organization", "university",
	"college", "board", "class", "standard", "state", "country", "city", "address",
	"contact", "linkedin", "github", "email", "phone", "mobile", "website", "portfolio",
}

// 学位正则，容忍 "B. Tech" / "B.Tech" / "BTech" 等写法
var defaultDegreePatterns = []string{
	`(?i)\bB\.?\s*Tech\b`, `(?i)\bM\.?\s*Tech\b`,
	`(?i)\bB\.?\s*E\b`, `(?i)\bM\.?\s*E\b`,
	`(?i)\bB\.?\s*Sc\b`, `(?i)\bM\.?\s*Sc\b`,
	`(?i)\bB\.?\s*C\.?\s*A\b`, `(?i)\bM\.?\s*C\.?\s*A\b`,
	`(?i)\bPh\.?D\b`,
	`(?i)\bB\.?\s*Com\b`, `(?i)\bM\.?\s*Com\b`,
	`(?i)\bBachelor\b`, `(?i)\bMaster\b`,
}

var defaultInstitutionKeywords = []string{
	"University", "Institute", "College", "School", "Academy",
	"IIT", "NIT", "BITS", "IIIT", "Vellore", "Manipal", "Pilani",
}

var defaultNoiseKeywords = []string{
	"project", "experience", "work", "developed", "using",
	"intern", "internship", "skill", "certificate", "certifications",
}

var defaultPlaceholderEmails = []string{"example.com", "test.com", "placeholder"}

// DefaultLexicon 返回内置词表的一份拷贝
func DefaultLexicon() Lexicon {
	return Lexicon{
		Skills:              clone(defaultSkills),
		SectionHints:        clone(defaultSectionHints),
		HeaderStopWords:     clone(defaultHeaderStopWords),
		DegreePatterns:      clone(defaultDegreePatterns),
		InstitutionKeywords: clone(defaultInstitutionKeywords),
		NoiseKeywords:       clone(defaultNoiseKeywords),
		PlaceholderEmails:   clone(defaultPlaceholderEmails),
	}
}

// LoadLexicon 从YAML文件加载词表，文件中缺失的表沿用内置默认值
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Lexicon{}, fmt.Errorf("读取词表文件失败: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return Lexicon{}, fmt.Errorf("解析词表文件失败: %w", err)
	}
	return lex.withDefaults(), nil
}

func (l Lexicon) withDefaults() Lexicon {
	def := DefaultLexicon()
	if len(l.Skills) == 0 {
		l.Skills = def.Skills
	}
	if len(l.SectionHints) == 0 {
		l.SectionHints = def.SectionHints
	}
	if len(l.HeaderStopWords) == 0 {
		l.HeaderStopWords = def.HeaderStopWords
	}
	if len(l.DegreePatterns) == 0 {
		l.DegreePatterns = def.DegreePatterns
	}
	if len(l.InstitutionKeywords) == 0 {
		l.InstitutionKeywords = def.InstitutionKeywords
	}
	if len(l.NoiseKeywords) == 0 {
		l.NoiseKeywords = def.NoiseKeywords
	}
	if len(l.PlaceholderEmails) == 0 {
		l.PlaceholderEmails = def.PlaceholderEmails
	}
	return l
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
