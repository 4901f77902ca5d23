package extract

import (
	"sort"
	"strings"
)

// ExtractSkills 返回文本中出现的词表技能，按字典序排列
// 长度不超过3的技能需整词匹配，以免 "go" 命中 "going"
func (e *Extractor) ExtractSkills(text string) []string {
	low := strings.ToLower(text)
	found := make([]string, 0)
	seen := make(map[string]struct{})
	for _, skill := range e.lex.Skills {
		if _, ok := seen[skill]; ok {
			continue
		}
		if !strings.Contains(low, skill) {
			continue
		}
		if re, short := e.shortSkills[skill]; short && !re.MatchString(low) {
			continue
		}
		seen[skill] = struct{}{}
		found = append(found, skill)
	}
	sort.Strings(found)
	return found
}
