package extract

import (
	"sort"
	"strings"
	"unicode"
)

const (
	emailLabelScanLines = 50  // 带 "Email:" 标签的行只在前50行中查找
	nameScanLines       = 100 // 姓名相关定位只看前100个非空行
	nameBoundaryCap     = 30  // 姓名候选行的硬上限
	nameMinTokens       = 1
	nameMaxTokens       = 5
	fallbackLookback    = 3 // 回退时向联系方式行之前回看的行数
	minPhoneDigits      = 8
	maxPhoneDigits      = 15
)

// Contact 联系方式提取结果，空字符串表示未找到
type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"mobile"`
}

// ExtractContact 提取姓名、邮箱与电话；links 为文档中的超链接，用于邮箱回退
func (e *Extractor) ExtractContact(text string, links []string) Contact {
	email := e.ExtractEmail(text)
	if email == "" {
		email = emailFromLinks(links)
	}
	return Contact{
		Name:  e.ExtractName(text),
		Email: email,
		Phone: ExtractPhone(text),
	}
}

// ExtractEmail 优先取带标签的邮箱行，其次取第一个非占位邮箱
func (e *Extractor) ExtractEmail(text string) string {
	lines := splitLines(text)
	if len(lines) > emailLabelScanLines {
		lines = lines[:emailLabelScanLines]
	}
	for _, line := range lines {
		if !emailLabelRe.MatchString(line) {
			continue
		}
		if m := emailRe.FindString(line); m != "" {
			return m
		}
	}

	for _, m := range emailRe.FindAllString(text, -1) {
		if !containsAny(strings.ToLower(m), e.lex.PlaceholderEmails) {
			return m
		}
	}
	return ""
}

// emailFromLinks 从 mailto: 链接中取邮箱
func emailFromLinks(links []string) string {
	for _, link := range links {
		if !strings.HasPrefix(link, "mailto:") {
			continue
		}
		candidate := strings.TrimSpace(strings.ReplaceAll(link, "mailto:", ""))
		if loc := emailRe.FindStringIndex(candidate); loc != nil && loc[0] == 0 {
			return candidate
		}
	}
	return ""
}

type phoneCandidate struct {
	raw   string
	score int
}

// phoneCandidates 收集位数在合法范围内、去重后的原始匹配，保持出现顺序
func phoneCandidates(text string) []phoneCandidate {
	var out []phoneCandidate
	seen := make(map[string]struct{})
	for _, m := range phoneRe.FindAllString(text, -1) {
		n := len(digitsOnly(m))
		if n < minPhoneDigits || n > maxPhoneDigits {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, phoneCandidate{raw: m, score: scorePhone(m)})
	}
	return out
}

func scorePhone(phone string) int {
	score := 0
	if strings.Contains(phone, "+") {
		score += 2
	}
	if len(digitsOnly(phone)) == 10 {
		score++
	}
	if mobilePrefixRe.MatchString(phone) {
		score++
	}
	return score
}

// ExtractPhone 取得分最高的电话号码，同分保持先出现者
func ExtractPhone(text string) string {
	cands := phoneCandidates(text)
	if len(cands) == 0 {
		return ""
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].score > cands[j].score })
	return cands[0].raw
}

type nameCandidate struct {
	idx   int
	score int
	name  string
}

// ExtractName 在联系方式和首个章节之前的若干行中挑选最像姓名的一行
func (e *Extractor) ExtractName(text string) string {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return ""
	}

	contactIdx, sectionIdx := -1, -1
	head := lines
	if len(head) > nameScanLines {
		head = head[:nameScanLines]
	}
	for i, l := range head {
		if contactIdx < 0 && (emailRe.MatchString(l) || phoneRe.MatchString(l)) {
			contactIdx = i
		}
		if sectionIdx < 0 && containsAny(strings.ToLower(l), e.lex.SectionHints) {
			sectionIdx = i
		}
		if contactIdx >= 0 && sectionIdx >= 0 {
			break
		}
	}

	stop := nameBoundaryCap
	if contactIdx >= 0 && contactIdx < stop {
		stop = contactIdx
	}
	if sectionIdx >= 0 && sectionIdx < stop {
		stop = sectionIdx
	}
	stop = max(1, min(stop, len(lines)))

	if best, ok := pickName(e.nameCandidates(lines[:stop])); ok {
		return best
	}

	// 回退一：联系方式行之前的几行
	if contactIdx > 0 {
		for j := max(0, contactIdx-fallbackLookback); j < contactIdx; j++ {
			l := lines[j]
			if e.looksLikeSectionHeader(l) || strings.Contains(l, "@") || hasDigit(l) {
				continue
			}
			tokens := nameTokenRe.FindAllString(l, -1)
			if len(tokens) >= nameMinTokens && len(tokens) <= nameMaxTokens {
				return joinNameTokens(tokens)
			}
		}
	}

	// 回退二：由邮箱本地部分推断
	if m := emailRe.FindString(strings.Join(head, "\n")); m != "" {
		return guessNameFromEmail(m)
	}
	return ""
}

func (e *Extractor) nameCandidates(lines []string) []nameCandidate {
	var out []nameCandidate
	for idx, line := range lines {
		if e.looksLikeSectionHeader(line) {
			continue
		}
		if strings.Contains(line, "@") || strings.Contains(line, "http") || strings.Contains(line, "www.") {
			continue
		}
		if hasDigit(line) {
			continue
		}

		tokens := nameTokenRe.FindAllString(line, -1)
		if len(tokens) < nameMinTokens || len(tokens) > nameMaxTokens {
			continue
		}
		if !acceptInitials(tokens) {
			continue
		}
		out = append(out, nameCandidate{idx: idx, score: scoreNameLine(idx, line, tokens), name: joinNameTokens(tokens)})
	}
	return out
}

// acceptInitials 最多一个单字母缩写，且只能在首位，如 "K. Smith"
func acceptInitials(tokens []string) bool {
	count, pos := 0, -1
	for i, t := range tokens {
		if len([]rune(strings.NewReplacer(".", "", "'", "", "’", "", "-", "").Replace(t))) == 1 {
			count++
			if pos < 0 {
				pos = i
			}
		}
	}
	return count == 0 || (count == 1 && pos == 0)
}

// scoreNameLine 大写开头的词各+1，2-3个词+2，位于前6行+1，整行大写+1
func scoreNameLine(idx int, line string, tokens []string) int {
	score := 0
	for _, t := range tokens {
		first := []rune(t)[0]
		if unicode.IsUpper(first) || isUpperLine(t) {
			score++
		}
	}
	if len(tokens) == 2 || len(tokens) == 3 {
		score += 2
	}
	if idx <= 5 {
		score++
	}
	if isUpperLine(line) {
		score++
	}
	return score
}

// pickName 分数高者优先，同分取更靠前的行
func pickName(cands []nameCandidate) (string, bool) {
	if len(cands) == 0 {
		return "", false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].idx < cands[j].idx
	})
	return cands[0].name, true
}

func joinNameTokens(tokens []string) string {
	parts := make([]string, 0, len(tokens))
	for _, t := range tokens {
		parts = append(parts, strings.Trim(t, " ."))
	}
	return strings.Join(parts, " ")
}

// guessNameFromEmail 去掉数字，按 . _ - 切分，最多取4段并首字母大写
func guessNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	local = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return -1
		}
		return r
	}, local)

	var parts []string
	for _, p := range localSplitRe.Split(local, -1) {
		if p == "" {
			continue
		}
		parts = append(parts, capitalize(p))
		if len(parts) == 4 {
			break
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
