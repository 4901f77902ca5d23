package extract

import "resume-match-go/internal/types"

// ExtractProfile 合并联系方式、技能、教育三个提取器的结果
// 三者互不依赖，未找到的字段留空，不返回错误
func (e *Extractor) ExtractProfile(doc types.RawDocument, filename string) types.ExtractedProfile {
	contact := e.ExtractContact(doc.Text, doc.Hyperlinks)
	return types.ExtractedProfile{
		Filename:  filename,
		Name:      contact.Name,
		Email:     contact.Email,
		Phone:     contact.Phone,
		Skills:    e.ExtractSkills(doc.Text),
		Education: e.ExtractEducation(doc.Text),
		RawText:   doc.Text,
	}
}

// ExtractProfile 使用内置词表提取
func ExtractProfile(doc types.RawDocument, filename string) types.ExtractedProfile {
	return defaultExtractor.ExtractProfile(doc, filename)
}
