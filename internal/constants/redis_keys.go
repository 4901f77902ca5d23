package constants

import "time"

// Redis Key 前缀和格式常量
// 命名规范: resume_match:{entity}[:{unique_id}]
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "resume_match"

	// KeyUploadedMD5Set 已上传文件MD5集合，用于上传去重 (SET)
	// 格式: resume_match:uploaded_md5s
	KeyUploadedMD5Set = AppPrefix + ":uploaded_md5s"

	// KeyCorpusVersion 简历库版本号，每次保存/重置递增，使匹配缓存失效 (STRING, INCR)
	// 格式: resume_match:corpus_version
	KeyCorpusVersion = AppPrefix + ":corpus_version"

	// KeyMatchResult 匹配结果缓存 (STRING, JSON)
	// 格式: resume_match:match:{corpusVersion}:{userID}:{md5(jd_text)}:{topK}
	KeyMatchResult = AppPrefix + ":match:%d:%d:%s:%d"

	// DefaultMD5ExpireDays MD5记录默认过期天数
	DefaultMD5ExpireDays = 365

	// DefaultMatchCacheTTL 匹配缓存默认时长
	DefaultMatchCacheTTL = 10 * time.Minute
)
