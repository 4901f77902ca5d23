package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// InterviewStatusPending 新入库简历的默认面试状态
const InterviewStatusPending = "Pending"

// ResumeFile 上传的原始简历文件，(user_id, filename) 唯一
type ResumeFile struct {
	FileID     string    `gorm:"type:char(36);primaryKey"`
	UserID     uint64    `gorm:"not null;uniqueIndex:idx_rf_user_filename,priority:1"`
	Filename   string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_rf_user_filename,priority:2"`
	FileSize   int64     `gorm:"not null;default:0"`
	FileType   string    `gorm:"type:varchar(16)"`
	ObjectKey  string    `gorm:"type:varchar(1024)"`
	ContentMD5 string    `gorm:"type:char(32);index:idx_rf_content_md5"`
	Processed  bool      `gorm:"not null;default:false;index:idx_rf_processed"`
	CreatedAt  time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_rf_created_at"`
}

func (ResumeFile) TableName() string {
	return "resume_files"
}

// ResumeData 从简历中抽取出的结构化信息，与 ResumeFile 一对一
type ResumeData struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement"`
	ResumeFileID    string         `gorm:"type:char(36);not null;uniqueIndex:idx_rd_resume_file_id"`
	UserID          uint64         `gorm:"not null;index:idx_rd_user_id"`
	CandidateName   string         `gorm:"type:varchar(255)"`
	CandidateEmail  string         `gorm:"type:varchar(255);index:idx_rd_candidate_email"`
	CandidatePhone  string         `gorm:"type:varchar(50)"`
	Skills          string         `gorm:"type:text"`
	SkillsJSON      datatypes.JSON `gorm:"type:json"`
	Education       string         `gorm:"type:text"`
	ExtractedText   string         `gorm:"type:longtext"`
	InterviewStatus string         `gorm:"type:varchar(50);not null;default:'Pending'"`
	CreatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`
	UpdatedAt       time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`

	ResumeFile *ResumeFile `gorm:"foreignKey:ResumeFileID;references:FileID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (ResumeData) TableName() string {
	return "resume_data"
}

// StringsToJSON 将字符串切片转换为 datatypes.JSON，nil 视为空数组
func StringsToJSON(items []string) (datatypes.JSON, error) {
	if items == nil {
		items = []string{}
	}
	bytes, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return bytes, nil
}

// JSONToStrings 解析 datatypes.JSON 中的字符串数组，空值返回空切片
func JSONToStrings(data datatypes.JSON) []string {
	out := []string{}
	if len(data) == 0 {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return []string{}
	}
	return out
}
