package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"resume-match-go/internal/config"
	"resume-match-go/internal/storage/models"
	"resume-match-go/internal/tracing"
	"resume-match-go/internal/types"
)

var mysqlTracer = otel.Tracer("resume-match-go/storage/mysql")

// EventResumeUploaded outbox 事件类型
const EventResumeUploaded = "ResumeUploaded"

type spanCtxKey struct{}

// GormTracingPlugin 是一个GORM插件，为每次数据库操作创建 OpenTelemetry span
type GormTracingPlugin struct {
	tracer         trace.Tracer
	dbName         string
	disableErrSkip bool
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:         mysqlTracer,
		dbName:         dbName,
		disableErrSkip: true,
	}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register("otel:before_create", p.before("INSERT")),
		cb.Create().After("gorm:create").Register("otel:after_create", p.after()),
		cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")),
		cb.Query().After("gorm:query").Register("otel:after_query", p.after()),
		cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")),
		cb.Update().After("gorm:update").Register("otel:after_update", p.after()),
		cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")),
		cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()),
		cb.Row().Before("gorm:row").Register("otel:before_row", p.before("ROW")),
		cb.Row().After("gorm:row").Register("otel:after_row", p.after()),
		cb.Raw().Before("gorm:raw").Register("otel:before_raw", p.before("RAW")),
		cb.Raw().After("gorm:raw").Register("otel:after_raw", p.after()),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		if p.disableErrSkip && db.Statement.SkipHooks {
			return
		}
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		newCtx, span := p.tracer.Start(ctx, fmt.Sprintf("%s %s", operation, table),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", table),
			),
		)
		db.Statement.Context = context.WithValue(newCtx, spanCtxKey{}, span)
	}
}

func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(spanCtxKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(
			attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
			attribute.String("db.statement", tracing.SafeSQL(db.Statement.SQL.String())),
		)
		switch {
		case db.Error == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(db.Error, gorm.ErrRecordNotFound):
			// 未找到记录属于正常业务分支
			span.SetAttributes(attribute.String("error.type", "record_not_found"))
			span.SetStatus(codes.Ok, "record not found")
		default:
			tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
		}
	}
}

// FileMeta 上传文件的元数据
type FileMeta struct {
	FileID     string // 为空时自动生成 UUIDv7
	Filename   string
	FileSize   int64
	FileType   string
	ObjectKey  string
	ContentMD5 string
}

// ProfileItem 批量保存的一项
type ProfileItem struct {
	File    FileMeta
	Profile types.ExtractedProfile
}

// OutboxTarget 上传事件的投递目标
type OutboxTarget struct {
	Exchange   string
	RoutingKey string
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		PrepareStmt:                              true,
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}
	return m, nil
}

func gormLogLevel(level int) gormlogger.LogLevel {
	switch level {
	case 1:
		return gormlogger.Silent
	case 2:
		return gormlogger.Error
	case 3:
		return gormlogger.Warn
	default:
		return gormlogger.Info
	}
}

func (m *MySQL) autoMigrateSchema() error {
	silent := m.db.Session(&gorm.Session{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err := silent.AutoMigrate(
		&models.ResumeFile{},
		&models.ResumeData{},
		&models.OutboxMessage{},
	); err != nil {
		return fmt.Errorf("GORM自动迁移失败: %w", err)
	}
	log.Println("GORM数据库结构迁移成功")
	return nil
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	return sqlDB.Close()
}

// upsertFile 按 (user_id, filename) 写入文件记录，返回最终的 file_id
func upsertFile(tx *gorm.DB, userID uint64, meta FileMeta, processed bool) (string, error) {
	fileID := meta.FileID
	if fileID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("生成UUIDv7失败: %w", err)
		}
		fileID = id.String()
	}

	row := models.ResumeFile{
		FileID:     fileID,
		UserID:     userID,
		Filename:   meta.Filename,
		FileSize:   meta.FileSize,
		FileType:   meta.FileType,
		ObjectKey:  meta.ObjectKey,
		ContentMD5: meta.ContentMD5,
		Processed:  processed,
	}
	updates := []string{"file_size", "file_type", "content_md5", "processed"}
	if meta.ObjectKey != "" {
		updates = append(updates, "object_key")
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "filename"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&row).Error
	if err != nil {
		return "", fmt.Errorf("写入 resume_files 失败: %w", err)
	}

	// 冲突时保留已有 file_id
	var existing models.ResumeFile
	if err := tx.Select("file_id").Where("user_id = ? AND filename = ?", userID, meta.Filename).First(&existing).Error; err != nil {
		return "", fmt.Errorf("查询 resume_files 失败: %w", err)
	}
	return existing.FileID, nil
}

func upsertData(tx *gorm.DB, userID uint64, fileID string, p types.ExtractedProfile) error {
	skillsJSON, err := models.StringsToJSON(p.Skills)
	if err != nil {
		return fmt.Errorf("转换技能为JSON失败: %w", err)
	}
	row := models.ResumeData{
		ResumeFileID:    fileID,
		UserID:          userID,
		CandidateName:   p.Name,
		CandidateEmail:  p.Email,
		CandidatePhone:  p.Phone,
		Skills:          p.SkillsText(),
		SkillsJSON:      skillsJSON,
		Education:       p.EducationText(),
		ExtractedText:   p.RawText,
		InterviewStatus: models.InterviewStatusPending,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "resume_file_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"candidate_name", "candidate_email", "candidate_phone",
			"skills", "skills_json", "education", "extracted_text", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("写入 resume_data 失败: %w", err)
	}
	return nil
}

// SaveProfile 保存单份简历的文件记录和抽取结果
func (m *MySQL) SaveProfile(ctx context.Context, userID uint64, file FileMeta, profile types.ExtractedProfile) (string, error) {
	ids, err := m.SaveProfilesBatch(ctx, userID, []ProfileItem{{File: file, Profile: profile}})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// SaveProfilesBatch 在一个事务中保存多份简历，返回与输入顺序一致的 file_id
func (m *MySQL) SaveProfilesBatch(ctx context.Context, userID uint64, items []ProfileItem) ([]string, error) {
	ctx, span := mysqlTracer.Start(ctx, "MySQL.SaveProfilesBatch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		semconv.DBSystemMySQL,
		attribute.String("db.name", m.cfg.Database),
		attribute.Int("batch.size", len(items)),
	)

	ids := make([]string, 0, len(items))
	if len(items) == 0 {
		span.SetStatus(codes.Ok, "no profiles to save")
		return ids, nil
	}

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			fileID, err := upsertFile(tx, userID, item.File, true)
			if err != nil {
				return err
			}
			if err := upsertData(tx, userID, fileID, item.Profile); err != nil {
				return err
			}
			ids = append(ids, fileID)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// RegisterUpload 记录待处理的上传文件，并在同一事务中写入 outbox 消息
func (m *MySQL) RegisterUpload(ctx context.Context, userID uint64, meta FileMeta, target OutboxTarget) (string, error) {
	var fileID string
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		fileID, err = upsertFile(tx, userID, meta, false)
		if err != nil {
			return err
		}

		payload, err := json.Marshal(types.ResumeUploadMessage{
			FileID:      fileID,
			UserID:      userID,
			Filename:    meta.Filename,
			ObjectKey:   meta.ObjectKey,
			ContentMD5:  meta.ContentMD5,
			SubmittedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("序列化上传消息失败: %w", err)
		}

		msg := models.OutboxMessage{
			AggregateID:      fileID,
			EventType:        EventResumeUploaded,
			Payload:          string(payload),
			TargetExchange:   target.Exchange,
			TargetRoutingKey: target.RoutingKey,
			Status:           models.OutboxStatusPending,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return fmt.Errorf("写入 outbox 消息失败: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return fileID, nil
}

type profileRow struct {
	FileID          string
	UserID          uint64
	Filename        string
	CandidateName   string
	CandidateEmail  string
	CandidatePhone  string
	Skills          string
	Education       string
	ExtractedText   string
	InterviewStatus string
	UpdatedAt       time.Time
}

func (r profileRow) toStored() types.StoredProfile {
	return types.StoredProfile{
		ProfileID:       r.FileID,
		UserID:          r.UserID,
		Filename:        r.Filename,
		Name:            r.CandidateName,
		Email:           r.CandidateEmail,
		Phone:           r.CandidatePhone,
		Skills:          r.Skills,
		Education:       r.Education,
		RawText:         r.ExtractedText,
		InterviewStatus: r.InterviewStatus,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (m *MySQL) profileQuery(ctx context.Context, userID uint64) *gorm.DB {
	q := m.db.WithContext(ctx).
		Table("resume_data AS d").
		Joins("JOIN resume_files AS f ON f.file_id = d.resume_file_id")
	if userID != 0 {
		q = q.Where("d.user_id = ?", userID)
	}
	return q
}

const profileColumns = "f.file_id, d.user_id, f.filename, d.candidate_name, d.candidate_email, d.candidate_phone, " +
	"d.skills, d.education, d.extracted_text, d.interview_status, d.updated_at"

// ListProfiles 返回匹配语料，按文件创建时间排序；userID 为 0 时返回全部用户
func (m *MySQL) ListProfiles(ctx context.Context, userID uint64) ([]types.StoredProfile, error) {
	var rows []profileRow
	err := m.profileQuery(ctx, userID).
		Select(profileColumns).
		Order("f.created_at ASC, d.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询简历列表失败: %w", err)
	}

	out := make([]types.StoredProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toStored())
	}
	return out, nil
}

// ListProfilesPage 分页查询简历，page 从1开始
func (m *MySQL) ListProfilesPage(ctx context.Context, userID uint64, page, size int) ([]types.StoredProfile, int64, error) {
	var total int64
	if err := m.profileQuery(ctx, userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计简历数量失败: %w", err)
	}

	var rows []profileRow
	err := m.profileQuery(ctx, userID).
		Select(profileColumns).
		Order("f.created_at DESC, d.id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("分页查询简历失败: %w", err)
	}

	out := make([]types.StoredProfile, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toStored())
	}
	return out, total, nil
}

// Reset 删除全部简历数据、文件记录和 outbox 消息
func (m *MySQL) Reset(ctx context.Context) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []interface{}{&models.ResumeData{}, &models.ResumeFile{}, &models.OutboxMessage{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return fmt.Errorf("清空数据失败: %w", err)
			}
		}
		return nil
	})
}
