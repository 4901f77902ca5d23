package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-match-go/internal/config"
)

func TestMatchCacheKey(t *testing.T) {
	key := MatchCacheKey(3, 7, "golang engineer", 5)
	assert.Regexp(t, `^resume_match:match:3:7:[0-9a-f]{32}:5$`, key)

	assert.Equal(t, key, MatchCacheKey(3, 7, "golang engineer", 5), "相同输入应得到相同的key")
	assert.NotEqual(t, key, MatchCacheKey(4, 7, "golang engineer", 5), "版本号变化应使key失效")
	assert.NotEqual(t, key, MatchCacheKey(3, 8, "golang engineer", 5))
	assert.NotEqual(t, key, MatchCacheKey(3, 7, "golang engineer", 6))
}

func TestResumeObjectKey(t *testing.T) {
	assert.Equal(t, "resume/abc/original.pdf", ResumeObjectKey("abc", ".PDF"))
	assert.Equal(t, "resume/abc/original", ResumeObjectKey("abc", ""))
}

func TestGetContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", getContentType(".pdf"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", getContentType(".DOCX"))
	assert.Equal(t, "application/octet-stream", getContentType(".bin"))
}

func TestGormLogLevel(t *testing.T) {
	assert.NotEqual(t, gormLogLevel(1), gormLogLevel(4))
	assert.Equal(t, gormLogLevel(4), gormLogLevel(0))
}

func TestNewStorageRequiresMySQL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MySQL.Host = ""
	_, err := NewStorage(context.Background(), cfg)
	require.Error(t, err)

	_, err = NewStorage(context.Background(), nil)
	assert.Error(t, err)
}

func TestNewRedisAdapterValidation(t *testing.T) {
	_, err := NewRedisAdapter(nil)
	assert.Error(t, err)
	_, err = NewRedisAdapter(&config.RedisConfig{})
	assert.Error(t, err)
}

func TestNewRabbitMQValidation(t *testing.T) {
	_, err := NewRabbitMQ(nil)
	assert.Error(t, err)
	_, err = NewRabbitMQ(&config.RabbitMQConfig{})
	assert.Error(t, err)
}
