package storage

import (
	"context"
	"fmt"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
)

// Storage 存储管理器，聚合所有存储相关依赖
// MySQL 为必需组件，其余组件未配置或连接失败时为 nil
type Storage struct {
	MinIO    *MinIO
	RabbitMQ *RabbitMQ
	MySQL    *MySQL
	Redis    *Redis
}

// NewStorage 创建存储管理器
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	if cfg.MySQL.Host == "" {
		return nil, fmt.Errorf("MySQL未配置")
	}

	s := &Storage{}
	var err error

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}
	logger.Info().Str("database", cfg.MySQL.Database).Msg("MySQL初始化成功")

	if cfg.Redis.Address != "" {
		if s.Redis, err = NewRedisAdapter(&cfg.Redis); err != nil {
			logger.Warn().Err(err).Msg("初始化Redis失败，上传去重与匹配缓存将被禁用")
			s.Redis = nil
		}
	} else {
		logger.Info().Msg("Redis未配置, 跳过初始化")
	}

	if cfg.MinIO.Endpoint != "" {
		if s.MinIO, err = NewMinIO(&cfg.MinIO, logger.StdLogger("[MinIO] ")); err != nil {
			logger.Warn().Err(err).Msg("初始化MinIO失败，原始文件将不会被保存")
			s.MinIO = nil
		}
	}

	if cfg.QueueEnabled() {
		if s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ); err != nil {
			logger.Warn().Err(err).Msg("初始化RabbitMQ失败，批量上传将同步处理")
			s.RabbitMQ = nil
		} else if err := s.RabbitMQ.SetupTopology(); err != nil {
			logger.Warn().Err(err).Msg("声明RabbitMQ拓扑失败，批量上传将同步处理")
			s.RabbitMQ.Close()
			s.RabbitMQ = nil
		}
	}

	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			logger.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
