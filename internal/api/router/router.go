package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"

	"resume-match-go/internal/api/handler"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/ratelimit"
)

// APIKeyHeader 重置接口使用的鉴权请求头
const APIKeyHeader = "X-API-Key"

var errInvalidAPIKey = errors.New("invalid api key")

// RequestLogger 记录每个请求的方法、路径、状态码和耗时，并把带请求字段的日志记录器放进 ctx
func RequestLogger() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		reqLogger := logger.Logger.With().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Logger()
		ctx = reqLogger.WithContext(ctx)

		c.Next(ctx)

		status := c.Response.StatusCode()
		ev := reqLogger.Info()
		if status >= consts.StatusInternalServerError {
			ev = reqLogger.Error()
		} else if status >= consts.StatusBadRequest {
			ev = reqLogger.Warn()
		}
		ev.Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

// APIKeyGuard 校验 X-API-Key；apiKey 为空时拒绝所有请求
func APIKeyGuard(apiKey string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+APIKeyHeader, ""),
		keyauth.WithValidator(func(_ context.Context, _ *app.RequestContext, key string) (bool, error) {
			if apiKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
				return false, errInvalidAPIKey
			}
			return true, nil
		}),
		keyauth.WithErrorHandler(func(_ context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "未授权访问"})
		}),
	)
}

// RateLimit 令牌耗尽时返回 429 并设置 Retry-After；limiter 为 nil 时不限流
func RateLimit(limiter *ratelimit.TokenBucket) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if limiter.Allow() {
			c.Next(ctx)
			return
		}
		retry := int(math.Ceil(limiter.RetryAfter().Seconds()))
		if retry < 1 {
			retry = 1
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(consts.StatusTooManyRequests, utils.H{"error": "请求过于频繁"})
	}
}

// RegisterRoutes 注册 API 路由，上传与匹配接口共用 limiter
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, apiKey string, limiter *ratelimit.TokenBucket) {
	h.GET("/health", resumeHandler.HandleHealth)

	api := h.Group("/api/v1")

	limited := RateLimit(limiter)
	resume := api.Group("/resume")
	resume.POST("/upload-batch", limited, resumeHandler.HandleUploadBatch)
	resume.POST("/analyze", limited, resumeHandler.HandleAnalyze)
	resume.POST("/match", limited, resumeHandler.HandleMatch)
	resume.GET("/list", resumeHandler.HandleList)

	util := api.Group("/utils")
	util.POST("/extract-text", resumeHandler.HandleExtractText)
	util.DELETE("/reset", APIKeyGuard(apiKey), resumeHandler.HandleReset)
}
