package parser

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFDecoder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	decoder, err := NewEinoPDFDecoder(ctx)
	require.NoError(t, err, "创建PDF解码器不应返回错误")
	require.NotNil(t, decoder.parser, "内部的parser不应为nil")
	require.NotNil(t, decoder.logger, "应该有默认的logger")
	assert.Equal(t, defaultEinoTimeout, decoder.timeout)

	customLogger := log.New(os.Stdout, "[测试PDF解码器] ", log.LstdFlags)
	withOpts, err := NewEinoPDFDecoder(ctx, WithEinoLogger(customLogger), WithEinoTimeout(5*time.Second))
	require.NoError(t, err)
	assert.Equal(t, customLogger, withOpts.logger, "应该使用提供的自定义logger")
	assert.Equal(t, 5*time.Second, withOpts.timeout)

	// 非正数超时保持默认值
	zero, err := NewEinoPDFDecoder(ctx, WithEinoTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, defaultEinoTimeout, zero.timeout)
}

func TestEinoPDFDecoder_CorruptInput(t *testing.T) {
	ctx := context.Background()
	decoder, err := NewEinoPDFDecoder(ctx, WithEinoLogger(log.New(os.Stderr, "", 0)))
	require.NoError(t, err)

	_, err = decoder.Decode(ctx, []byte("this is not a pdf"), "broken.pdf")
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
	assert.ErrorIs(t, err, ErrCorruptDocument)
}
