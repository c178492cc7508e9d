package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dan-strohschein/cqltrace/summary"
	"github.com/dan-strohschein/cqltrace/transport/mock"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, 10*time.Second, opts.DefaultTimeout)
	assert.Equal(t, "INFO", opts.LogLevel)
	assert.Equal(t, 100, opts.PreparedCacheSize)
	assert.Equal(t, summary.Prefix, opts.MessagePrefix)
	assert.False(t, opts.DebugMode)
	assert.Nil(t, opts.Logger)
}

func TestNewSessionFillsDefaults(t *testing.T) {
	s := NewSession(mock.NewMockTransport(), nil)
	assert.Equal(t, summary.Prefix, s.opts.MessagePrefix)
	assert.NotNil(t, s.logger)

	opts := SessionOptions{Logger: NewNoopLogger(), DebugMode: true}
	s = NewSession(mock.NewMockTransport(), &opts)
	assert.Equal(t, summary.Prefix, s.opts.MessagePrefix)
	assert.True(t, s.IsDebugMode())
	assert.Equal(t, time.Duration(0), s.opts.DefaultTimeout)
}
