package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"DEBUG":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestInitializeSwapsLogger(t *testing.T) {
	before := std.Load()
	Initialize("error")
	t.Cleanup(func() { Initialize("info") })

	assert.NotSame(t, before, std.Load())
	assert.False(t, std.Load().Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, std.Load().Desugar().Core().Enabled(zapcore.ErrorLevel))
}
