package main

import (
	"testing"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logiface.Level{
		"disabled":      logiface.LevelDisabled,
		"error":         logiface.LevelError,
		"warning":       logiface.LevelWarning,
		"warn":          logiface.LevelWarning,
		"info":          logiface.LevelInformational,
		"informational": logiface.LevelInformational,
		"debug":         logiface.LevelDebug,
		"trace":         logiface.LevelTrace,
		"DEBUG":         logiface.LevelDebug,
	}
	for in, want := range cases {
		got, err := parseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestParseLevelRejectsUnknown(t *testing.T) {
	_, err := parseLevel("verbose")
	assert.Error(t, err)
}
