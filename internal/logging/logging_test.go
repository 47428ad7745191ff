package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"bogus", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "level %q", tc.in)
	}
}

func TestInitAppliesLevel(t *testing.T) {
	Init(Config{Format: "json", Level: "warn"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	Init(Config{Format: "json", Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
