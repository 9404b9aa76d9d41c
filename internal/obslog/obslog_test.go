package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestInitWritesJSONFile(t *testing.T) {
	restore := Replace(zap.NewNop())
	defer restore()

	path := filepath.Join(t.TempDir(), "nested", "out.log")
	require.NoError(t, Init(Options{Level: "debug", Format: "json", File: path}))
	L().Info("session_move", zap.String("session_id", "s1"), zap.Int("turn_index", 3))
	Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(raw))
	require.Contains(t, line, `"msg":"session_move"`)
	require.Contains(t, line, `"session_id":"s1"`)
	require.Contains(t, line, `"turn_index":3`)
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_FORMAT", " JSON ")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "false")
	o := OptionsFromEnv()
	require.Equal(t, "warn", o.Level)
	require.Equal(t, "json", o.Format)
	require.False(t, o.Console)
	require.Empty(t, o.File)

	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", "")
	require.Equal(t, filepath.Join("logs", "turnsync.log"), OptionsFromEnv().File)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, zapcore.WarnLevel, parseLevel("WARNING"))
	require.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	require.Equal(t, zapcore.InfoLevel, parseLevel("loud"))
}

func TestReplaceRestores(t *testing.T) {
	before := L()
	restore := Replace(zap.NewExample())
	require.NotSame(t, before, L())
	restore()
	require.Same(t, before, L())
}
