package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/inoxlang/evalx/internal/convert"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {

	t.Run("yaml", func(t *testing.T) {
		path := writeFile(t, "config.yaml", `
strict-typing: true
allow-naked-method-calls: true
debug-symbols: true
source-name: rules.mvel
cache-size: 64
log-level: debug
inputs:
  age: int
  names: String[]
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.True(t, cfg.StrictTyping)
		assert.False(t, cfg.StrongTyping)
		assert.True(t, cfg.AllowNakedMethodCalls)
		assert.Equal(t, "rules.mvel", cfg.SourceName)
		assert.Equal(t, 64, cfg.CacheCapacity())

		level, err := cfg.Level()
		require.NoError(t, err)
		assert.Equal(t, zerolog.DebugLevel, level)

		parserConfig, err := cfg.ParserConfiguration()
		require.NoError(t, err)
		assert.Equal(t, convert.INT_TYPE, parserConfig.InputTypes["age"])
		assert.Equal(t, reflect.TypeOf([]string(nil)), parserConfig.InputTypes["names"])
		assert.Same(t, cfg.SubExpressionCache(), parserConfig.Cache)
	})

	t.Run("json", func(t *testing.T) {
		path := writeFile(t, "config.json", `{"strongTyping": true, "logLevel": "info"}`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.True(t, cfg.StrongTyping)
		level, err := cfg.Level()
		require.NoError(t, err)
		assert.Equal(t, zerolog.InfoLevel, level)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeFile(t, "config.toml", "")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("debug symbols without source name", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "debug-symbols: true\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("unknown input type", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "inputs:\n  x: Unknown\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrUnknownInputType)
	})

	t.Run("several errors", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "cache-size: -1\nlog-level: loud\n")
		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.ErrorContains(t, err, "negative cache size")
	})
}

func TestConfig(t *testing.T) {

	t.Run("default", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Validate())

		level, err := cfg.Level()
		require.NoError(t, err)
		assert.Equal(t, zerolog.WarnLevel, level)
		assert.Same(t, parse.DefaultSubExpressionCache(), cfg.SubExpressionCache())
	})

	t.Run("imported input types", func(t *testing.T) {
		type point struct{ X, Y int }

		cfg := &Config{
			Imports: map[string]any{"Point": reflect.TypeOf(point{})},
			Inputs:  map[string]string{"p": "Point"},
		}
		parserConfig, err := cfg.ParserConfiguration()
		require.NoError(t, err)
		assert.Equal(t, reflect.TypeOf(point{}), parserConfig.InputTypes["p"])
	})
}
