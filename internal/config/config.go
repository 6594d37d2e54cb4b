package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"github.com/adrg/xdg"
	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"
	"github.com/inoxlang/evalx/internal/cache"
	"github.com/inoxlang/evalx/internal/parse"
	"github.com/inoxlang/evalx/internal/utils"
	"github.com/rs/zerolog"
)

const (
	APP_NAME = "evalx"

	CONFIG_FILE_NAME    = "config.yaml"
	CONFIG_FILE_RELPATH = APP_NAME + "/" + CONFIG_FILE_NAME

	DEFAULT_LOG_LEVEL = "warn"
)

var (
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrUnknownInputType  = errors.New("unknown input type")
	ErrUnsupportedFormat = errors.New("unsupported configuration file format")
)

// Config configures the compilation and the execution of expressions. A Config should not be
// modified after its first use.
type Config struct {
	// Imports cannot be set from a file.
	Imports map[string]any `yaml:"-" json:"-"`

	StrictTyping          bool `yaml:"strict-typing" json:"strictTyping"`
	StrongTyping          bool `yaml:"strong-typing" json:"strongTyping"`
	AllowNakedMethodCalls bool `yaml:"allow-naked-method-calls" json:"allowNakedMethodCalls"`

	DebugSymbols bool   `yaml:"debug-symbols" json:"debugSymbols"`
	SourceName   string `yaml:"source-name" json:"sourceName"`

	// InputTypes are merged with the types named in Inputs.
	InputTypes map[string]reflect.Type `yaml:"-" json:"-"`

	// Inputs maps variable names to type names: int, String, double[], imported types...
	Inputs map[string]string `yaml:"inputs" json:"inputs"`

	// CacheSize is the capacity of the compiled sub-expression cache, 0 selects the shared cache.
	CacheSize int `yaml:"cache-size" json:"cacheSize"`

	LogLevel string `yaml:"log-level" json:"logLevel"`

	cacheOnce sync.Once
	cache     *parse.SubExpressionCache
}

func Default() *Config {
	return &Config{LogLevel: DEFAULT_LOG_LEVEL}
}

// Load reads a YAML or JSON configuration file, the format is selected by the extension.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(content, cfg)
	case ".json":
		err = json.Unmarshal(content, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault loads the configuration file found in the XDG configuration directories, the default
// configuration is returned if there is no file.
func LoadDefault() (*Config, error) {
	path, err := xdg.SearchConfigFile(CONFIG_FILE_RELPATH)
	if err != nil {
		return Default(), nil
	}
	return Load(path)
}

// DefaultConfigFilePath returns the path where LoadDefault looks first, the parent directory is created.
func DefaultConfigFilePath() (string, error) {
	return xdg.ConfigFile(CONFIG_FILE_RELPATH)
}

func (c *Config) Validate() error {
	var errs []error

	if c.DebugSymbols && c.SourceName == "" {
		errs = append(errs, fmt.Errorf("%w: debug symbols require a source name", ErrInvalidConfig))
	}
	if c.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("%w: negative cache size %d", ErrInvalidConfig, c.CacheSize))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if _, err := c.inputTypes(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 1 {
		return errs[0]
	}
	if len(errs) > 1 {
		return fmt.Errorf("%w:\n%w", ErrInvalidConfig, utils.CombineErrors(errs...))
	}
	return nil
}

// Level returns the log level of the evaluation runtime.
func (c *Config) Level() (zerolog.Level, error) {
	if c.LogLevel == "" {
		return zerolog.WarnLevel, nil
	}
	return zerolog.ParseLevel(c.LogLevel)
}

func (c *Config) inputTypes() (map[string]reflect.Type, error) {
	if len(c.Inputs) == 0 {
		return c.InputTypes, nil
	}

	types := make(map[string]reflect.Type, len(c.Inputs)+len(c.InputTypes))
	for name, t := range c.InputTypes {
		types[name] = t
	}

	resolver := parse.MustNewParserContext(parse.ParserConfiguration{Imports: c.Imports})
	for name, typeName := range c.Inputs {
		t, ok := resolver.ResolveType(strings.TrimSpace(typeName))
		if !ok {
			return nil, fmt.Errorf("%w %q for input %s", ErrUnknownInputType, typeName, name)
		}
		types[name] = t
	}
	return types, nil
}

// SubExpressionCache returns the cache of the configuration, created on first use.
func (c *Config) SubExpressionCache() *parse.SubExpressionCache {
	c.cacheOnce.Do(func() {
		if c.CacheSize == 0 {
			c.cache = parse.DefaultSubExpressionCache()
		} else {
			c.cache = parse.NewSubExpressionCache(c.CacheSize)
		}
	})
	return c.cache
}

// ParserConfiguration converts the configuration to the configuration of a parser context.
func (c *Config) ParserConfiguration() (parse.ParserConfiguration, error) {
	inputs, err := c.inputTypes()
	if err != nil {
		return parse.ParserConfiguration{}, err
	}

	return parse.ParserConfiguration{
		Imports:               c.Imports,
		StrictTyping:          c.StrictTyping,
		StrongTyping:          c.StrongTyping,
		AllowNakedMethodCalls: c.AllowNakedMethodCalls,
		DebugSymbols:          c.DebugSymbols,
		SourceName:            c.SourceName,
		InputTypes:            inputs,
		Cache:                 c.SubExpressionCache(),
	}, nil
}

// CacheCapacity returns the effective capacity of the sub-expression cache.
func (c *Config) CacheCapacity() int {
	if c.CacheSize == 0 {
		return cache.DEFAULT_CAPACITY
	}
	return c.CacheSize
}
