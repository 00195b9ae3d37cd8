package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

const (
	APIPrefix   = "/api/v1"
	ProjectName = "Image Classification Service"
	Version     = "0.1.0"
)

type Config struct {
	Debug       bool
	CORSEnabled bool
	Server      ServerConfig
	Metrics     MetricsConfig
	Model       ModelConfig
	Images      ImagesConfig
}

type ServerConfig struct {
	Host string
	Port string
}

type MetricsConfig struct {
	Host string
	Port string
}

type ModelConfig struct {
	Path                string
	MetadataPath        string
	Name                string
	LibraryPath         string
	ConfidenceThreshold float64
	MaxResults          int
}

type ImagesConfig struct {
	AllowedExtensions []string
	MaxImageSize      int64
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	p := parser{v: v}
	cfg := &Config{
		Debug:       p.getBool("DEBUG"),
		CORSEnabled: p.getBool("CORS_ENABLED"),
		Server: ServerConfig{
			Host: v.GetString("HOST"),
			Port: v.GetString("PORT"),
		},
		Metrics: MetricsConfig{
			Host: v.GetString("METRICS_HOST"),
			Port: v.GetString("METRICS_PORT"),
		},
		Model: ModelConfig{
			Path:                v.GetString("MODEL_PATH"),
			MetadataPath:        v.GetString("MODEL_METADATA_PATH"),
			Name:                v.GetString("MODEL_NAME"),
			LibraryPath:         v.GetString("ONNX_LIBRARY_PATH"),
			ConfidenceThreshold: p.getFloat64("CONFIDENCE_THRESHOLD"),
			MaxResults:          p.getInt("MAX_RESULTS"),
		},
		Images: ImagesConfig{
			AllowedExtensions: ParseExtensions(v.GetString("ALLOWED_EXTENSIONS")),
			MaxImageSize:      p.getInt64("MAX_IMAGE_SIZE"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DEBUG", false)
	v.SetDefault("CORS_ENABLED", false)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8000")
	v.SetDefault("METRICS_HOST", "0.0.0.0")
	v.SetDefault("METRICS_PORT", "8001")
	v.SetDefault("MODEL_PATH", "./models/mobilenet_v2.onnx")
	v.SetDefault("MODEL_METADATA_PATH", "./models/mobilenet_v2.json")
	v.SetDefault("MODEL_NAME", "mobilenet_v2")
	v.SetDefault("ONNX_LIBRARY_PATH", "")
	v.SetDefault("CONFIDENCE_THRESHOLD", 0.5)
	v.SetDefault("MAX_RESULTS", 5)
	v.SetDefault("ALLOWED_EXTENSIONS", "jpg,jpeg,png")
	v.SetDefault("MAX_IMAGE_SIZE", 10*1024*1024) // 10MB
}

// parser reads typed values from viper and keeps the first conversion
// error. viper's typed getters return zero for malformed input.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s %q: %w", key, p.v.GetString(key), err)
	}
}

func (p *parser) getBool(key string) bool {
	b, err := cast.ToBoolE(p.v.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return b
}

func (p *parser) getInt(key string) int {
	n, err := cast.ToIntE(p.v.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) getInt64(key string) int64 {
	n, err := cast.ToInt64E(p.v.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *parser) getFloat64(key string) float64 {
	f, err := cast.ToFloat64E(p.v.Get(key))
	if err != nil {
		p.fail(key, err)
	}
	return f
}

// Validate rejects settings the classifier cannot work with.
func (c *Config) Validate() error {
	if c.Model.ConfidenceThreshold < 0 || c.Model.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0, 1], got %v", c.Model.ConfidenceThreshold)
	}
	if c.Model.MaxResults <= 0 {
		return fmt.Errorf("MAX_RESULTS must be positive, got %d", c.Model.MaxResults)
	}
	if c.Images.MaxImageSize <= 0 {
		return fmt.Errorf("MAX_IMAGE_SIZE must be positive, got %d", c.Images.MaxImageSize)
	}
	if len(c.Images.AllowedExtensions) == 0 {
		return errors.New("ALLOWED_EXTENSIONS must list at least one extension")
	}
	if c.Model.Name == "" {
		return errors.New("MODEL_NAME is required")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func (c *Config) MetricsAddr() string {
	return c.Metrics.Host + ":" + c.Metrics.Port
}

// ParseExtensions turns "JPG, .png,jpeg" into a sorted, de-duplicated list
// of lower-case extensions without the leading dot.
func ParseExtensions(raw string) []string {
	seen := make(map[string]struct{})
	var exts []string
	for _, part := range strings.Split(raw, ",") {
		ext := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(part), "."))
		if ext == "" {
			continue
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
