package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"parbi/classify"
	qhttp "parbi/http"
	"parbi/logging"
	"parbi/resources"
)

const (
	envConfig   = "PARBI_CONFIG"
	envHTTPPort = "PARBI_HTTP_PORT"
)

type ModelsConfig struct {
	Dir string `yaml:"dir"`
	// Paths overrides the artifact of individual models, keyed by model name.
	Paths     map[string]string `yaml:"paths"`
	Cache     *bool             `yaml:"cache"`
	CacheSize int               `yaml:"cache_size"`
	Watch     bool              `yaml:"watch"`
}

type HistoryConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	HTTP      qhttp.ServerConfig `yaml:"http"`
	Resources resources.Config   `yaml:"resources"`
	Models    ModelsConfig       `yaml:"models"`
	History   HistoryConfig      `yaml:"history"`
	Log       logging.Config     `yaml:"log"`
}

// configPath loads an optional .env file and returns the config file to use.
func configPath(envFile string) (string, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("load %s: %w", envFile, err)
	}
	if p := os.Getenv(envConfig); p != "" {
		return p, nil
	}
	return "config.yaml", nil
}

func loadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv(envHTTPPort); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return fmt.Errorf("%s: invalid port %q", envHTTPPort, port)
		}
		c.HTTP.Port = n
	}
	return nil
}

func (c *Config) applyDefaults() {
	defaults := qhttp.DefaultServerConfig()
	if c.HTTP.Port == 0 {
		c.HTTP.Port = defaults.Port
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = defaults.ReadTimeout
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = defaults.WriteTimeout
	}
	if c.HTTP.RequestTimeout == 0 {
		c.HTTP.RequestTimeout = defaults.RequestTimeout
	}
	if c.HTTP.MaxBodyBytes == 0 {
		c.HTTP.MaxBodyBytes = defaults.MaxBodyBytes
	}
	if c.Models.Dir == "" {
		c.Models.Dir = "resources"
	}
	if c.Resources.Vectorizer == "" {
		c.Resources.Vectorizer = filepath.Join(c.Models.Dir, "count_vect.json")
	}
	if c.Resources.Dataset == "" {
		c.Resources.Dataset = "resources/train.csv"
	}
	if c.Resources.ImagesDir == "" {
		c.Resources.ImagesDir = "resources/imgs"
	}
	if c.Models.Cache == nil {
		enabled := true
		c.Models.Cache = &enabled
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// ModelPaths resolves the artifact of every model choice.
func (c *Config) ModelPaths() (map[classify.ModelChoice]string, error) {
	paths := classify.DefaultPaths(c.Models.Dir)
	for name, path := range c.Models.Paths {
		choice, err := classify.ParseModelChoice(name)
		if err != nil {
			return nil, fmt.Errorf("models.paths: %w", err)
		}
		paths[choice] = path
	}
	return paths, nil
}

func (c *Config) CacheOptions() classify.CacheOptions {
	return classify.CacheOptions{
		Enabled: c.Models.Cache != nil && *c.Models.Cache,
		Size:    c.Models.CacheSize,
		Watch:   c.Models.Watch,
	}
}
