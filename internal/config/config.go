package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"rxplan/internal/pipeline"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override of a pipeline setting,
// e.g. RXPLAN_FORECASTING_HORIZON_DAYS.
const EnvPrefix = "RXPLAN"

// AppConfig holds the process-level settings of the CLI.
type AppConfig struct {
	DataPath           string
	LogDir             string
	HistoryDir         string
	OutputDir          string
	PipelineConfigPath string
	SourceID           string
	EnableMetrics      bool
	MetricsFile        string
	// EnableMermaidCharts writes a Markdown chart report next to the run output.
	EnableMermaidCharts bool
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. The binary directory wins, then the working directory
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables")
	}

	// 2. Resolve data paths
	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	cfg := &AppConfig{
		DataPath:           dataPath,
		LogDir:             getEnv("LOGS_FOLDER", filepath.Join(dataPath, "logs")),
		HistoryDir:         filepath.Join(dataPath, "history"),
		OutputDir:          getEnv("OUTPUT_FOLDER", filepath.Join(dataPath, "output")),
		PipelineConfigPath: getEnv("RXPLAN_PIPELINE_CONFIG", ""),
		SourceID:           getEnv("RXPLAN_SOURCE_ID", "default"),
		EnableMetrics:      getEnvBool("ENABLE_METRICS", false),

		EnableMermaidCharts: getEnvBool("ENABLE_MERMAID_CHARTS", false),
	}
	cfg.MetricsFile = getEnv("METRICS_FILE", filepath.Join(cfg.OutputDir, "rxplan.prom"))

	for _, dir := range []string{cfg.HistoryDir, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}

	return cfg, nil
}

// LoadPipeline layers an optional YAML, TOML or JSON file and RXPLAN_* environment
// variables over the pipeline defaults, then validates the result.
func LoadPipeline(path string) (pipeline.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Seeding with the defaults registers every key, so env overrides resolve
	defaults, err := json.Marshal(pipeline.DefaultConfig())
	if err != nil {
		return pipeline.Config{}, fmt.Errorf("failed to encode default pipeline config: %w", err)
	}
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return pipeline.Config{}, fmt.Errorf("failed to seed pipeline defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
			v.SetConfigType(ext)
		}
		if err := v.MergeInConfig(); err != nil {
			return pipeline.Config{}, fmt.Errorf("failed to read pipeline config %s: %w", path, err)
		}
		log.Debug().Str("path", path).Msg("Loaded pipeline configuration")
	}

	// Viper already holds the defaults. Decoding into a zero value keeps a shortened list
	// from inheriting the tail of the default one.
	var cfg pipeline.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return pipeline.Config{}, fmt.Errorf("failed to decode pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return fallback
}
