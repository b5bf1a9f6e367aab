package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"glytrait/internal/meta"
	"glytrait/internal/postfilter"
	"glytrait/internal/preprocess"
)

type Config struct {
	Run struct {
		Mode          string  `yaml:"mode"` // structure or composition
		SiaLinkage    bool    `yaml:"sia_linkage"`
		FilterMaxNA   float64 `yaml:"filter_max_na"`
		ImputeMethod  string  `yaml:"impute_method"`
		PostFiltering bool    `yaml:"post_filtering"`
		CorrThreshold float64 `yaml:"corr_threshold"`
		CorrMethod    string  `yaml:"corr_method"`
	} `yaml:"run"`
	Paths struct {
		FormulaFile   string `yaml:"formula_file"`
		StructureFile string `yaml:"structure_file"`
		Database      string `yaml:"database"` // built-in library name
		GroupFile     string `yaml:"group_file"`
		OutputDir     string `yaml:"output_dir"`
		ArchiveDB     string `yaml:"archive_db"` // SQLite file for the run archive
	} `yaml:"paths"`
}

// Default returns the settings of a plain run without any config file.
func Default() *Config {
	cfg := &Config{}
	cfg.Run.Mode = "structure"
	cfg.Run.FilterMaxNA = 1.0
	cfg.Run.ImputeMethod = "zero"
	cfg.Run.PostFiltering = true
	cfg.Run.CorrThreshold = 1.0
	cfg.Run.CorrMethod = "pearson"
	return cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Start from the defaults, then layer the YAML config on top
	cfg := Default()
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if mode := os.Getenv("GLYTRAIT_MODE"); mode != "" {
		cfg.Run.Mode = mode
	}
	if db := os.Getenv("GLYTRAIT_DATABASE"); db != "" {
		cfg.Paths.Database = db
	}
	if archive := os.Getenv("GLYTRAIT_ARCHIVE_DB"); archive != "" {
		cfg.Paths.ArchiveDB = archive
	}
	if out := os.Getenv("GLYTRAIT_OUTPUT_DIR"); out != "" {
		cfg.Paths.OutputDir = out
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every enumerated setting and numeric range.
func (c *Config) Validate() error {
	if _, err := meta.ParseMode(c.Run.Mode); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := preprocess.ParseImputeMethod(c.Run.ImputeMethod); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := postfilter.ParseMethod(c.Run.CorrMethod); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Run.FilterMaxNA < 0 || c.Run.FilterMaxNA > 1 {
		return fmt.Errorf("config: filter_max_na must be within [0, 1], got %v", c.Run.FilterMaxNA)
	}
	if c.Run.CorrThreshold > 1 {
		return fmt.Errorf("config: corr_threshold must not exceed 1, got %v", c.Run.CorrThreshold)
	}
	return nil
}
