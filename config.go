package rulegraph

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/brunobiangulo/rulegraph/builder"
	"github.com/brunobiangulo/rulegraph/corpus"
	"github.com/brunobiangulo/rulegraph/export"
	"github.com/brunobiangulo/rulegraph/graph"
	"github.com/brunobiangulo/rulegraph/taxonomy"
)

// Config holds all configuration for the rule graph engine.
type Config struct {
	// Sources lists the extraction files or PDF directories per system.
	Sources []corpus.Source `json:"sources" yaml:"sources" validate:"dive"`

	// TablesPath points at a YAML taxonomy. Empty uses the embedded
	// defaults.
	TablesPath string `json:"tables_path" yaml:"tables_path"`

	// Builder tunes mining and linking.
	Builder builder.Options `json:"builder" yaml:"builder"`

	// DBPath is the SQLite snapshot database. Empty disables snapshots.
	DBPath string `json:"db_path" yaml:"db_path"`

	// KeepBuilds prunes older snapshots after each save. Zero keeps all.
	KeepBuilds int `json:"keep_builds" yaml:"keep_builds" validate:"min=0"`

	// Output
	OutputDir        string   `json:"output_dir" yaml:"output_dir"`
	BaseName         string   `json:"base_name" yaml:"base_name"`
	Formats          []string `json:"formats" yaml:"formats" validate:"dive,oneof=all cytoscape d3 graphml mermaid html xlsx sqlite index report"`
	MermaidEdgeLimit int      `json:"mermaid_edge_limit" yaml:"mermaid_edge_limit" validate:"min=-1"`

	// TopN is the number of central rules reported.
	TopN int `json:"top_n" yaml:"top_n" validate:"min=0"`

	LogLevel string `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
}

// DefaultConfig returns a Config that reads the three extraction files
// from the working directory and writes every format to ./output.
func DefaultConfig() Config {
	return Config{
		Sources: []corpus.Source{
			{System: graph.SystemCCP, Path: "ccp_extraction_results.json"},
			{System: graph.SystemCRC, Path: "crc_extraction_results.json"},
			{System: graph.SystemCounty, Path: "county_extraction_results.json"},
		},
		Builder:          builder.DefaultOptions(),
		OutputDir:        "output",
		BaseName:         export.DefaultBaseName,
		Formats:          []string{"all"},
		MermaidEdgeLimit: export.DefaultMermaidEdgeLimit,
		TopN:             graph.DefaultTopN,
		LogLevel:         "info",
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// LoadConfig reads a YAML (.yaml, .yml) or JSON config file over the
// defaults. Relative source and table paths resolve against the file's
// directory.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	for i := range cfg.Sources {
		cfg.Sources[i].Path = resolvePath(dir, cfg.Sources[i].Path)
	}
	cfg.TablesPath = resolvePath(dir, cfg.TablesPath)
	return cfg, cfg.Validate()
}

func resolvePath(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

// ApplyEnv overrides fields from RULEGRAPH_* environment variables.
// RULEGRAPH_<SYSTEM>_PATH replaces that system's source.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("RULEGRAPH_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("RULEGRAPH_TABLES_PATH"); v != "" {
		c.TablesPath = v
	}
	if v := os.Getenv("RULEGRAPH_OUTPUT_DIR"); v != "" {
		c.OutputDir = v
	}
	if v := os.Getenv("RULEGRAPH_LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("RULEGRAPH_FORMATS"); v != "" {
		c.Formats = strings.Split(v, ",")
	}
	if v := os.Getenv("RULEGRAPH_TOP_N"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.TopN = n
		} else {
			slog.Warn("config: ignoring RULEGRAPH_TOP_N", "value", v, "error", err)
		}
	}
	for _, sys := range graph.Systems {
		key := "RULEGRAPH_" + strings.ToUpper(string(sys)) + "_PATH"
		if v := os.Getenv(key); v != "" {
			c.SetSource(sys, v)
		}
	}
}

// SetSource replaces the source for sys, or appends one.
func (c *Config) SetSource(sys graph.System, path string) {
	for i := range c.Sources {
		if c.Sources[i].System == sys {
			c.Sources[i].Path = path
			return
		}
	}
	c.Sources = append(c.Sources, corpus.Source{System: sys, Path: path})
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExportOptions returns the serialization options named by the config.
func (c Config) ExportOptions() (export.Options, error) {
	formats, err := export.ParseFormats(c.Formats)
	if err != nil {
		return export.Options{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return export.Options{
		Dir:              c.OutputDir,
		BaseName:         c.BaseName,
		Formats:          formats,
		MermaidEdgeLimit: c.MermaidEdgeLimit,
		TopN:             c.TopN,
	}, nil
}

func (c Config) taxonomy() (*taxonomy.Taxonomy, error) {
	if c.TablesPath == "" {
		return taxonomy.Default()
	}
	tx, err := taxonomy.Load(c.TablesPath)
	if err != nil {
		return nil, fmt.Errorf("loading tables: %w", err)
	}
	return tx, nil
}
