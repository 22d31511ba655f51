package rulegraph

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brunobiangulo/rulegraph/corpus"
	"github.com/brunobiangulo/rulegraph/export"
	"github.com/brunobiangulo/rulegraph/graph"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Sources, 3)
	assert.Equal(t, slog.LevelInfo, cfg.Level())

	opts, err := cfg.ExportOptions()
	require.NoError(t, err)
	assert.Equal(t, export.AllFormats, opts.Formats)
	assert.Equal(t, "output", opts.Dir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown system", func(c *Config) { c.Sources[0].System = "frcp" }},
		{"missing path", func(c *Config) { c.Sources[0].Path = "" }},
		{"unknown format", func(c *Config) { c.Formats = []string{"pdf"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }},
		{"negative top n", func(c *Config) { c.TopN = -1 }},
		{"mermaid limit", func(c *Config) { c.MermaidEdgeLimit = -2 }},
		{"similarity threshold", func(c *Config) { c.Builder.ContentSimilarityThreshold = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "rulegraph.yaml", `
sources:
  - system: ccp
    path: data/ccp.json
  - system: county
    path: /abs/county
tables_path: tables.yaml
formats: [cytoscape, report]
top_n: 5
log_level: debug
builder:
  max_category_fanout: 10
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, filepath.Join(dir, "data", "ccp.json"), cfg.Sources[0].Path)
	assert.Equal(t, "/abs/county", cfg.Sources[1].Path)
	assert.Equal(t, filepath.Join(dir, "tables.yaml"), cfg.TablesPath)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, 10, cfg.Builder.MaxCategoryFanout)
	// Unset fields keep their defaults.
	assert.Equal(t, export.DefaultBaseName, cfg.BaseName)
	assert.Equal(t, 25, cfg.Builder.SequentialGapThreshold)

	opts, err := cfg.ExportOptions()
	require.NoError(t, err)
	assert.Equal(t, []export.Format{export.FormatCytoscape, export.FormatReport}, opts.Formats)
}

func TestLoadConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFixture(t, dir, "rulegraph.json", `{"output_dir": "/tmp/out", "keep_builds": 3}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, 3, cfg.KeepBuilds)
	assert.Len(t, cfg.Sources, 3)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeFixture(t, dir, "bad.json", `{"top_n": "five"}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeFixture(t, dir, "invalid.yaml", "log_level: loud\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("RULEGRAPH_DB_PATH", "/tmp/rules.db")
	t.Setenv("RULEGRAPH_OUTPUT_DIR", "/tmp/graph")
	t.Setenv("RULEGRAPH_LOG_LEVEL", "WARN")
	t.Setenv("RULEGRAPH_FORMATS", "d3,graphml")
	t.Setenv("RULEGRAPH_TOP_N", "7")
	t.Setenv("RULEGRAPH_CRC_PATH", "/data/crc.json")

	cfg := DefaultConfig()
	cfg.Sources = []corpus.Source{{System: graph.SystemCCP, Path: "ccp.json"}}
	cfg.ApplyEnv()

	assert.Equal(t, "/tmp/rules.db", cfg.DBPath)
	assert.Equal(t, "/tmp/graph", cfg.OutputDir)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
	assert.Equal(t, []string{"d3", "graphml"}, cfg.Formats)
	assert.Equal(t, 7, cfg.TopN)
	assert.Equal(t, []corpus.Source{
		{System: graph.SystemCCP, Path: "ccp.json"},
		{System: graph.SystemCRC, Path: "/data/crc.json"},
	}, cfg.Sources)
	require.NoError(t, cfg.Validate())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TablesPath = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.LogLevel = "trace"
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
