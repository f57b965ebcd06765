package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(viper.New(), "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.ChunkSize != 100 || c.SeqCutoff != 40 || c.AnnotationWidth != 8943 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.ModelName != "ProteinBERT" || c.Pattern != "*.fa" || c.Sep() != '\t' {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.toml")
	body := "chunk_size = 7\nmodels_dir = \"/srv/models\"\nseparator = \",\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PROTPRED_SEQ_CUTOFF", "30")

	c, err := LoadConfig(viper.New(), path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.ChunkSize != 7 || c.ModelsDir != "/srv/models" || c.Sep() != ',' {
		t.Fatalf("config file not applied: %+v", c)
	}
	if c.SeqCutoff != 30 {
		t.Fatalf("env override not applied: seq_cutoff = %d", c.SeqCutoff)
	}
}

func TestLoadConfigExplicitMissingFile(t *testing.T) {
	if _, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatalf("expected error for explicit missing config file")
	}
}

func TestOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("chunk_size: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.Set("chunk_size", 3)
	c, err := LoadConfig(v, path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.ChunkSize != 3 {
		t.Fatalf("chunk_size = %d, want 3", c.ChunkSize)
	}
}

func TestValidate(t *testing.T) {
	base := Config{FastaPath: "in.fa", OutputPath: "out", ChunkSize: 1, SeqCutoff: 40, Separator: "\t", Pattern: "*.fa"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cases := map[string]func(c *Config){
		"no input":    func(c *Config) { c.FastaPath = "" },
		"no output":   func(c *Config) { c.OutputPath = "" },
		"zero chunk":  func(c *Config) { c.ChunkSize = 0 },
		"zero cutoff": func(c *Config) { c.SeqCutoff = 0 },
		"long sep":    func(c *Config) { c.Separator = "::" },
		"empty sep":   func(c *Config) { c.Separator = "" },
		"multi glob":  func(c *Config) { c.Multi = true; c.Pattern = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSepEscapedTab(t *testing.T) {
	c := Config{Separator: `\t`}
	if c.Sep() != '\t' {
		t.Fatalf("Sep = %q", c.Sep())
	}
}
