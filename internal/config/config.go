// Package config holds run settings merged from defaults, an optional config
// file, PROTPRED_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. PROTPRED_CHUNK_SIZE.
const EnvPrefix = "PROTPRED"

// Defaults matching the trained models.
const (
	DefaultChunkSize       = 100
	DefaultSeqCutoff       = 40
	DefaultAnnotationWidth = 8943
	DefaultModelName       = "ProteinBERT"
	DefaultModelsDir       = "models"
	DefaultPattern         = "*.fa"
	DefaultSeparator       = "\t"
)

type Config struct {
	FastaPath  string `mapstructure:"fasta_path"`
	OutputPath string `mapstructure:"output_path"`
	Multi      bool   `mapstructure:"multi"`
	Pattern    string `mapstructure:"pattern"`
	ChunkSize  int    `mapstructure:"chunk_size"`

	ModelsDir       string `mapstructure:"models_dir"`
	ModelName       string `mapstructure:"model_name"`
	SeqCutoff       int    `mapstructure:"seq_cutoff"`
	AnnotationWidth int    `mapstructure:"annotation_width"`
	Separator       string `mapstructure:"separator"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
	Verbose  bool   `mapstructure:"verbose"`
	Progress bool   `mapstructure:"progress"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("seq_cutoff", DefaultSeqCutoff)
	v.SetDefault("annotation_width", DefaultAnnotationWidth)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("models_dir", DefaultModelsDir)
	v.SetDefault("pattern", DefaultPattern)
	v.SetDefault("separator", DefaultSeparator)
	v.SetDefault("log_level", "info")
}

// LoadConfig reads the config file at path into v and decodes the merged
// settings. With an empty path it looks for protpred.{toml,yaml,json} in the
// working directory; a missing file is not an error in that case.
func LoadConfig(v *viper.Viper, path string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("protpred")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &c, nil
}

// Sep returns the output separator as a rune. "\t" written with a literal
// backslash is accepted.
func (c *Config) Sep() rune {
	s := c.Separator
	if s == `\t` {
		s = "\t"
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.FastaPath == "":
		return errors.New("fasta_path is required")
	case c.OutputPath == "":
		return errors.New("output_path is required")
	case c.ChunkSize < 1:
		return fmt.Errorf("chunk_size must be >= 1, got %d", c.ChunkSize)
	case c.SeqCutoff < 1:
		return fmt.Errorf("seq_cutoff must be >= 1, got %d", c.SeqCutoff)
	case c.AnnotationWidth < 0:
		return fmt.Errorf("annotation_width must be >= 0, got %d", c.AnnotationWidth)
	case c.Multi && c.Pattern == "":
		return errors.New("pattern is required with multi")
	}
	sep := c.Separator
	if sep == `\t` {
		sep = "\t"
	}
	if utf8.RuneCountInString(sep) != 1 {
		return fmt.Errorf("separator must be a single character, got %q", c.Separator)
	}
	return nil
}
