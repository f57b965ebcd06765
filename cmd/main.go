package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"protpred/internal/config"
	"protpred/internal/model"
	"protpred/internal/predict"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// version is the program version. It can be overridden at build time with -ldflags "-X main.version=..."
var version = "0.1.0"

// timestampWriter prefixes each flushed line with an RFC3339 timestamp.
type timestampWriter struct {
	w   io.Writer
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write buffers bytes until a newline is found; for each full line, write a timestamped
// line to the underlying writer. Partial lines are kept in the buffer.
func (t *timestampWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, _ := t.buf.Write(p)
	total := n
	for {
		line, err := t.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next write
			t.buf.Reset()
			t.buf.WriteString(line)
			break
		}
		ts := time.Now().Format(time.RFC3339)
		if _, err := t.w.Write([]byte(ts + " " + line)); err != nil {
			return total, err
		}
	}
	return total, nil
}

// terminalWriter wraps an io.Writer and exposes an Fd method so libraries that
// inspect the file descriptor (for TTY detection) can work with wrapped writers.
type terminalWriter struct {
	w  io.Writer
	fd uintptr
}

func (tw *terminalWriter) Write(p []byte) (int, error) { return tw.w.Write(p) }

// Fd exposes the underlying file descriptor (e.g., os.Stderr.Fd()).
func (tw *terminalWriter) Fd() uintptr { return tw.fd }

// newLogger builds the process logger. It must run before models are loaded
// so every later component logs at the configured level.
func newLogger(cfg *config.Config, stderr *os.File) (*log.Logger, func(), error) {
	var out io.Writer = stderr
	cleanup := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, cleanup, fmt.Errorf("open log file: %w", err)
		}
		// write to both stderr and file so running interactively still shows logs
		out = io.MultiWriter(stderr, &timestampWriter{w: f})
		cleanup = func() { _ = f.Close() }
	}
	logger := log.New(&terminalWriter{w: out, fd: stderr.Fd()})
	logger.SetReportTimestamp(true)

	if cfg.Verbose {
		logger.SetLevel(log.DebugLevel)
		return logger, cleanup, nil
	}
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info", "":
		logger.SetLevel(log.InfoLevel)
	case "warn", "warning":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
		logger.Warn("unknown log_level in config, defaulting to info", "provided", cfg.LogLevel)
	}
	return logger, cleanup, nil
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	var configPath string

	cmd := &cobra.Command{
		Use:   "protpred",
		Short: "Score protein FASTA files with an ensemble of fragment classifiers",
		Long: `protpred splits every sequence into overlapping windows, scores each
window with every model found in the models directory, keeps the best window
per sequence and writes one tab-separated table per model.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(v, configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to a config file (toml, yaml or json)")
	flags.String("fasta_path", "", "path to FASTA file or directory")
	flags.String("output_path", "", "output path for prediction results")
	flags.Bool("multi", false, "process every matching FASTA file in the fasta_path directory")
	flags.Int("chunk_size", config.DefaultChunkSize, "number of sequences to process in a single chunk; lower in case of memory issues")
	flags.String("models_dir", config.DefaultModelsDir, "directory holding the model artifacts")
	flags.String("pattern", config.DefaultPattern, "glob selecting input files with --multi")
	flags.String("log_file", "", "also write logs to this file")
	flags.String("log_level", "info", "log level: debug, info, warn or error")
	flags.BoolP("verbose", "v", false, "enable verbose (debug) logging")
	flags.Bool("progress", false, "show a progress bar on stderr")
	_ = v.BindPFlags(flags)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "protpred", version)
		},
	})
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, closeLog, err := newLogger(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = logger.With("run_id", uuid.NewString())

	logger.Info("starting prediction", "output_path", cfg.OutputPath, "version", version)
	logger.Debug("loaded config",
		"fasta_path", cfg.FastaPath,
		"multi", cfg.Multi,
		"pattern", cfg.Pattern,
		"chunk_size", cfg.ChunkSize,
		"models_dir", cfg.ModelsDir,
		"seq_cutoff", cfg.SeqCutoff,
		"annotation_width", cfg.AnnotationWidth)

	paths, err := predict.InputFiles(cfg.FastaPath, cfg.Multi, cfg.Pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		logger.Warn("no input files matched", "dir", cfg.FastaPath, "pattern", cfg.Pattern)
		return nil
	}

	models, err := model.LoadDir(cfg.ModelsDir, logger)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return fmt.Errorf("%w in %s", predict.ErrNoModels, cfg.ModelsDir)
	}
	logger.Info("loaded models", "count", len(models), "dir", cfg.ModelsDir)

	ens := model.NewEnsemble(models, cfg.ModelName, cfg.AnnotationWidth)
	p := predict.New(ens, predict.Options{
		OutputDir: cfg.OutputPath,
		ChunkSize: cfg.ChunkSize,
		SeqCutoff: cfg.SeqCutoff,
		Separator: cfg.Sep(),
	}, logger)

	if cfg.Progress {
		progress := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar := progress.AddBar(int64(len(paths)),
			mpb.PrependDecorators(
				decor.Name("files: ", decor.WC{W: len("files: "), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("elapsed: ", decor.WC{W: len("elapsed: ")}),
				decor.Elapsed(decor.ET_STYLE_GO),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
		seqs := progress.AddBar(0,
			mpb.BarRemoveOnComplete(),
			mpb.PrependDecorators(decor.Name("sequences: ", decor.WC{W: len("sequences: "), C: decor.DindentRight})),
			mpb.AppendDecorators(decor.CurrentNoUnit("%d")),
		)
		var lastFile string
		p.OnChunk = func(cs predict.ChunkStats) {
			if lastFile != "" && cs.File != lastFile {
				bar.Increment()
			}
			lastFile = cs.File
			seqs.IncrBy(cs.Sequences)
		}
		defer func() {
			bar.SetCurrent(int64(len(paths)))
			seqs.SetTotal(-1, true)
			progress.Wait()
		}()
	}

	stats, err := p.Run(ctx, paths)
	if err != nil {
		return err
	}
	total := predict.Summary(stats)
	logger.Info("prediction completed",
		"files", len(stats),
		"sequences", total.Sequences,
		"fragments", total.Fragments,
		"elapsed", total.Elapsed.Round(time.Millisecond))
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error("protpred failed", "err", err)
		stop()
		os.Exit(1)
	}
}
