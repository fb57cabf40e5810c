package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermarker/internal/batch"
	"github.com/aliskhannn/watermarker/internal/collect"
	"github.com/aliskhannn/watermarker/internal/config"
	"github.com/aliskhannn/watermarker/internal/kafka/producer"
	"github.com/aliskhannn/watermarker/internal/model"
	"github.com/aliskhannn/watermarker/internal/processor"
	"github.com/aliskhannn/watermarker/internal/storage/file"
)

// Flags of the run command. Unset flags fall back to the configuration.
var (
	textFlag         string
	colorFlag        string
	opacityFlag      float64
	fontSizeFlag     int
	positionFlag     string
	rotationFlag     float64
	fontFlag         string
	shadowFlag       bool
	workersFlag      int
	policyFlag       string
	outFlag          string
	uploadFlag       bool
	bucketPrefixFlag string
	noRecurseFlag    bool
)

var runCmd = &cobra.Command{
	Use:   "run [paths...]",
	Short: "Watermark files and directories into a single zip archive",
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&textFlag, "text", "t", "", "Watermark text")
	f.StringVar(&colorFlag, "color", "", "Text color as hex RGB, e.g. #ffffff")
	f.Float64Var(&opacityFlag, "opacity", 0, "Text opacity between 0 and 1")
	f.IntVar(&fontSizeFlag, "font-size", 0, "Font size in pixels (0 = 5% of the image width)")
	f.StringVarP(&positionFlag, "position", "p", "", "Layout: tile, center, top-left or bottom-right")
	f.Float64VarP(&rotationFlag, "rotation", "r", 0, "Text rotation in degrees (-90..90)")
	f.StringVar(&fontFlag, "font", "", "Path to a TTF font file")
	f.BoolVar(&shadowFlag, "shadow", false, "Draw a dark shadow under the text")
	f.IntVarP(&workersFlag, "workers", "w", 0, "Images processed in parallel (0 = from CPU count)")
	f.StringVar(&policyFlag, "policy", "", "Failure policy: best-effort or fail-fast")
	f.StringVarP(&outFlag, "out", "o", "", "Directory the archive is written to")
	f.BoolVar(&uploadFlag, "upload", false, "Upload the archive to the configured bucket")
	f.StringVar(&bucketPrefixFlag, "bucket-prefix", "", "Also collect images under this bucket prefix")
	f.BoolVar(&noRecurseFlag, "no-recursive", false, "Do not descend into subdirectories")
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	wm := &cfg.Watermark

	if f.Changed("text") {
		wm.Text = textFlag
	}
	if f.Changed("color") {
		wm.Color = colorFlag
	}
	if f.Changed("opacity") {
		wm.Opacity = opacityFlag
	}
	if f.Changed("font-size") {
		wm.FontSize = fontSizeFlag
	}
	if f.Changed("position") {
		wm.Position = positionFlag
	}
	if f.Changed("rotation") {
		wm.Rotation = rotationFlag
	}
	if f.Changed("font") {
		wm.FontPath = fontFlag
	}
	if f.Changed("shadow") {
		wm.Shadow = shadowFlag
	}
	if f.Changed("workers") {
		cfg.Batch.Workers = workersFlag
	}
	if f.Changed("policy") {
		cfg.Batch.Policy = policyFlag
	}
	if f.Changed("out") {
		cfg.Batch.OutputDir = outFlag
	}
	if f.Changed("no-recursive") {
		cfg.Batch.NoRecurse = noRecurseFlag
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	// Context & signals: SIGINT/SIGTERM cancel the run; in-flight images finish.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.MustLoad(configPath)
	setLogLevel(cfg.Log.Level)
	applyFlags(cmd, cfg)

	wm, err := cfg.Watermark.Model()
	if err != nil {
		return err
	}
	policy, err := batch.ParsePolicy(cfg.Batch.Policy)
	if err != nil {
		return err
	}

	inputs, err := localInputs(args)
	if err != nil {
		return err
	}

	var storage *file.Storage
	if uploadFlag || bucketPrefixFlag != "" || cfg.Storage.Enabled {
		storage, err = openStorage(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to storage: %w", err)
		}
	}
	if bucketPrefixFlag != "" {
		inputs = append(inputs, collect.DirEntry(storage.Dir(bucketPrefixFlag)))
	}

	collected, err := collect.Collect(ctx, inputs, collectOptions(cfg))
	if err != nil {
		return err
	}

	proc := processor.New(processor.NewRenderer())
	orch := batch.New(proc, batch.Options{
		Workers:          cfg.Batch.Workers,
		Policy:           policy,
		ArchiveRoot:      cfg.Batch.ArchiveRoot,
		CompressionLevel: cfg.Batch.CompressionLevel,
	})

	unsubscribe := orch.Subscribe(logProgress)
	defer unsubscribe()

	// Optional Kafka progress events.
	if cfg.Kafka.Enabled() {
		p := producer.New(&cfg.Kafka, retryStrategy(cfg.Retry))
		defer func() {
			if err := p.Close(); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to close kafka producer")
			}
		}()
		// Publishing must outlive a cancelled run so the final state is sent.
		unsubscribeKafka := orch.Subscribe(p.Observer(context.WithoutCancel(ctx)))
		defer unsubscribeKafka()
	}

	result, runErr := orch.Run(ctx, collected.Items, wm)
	if result != nil {
		result.Report.Duplicates = collected.Duplicates
		result.Report.Failed = append(collected.Failures, result.Report.Failed...)
	}

	if runErr != nil {
		if result != nil {
			fmt.Fprintln(os.Stderr, result.Report.Summary())
		}
		if errors.Is(runErr, model.ErrCancelled) {
			return fmt.Errorf("run cancelled, no archive written: %w", runErr)
		}
		return runErr
	}

	if result.NoOp {
		zlog.Logger.Info().Int("collection_failures", len(collected.Failures)).Msg("no images found, nothing to do")
		return nil
	}

	dst, err := writeArchive(cfg.Batch.OutputDir, result)
	if err != nil {
		return err
	}
	zlog.Logger.Info().Str("path", dst).Msg("archive written")

	if uploadFlag {
		key, err := storage.Save(ctx, "archives", result.Filename, "application/zip",
			bytes.NewReader(result.Archive), int64(len(result.Archive)))
		if err != nil {
			return fmt.Errorf("failed to upload archive: %w", err)
		}
		zlog.Logger.Info().Str("key", key).Msg("archive uploaded")
	}

	if len(result.Report.Failed) > 0 {
		fmt.Fprintf(os.Stderr, "partial archive: %s\n", result.Report.Summary())
	} else {
		fmt.Println(result.Report.Summary())
	}
	for _, d := range result.Report.Duplicates {
		fmt.Fprintf(os.Stderr, "  duplicate path skipped (first occurrence kept): %s\n", d)
	}

	return nil
}

func collectOptions(cfg *config.Config) collect.Options {
	return collect.Options{
		IncludeHidden: cfg.Batch.IncludeHidden,
		NoRecurse:     cfg.Batch.NoRecurse,
	}
}

func writeArchive(dir string, result *batch.Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	dst := filepath.Join(dir, result.Filename)
	if err := os.WriteFile(dst, result.Archive, 0o644); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	return dst, nil
}

// logProgress is the console progress observer.
func logProgress(p model.Progress) {
	zlog.Logger.Info().
		Str("run_id", p.RunID).
		Str("state", string(p.State)).
		Int("completed", p.Completed).
		Int("failed", p.Failed).
		Int("total", p.Total).
		Msgf("progress %s", p)
}
