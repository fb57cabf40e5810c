package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

var configPath string

// rootCmd is the main Cobra command for the watermarker CLI.
var rootCmd = &cobra.Command{
	Use:   "watermarker",
	Short: "Batch-apply a text watermark to images and pack them into one archive",
	Long: `Watermarker stamps a configurable text watermark on a set of images,
given as individual files or whole directory trees, and writes a single
zip archive that preserves their relative paths under "watermarked/".

Examples:
  watermarker run ./photos --text "© ACME" --position tile --rotation -30
  watermarker run a.png b.jpg --position bottom-right --opacity 0.6
  watermarker run --bucket-prefix uploads/2024 --upload
  watermarker list ./photos`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		zlog.Init()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yml", "Path to the YAML configuration file")

	rootCmd.AddCommand(runCmd, listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setLogLevel applies the configured level to the global zerolog logger.
func setLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
