package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/watermarker/internal/collect"
	"github.com/aliskhannn/watermarker/internal/config"
)

var listCmd = &cobra.Command{
	Use:   "list [paths...]",
	Short: "Print the logical paths a run would put into the archive",
	Long: `List walks the given files and directories exactly like "run" and prints
the archive path of every image found, without decoding anything.
Paths seen more than once are marked; only their first occurrence is used.`,
	RunE: runList,
}

var listNoRecurse bool

func init() {
	listCmd.Flags().BoolVar(&listNoRecurse, "no-recursive", false, "Do not descend into subdirectories")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg := config.MustLoad(configPath)
	setLogLevel(cfg.Log.Level)

	inputs, err := localInputs(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cmd.Flags().Changed("no-recursive") {
		cfg.Batch.NoRecurse = listNoRecurse
	}
	opts := collectOptions(cfg)
	seen := make(map[string]bool)
	out := cmd.OutOrStdout()

	emit := func(p string) {
		if seen[p] {
			fmt.Fprintf(out, "%s (duplicate, skipped)\n", p)
			return
		}
		seen[p] = true
		fmt.Fprintln(out, p)
	}

	for _, in := range inputs {
		if in.File != nil {
			res, err := collect.Collect(ctx, []collect.Entry{in}, opts)
			if err != nil {
				return err
			}
			for _, it := range res.Items {
				emit(it.Path)
			}
			continue
		}

		for item, err := range collect.Walk(ctx, in.Dir, opts) {
			if err != nil {
				zlog.Logger.Warn().Err(err).Msg("skipping unreadable entry")
				continue
			}
			emit(item.Path)
		}
	}

	return nil
}
