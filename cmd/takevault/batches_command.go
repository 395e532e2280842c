package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"takevault/internal/batchstore"
)

func newBatchesCommand(ctx *commandContext) *cobra.Command {
	var skinFilter string
	var voiceFilter string

	cmd := &cobra.Command{
		Use:   "batches",
		Short: "List take batches in the library",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := batchstore.NewStore(nil)
			summaries, err := store.ListBatches(cfg.Paths.LibraryDir)
			if err != nil {
				return err
			}
			summaries = filterSummaries(summaries, skinFilter, voiceFilter)
			sort.Slice(summaries, func(i, j int) bool {
				return summaries[i].CreatedAtSortKey > summaries[j].CreatedAtSortKey
			})

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No batches found")
				return nil
			}

			colorize := shouldColorize(out)
			rows := make([][]string, 0, len(summaries))
			for _, s := range summaries {
				rows = append(rows, []string{
					s.BatchID,
					displayName(s.Skin),
					displayName(s.Voice),
					strconv.Itoa(s.NumLines),
					strconv.Itoa(s.TakesPerLine),
					strconv.Itoa(s.NumTakes),
					s.CreatedAt,
					colorizeStatus(s.Status, colorize),
				})
			}
			headers := []string{"Batch ID", "Skin", "Voice", "Lines", "Takes/Line", "Takes", "Created", "Status"}
			aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}

	cmd.Flags().StringVar(&skinFilter, "skin", "", "Only list batches for this skin")
	cmd.Flags().StringVar(&voiceFilter, "voice", "", "Only list batches for this voice")
	return cmd
}

func filterSummaries(summaries []batchstore.Summary, skin, voice string) []batchstore.Summary {
	if skin == "" && voice == "" {
		return summaries
	}
	filtered := summaries[:0]
	for _, s := range summaries {
		if skin != "" && s.Skin != skin {
			continue
		}
		if voice != "" && s.Voice != voice {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}
