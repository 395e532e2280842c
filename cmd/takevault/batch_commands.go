package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"takevault/internal/batchstore"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch's lines and takes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := batchstore.NewStore(nil)
			batchDir, err := store.LocateBatch(cfg.Paths.LibraryDir, args[0])
			if err != nil {
				return err
			}
			doc, err := store.LoadMetadata(batchDir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			status := batchstore.StatusOpen
			if store.IsLocked(batchDir) {
				status = batchstore.StatusLocked
			}
			fmt.Fprintf(out, "Batch:  %s\n", doc.BatchID)
			fmt.Fprintf(out, "Skin:   %s\n", displayName(doc.SkinName))
			fmt.Fprintf(out, "Voice:  %s\n", displayName(doc.VoiceName))
			fmt.Fprintf(out, "Status: %s\n", colorizeStatus(status, shouldColorize(out)))
			fmt.Fprintf(out, "Path:   %s\n\n", batchDir)

			rows := make([][]string, 0, len(doc.Takes))
			for _, line := range doc.Lines() {
				for _, take := range doc.TakesForLine(line) {
					rank := ""
					if take.Rank != nil {
						rank = fmt.Sprintf("%02d", *take.Rank)
					}
					rows = append(rows, []string{
						line,
						fmt.Sprintf("%d", take.TakeNumber),
						take.File,
						rank,
					})
				}
			}
			headers := []string{"Line", "Take", "File", "Rank"}
			aligns := []columnAlignment{alignLeft, alignRight, alignLeft, alignRight}
			fmt.Fprintln(out, renderTable(headers, rows, aligns))
			return nil
		},
	}
}

func newRebuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <batch-id>",
		Short: "Rebuild the ranked tree from batch metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := batchstore.NewStore(nil)
			batchDir, err := store.LocateBatch(cfg.Paths.LibraryDir, args[0])
			if err != nil {
				return err
			}
			doc, err := store.LoadMetadata(batchDir)
			if err != nil {
				return err
			}
			if err := store.RebuildRankedTree(batchDir, doc); err != nil {
				return err
			}

			ranked := 0
			ranks := map[int]int{}
			for _, take := range doc.Takes {
				if take.Rank != nil {
					ranked++
					ranks[*take.Rank]++
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Rebuilt ranked tree for %s (%d ranked takes)\n", doc.BatchID, ranked)
			for _, rank := range sortedRanks(ranks) {
				fmt.Fprintf(out, "  %02d: %d\n", rank, ranks[rank])
			}
			return nil
		},
	}
}

func newLockCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lock <batch-id>",
		Short: "Mark a batch as finalized",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			store := batchstore.NewStore(nil)
			batchDir, err := store.LocateBatch(cfg.Paths.LibraryDir, args[0])
			if err != nil {
				return err
			}
			if err := store.LockBatch(batchDir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Locked %s\n", batchDir)
			return nil
		},
	}
}

func sortedRanks(ranks map[int]int) []int {
	keys := make([]int, 0, len(ranks))
	for rank := range ranks {
		keys = append(keys, rank)
	}
	sort.Ints(keys)
	return keys
}
