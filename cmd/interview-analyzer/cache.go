package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"interview-analyzer/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the result cache",
	}

	cacheCmd.AddCommand(newCacheListCommand(ctx))

	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached analyses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Cached analyses: none")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Key", "Model", "Created", "Rubric", "Summary"},
				cacheRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print entries as JSON")
	return cmd
}

const (
	keyPrefixLen  = 12
	summaryMaxLen = 60
	stampLayout   = "2006-01-02 15:04"
)

func cacheRows(entries []cache.KeyedEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		created := "unknown"
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.In(time.Local).Format(stampLayout)
		}
		rows = append(rows, []string{
			shorten(e.Key, keyPrefixLen),
			e.Model,
			created,
			strconv.Itoa(len(e.Analysis.Rubric)),
			shorten(strings.Join(strings.Fields(e.Analysis.OverallSummary), " "), summaryMaxLen),
		})
	}
	return rows
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
