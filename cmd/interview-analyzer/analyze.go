package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"interview-analyzer/internal/pipeline"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var modelFlag string

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyze one recording and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.ensure()
			if err != nil {
				return err
			}

			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			prompt, err := a.prompts.Load()
			if err != nil {
				return err
			}
			model := strings.TrimSpace(modelFlag)
			if model == "" {
				if model, err = a.models.Load(); err != nil {
					return err
				}
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()

			resp, err := a.pipeline.Run(cmd.Context(), pipeline.Upload{
				Filename: filepath.Base(args[0]),
				Body:     f,
			}, prompt.Evaluation(model))
			if err != nil {
				return fmt.Errorf("%s error: %w", pipeline.KindOf(err), err)
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVar(&modelFlag, "model", "", "Override the saved model selection")
	return cmd
}

// printJSON indents for terminals and writes one compact line otherwise.
func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	if isTerminal(out) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
