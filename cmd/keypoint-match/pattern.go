package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ironsheep/keypoint-match/internal/brief"
	"github.com/ironsheep/keypoint-match/internal/pipeline"
)

func newPatternCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pattern",
		Short: "Generate or inspect BRIEF test patterns",
	}
	cmd.AddCommand(newPatternGenerateCmd(), newPatternInfoCmd(root))
	return cmd
}

func newPatternGenerateCmd() *cobra.Command {
	var (
		bits  int
		patch int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "generate FILE",
		Short: "Write a random test pattern in the text pattern format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := brief.GeneratePattern(bits, patch, seed)
			if err != nil {
				return err
			}
			if err := brief.SavePattern(p, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d pairs (radius %d) to %s\n", p.Len(), p.Radius(), args[0])
			return nil
		},
	}

	cmd.Flags().IntVar(&bits, "bits", pipeline.DefaultPatternBits, "number of point pairs")
	cmd.Flags().IntVar(&patch, "patch", pipeline.DefaultPatchSize, "patch size in pixels")
	cmd.Flags().Int64Var(&seed, "seed", pipeline.DefaultPatternSeed, "random seed")
	return cmd
}

func newPatternInfoCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info [FILE]",
		Short: "Describe a pattern file, or the configured pattern",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				p   *brief.Pattern
				src string
				err error
			)
			if len(args) == 1 {
				src = args[0]
				p, err = brief.LoadPattern(src)
			} else {
				var cfg *pipeline.Config
				if cfg, err = root.config(cmd); err != nil {
					return err
				}
				src = cfg.PatternPath
				if src == "" {
					src = fmt.Sprintf("generated (seed %d, patch %d)", cfg.PatternSeed, cfg.PatchSize)
				}
				p, err = cfg.LoadPattern()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pairs, radius %d\n", src, p.Len(), p.Radius())
			return nil
		},
	}
}
