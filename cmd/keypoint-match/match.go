package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ironsheep/keypoint-match/internal/imaging"
	"github.com/ironsheep/keypoint-match/internal/pipeline"
	"github.com/ironsheep/keypoint-match/internal/render"
)

func newMatchCmd(root *rootOptions) *cobra.Command {
	var (
		skipUnreadable bool
		outDir         string
		histograms     bool
	)

	cmd := &cobra.Command{
		Use:   "match IMAGE IMAGE...",
		Short: "Match every image against the previous one",
		Long: "Match detects keypoints in every image, then matches each image's " +
			"descriptors against the nearest earlier readable image and prints " +
			"per-stage timings.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, logger, err := root.setup(cmd)
			if err != nil {
				return err
			}
			cache := imaging.NewImageCache()
			features, err := pipe.ExtractFiles(cmd.Context(), cache, args, skipUnreadable)
			if err != nil {
				return err
			}
			reports, err := pipe.MatchSequence(features)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var total pipeline.Timings
			for i, f := range features {
				if f == nil {
					fmt.Fprintf(out, "%s: skipped\n", args[i])
					continue
				}
				total = total.Add(f.Timings)
				fmt.Fprintf(out, "%s: %d keypoints\n", args[i], f.Len())
			}

			for _, r := range reports {
				from, to := features[r.From], features[r.To]
				fmt.Fprintf(out, "%s -> %s: %d matches in %v\n", args[r.From], args[r.To], r.Len(), r.Elapsed)

				if outDir == "" {
					continue
				}
				name := fmt.Sprintf("%03d-%03d", r.From, r.To)
				if err := writeComposite(cache, args[r.From], args[r.To], from, to, r.MatchReport,
					filepath.Join(outDir, name+"-matches.png")); err != nil {
					return err
				}
				if histograms && r.Len() > 0 {
					if err := render.DistanceHistogram(r.Result, from.Bits, filepath.Join(outDir, name+"-distances.png")); err != nil {
						return err
					}
				}
				logger.Info("wrote match images", "from", args[r.From], "to", args[r.To], "dir", outDir)
			}

			fmt.Fprintf(out, "timing: gaussian=%v dog=%v detect=%v describe=%v total=%v\n",
				total.Gaussian, total.DoG, total.Detect, total.Describe, total.Total())
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipUnreadable, "skip-unreadable", false, "skip images that fail to load instead of aborting")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "write a match composite per image pair to this directory")
	cmd.Flags().BoolVar(&histograms, "histogram", false, "with --out-dir, also plot match distances per pair")
	return cmd
}

func writeComposite(cache *imaging.ImageCache, pathA, pathB string, a, b *pipeline.Features, rep *pipeline.MatchReport, dst string) error {
	imgA, err := cache.Load(pathA)
	if err != nil {
		return err
	}
	imgB, err := cache.Load(pathB)
	if err != nil {
		return err
	}
	composite, err := render.MatchComposite(imgA, imgB, a.Keypoints, b.Keypoints, rep.Result)
	if err != nil {
		return err
	}
	return render.Save(composite, dst)
}
