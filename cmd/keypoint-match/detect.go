package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/keypoint-match/internal/detection"
	"github.com/ironsheep/keypoint-match/internal/imaging"
	"github.com/ironsheep/keypoint-match/internal/render"
)

func newDetectCmd(root *rootOptions) *cobra.Command {
	var (
		asJSON     bool
		overlayDir string
	)

	cmd := &cobra.Command{
		Use:   "detect IMAGE...",
		Short: "Detect keypoints and report per-stage timings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pipe, _, err := root.setup(cmd)
			if err != nil {
				return err
			}
			cache := imaging.NewImageCache()
			features, err := pipe.ExtractFiles(cmd.Context(), cache, args, false)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			type imageKeypoints struct {
				Path      string               `json:"path"`
				Keypoints []detection.Keypoint `json:"keypoints"`
			}
			var all []imageKeypoints

			for i, f := range features {
				if asJSON {
					all = append(all, imageKeypoints{Path: args[i], Keypoints: f.Keypoints})
				} else {
					t := f.Timings
					fmt.Fprintf(out, "%s: %d keypoints (%dx%d) gaussian=%v dog=%v detect=%v describe=%v\n",
						args[i], f.Len(), f.Width, f.Height, t.Gaussian, t.DoG, t.Detect, t.Describe)
				}

				if overlayDir != "" {
					img, err := cache.Load(args[i])
					if err != nil {
						return err
					}
					dst := filepath.Join(overlayDir, overlayName(args[i]))
					if err := render.Save(render.KeypointOverlay(img, f.Keypoints), dst); err != nil {
						return err
					}
				}
			}

			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print keypoints as JSON")
	cmd.Flags().StringVar(&overlayDir, "overlay-dir", "", "write a keypoint overlay PNG per image to this directory")
	return cmd
}

// overlayName derives the overlay file name from an input path.
func overlayName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-keypoints.png"
}
