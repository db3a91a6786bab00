package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/keypoint-match/internal/imaging"
)

// PairReport is the match between two images of a sequence.
type PairReport struct {
	From int
	To   int
	*MatchReport
}

// ExtractFiles loads and processes every path, several at a time.
//
// The result is aligned with paths. When skipUnreadable is true, an image
// that fails to open or decode is logged and left as a nil entry;
// otherwise the load error aborts the batch. Any other error always aborts.
func (p *Pipeline) ExtractFiles(ctx context.Context, cache *imaging.ImageCache, paths []string, skipUnreadable bool) ([]*Features, error) {
	out := make([]*Features, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.imageWorkers())
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			buf, err := imaging.LoadGray(cache, path, p.cfg.StretchContrast)
			if err != nil {
				if skipUnreadable && errors.Is(err, imaging.ErrLoad) {
					p.logger.Warn("skipping unreadable image", "path", path, "error", err)
					return nil
				}
				return err
			}
			f, err := p.Extract(buf)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			p.logger.Info("computed descriptors", "path", path, "keypoints", f.Len())
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchSequence matches every image with the nearest earlier image that has
// features. Nil entries, left by skipped images, are stepped over.
func (p *Pipeline) MatchSequence(features []*Features) ([]PairReport, error) {
	var reports []PairReport
	prev := -1
	for i, f := range features {
		if f == nil {
			continue
		}
		if prev >= 0 {
			rep, err := p.Match(features[prev], f)
			if err != nil {
				return nil, fmt.Errorf("match %d→%d: %w", prev, i, err)
			}
			reports = append(reports, PairReport{From: prev, To: i, MatchReport: rep})
		}
		prev = i
	}
	return reports, nil
}
