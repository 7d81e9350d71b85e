package pipeline

import (
	"context"

	"github.com/banshee-data/glyph.codec/internal/glyph/artifact"
	"golang.org/x/sync/errgroup"
)

// CompressAll compresses inputs on a pool of at most workers goroutines
// (Config.Workers when workers <= 0). Results are in input order. The first
// failure cancels the remaining work and is returned.
func (c *Compressor) CompressAll(ctx context.Context, inputs []Input, workers int) ([]*artifact.Result, error) {
	if workers <= 0 {
		workers = c.cfg.Workers
	}
	if workers <= 0 || workers > len(inputs) {
		workers = len(inputs)
	}
	results := make([]*artifact.Result, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := c.Compress(ctx, in)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
