package manifest

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Summary is one row of the template listing.
type Summary struct {
	Type       ResourceType `json:"type" yaml:"type"`
	Available  bool         `json:"available" yaml:"available"`
	Valid      bool         `json:"valid" yaml:"valid"`
	Categories int          `json:"categories" yaml:"categories"`
	Resources  int          `json:"resources" yaml:"resources"`
}

// Catalog dispatches manifest operations by resource type.
type Catalog struct {
	loader     *Loader
	normalizer *Normalizer
}

func NewCatalog(loader *Loader, normalizer *Normalizer) *Catalog {
	return &Catalog{loader: loader, normalizer: normalizer}
}

// Data returns the manifest as it should be served: absolutized for types
// that require it, as loaded otherwise.
func (c *Catalog) Data(ctx context.Context, t ResourceType) (*Document, error) {
	doc, err := c.loader.Load(ctx, t)
	if err != nil {
		return nil, err
	}
	cfg, _ := Lookup(t)
	if !cfg.Absolutize {
		return doc, nil
	}
	return c.normalizer.Normalize(doc)
}

func (c *Catalog) Validate(ctx context.Context, t ResourceType) (Report, error) {
	doc, err := c.loader.Load(ctx, t)
	if err != nil {
		return Report{}, err
	}
	return Validate(doc, t), nil
}

// ValidateAll validates every registered type concurrently. Reports are
// returned in Types() order; any load failure fails the whole call.
func (c *Catalog) ValidateAll(ctx context.Context) ([]Report, error) {
	types := Types()
	reports := make([]Report, len(types))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			r, err := c.Validate(gctx, t)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

// Summaries lists every registered type. A type without a manifest on disk
// is reported unavailable rather than failing the listing.
func (c *Catalog) Summaries(ctx context.Context) ([]Summary, error) {
	var out []Summary
	for _, t := range Types() {
		r, err := c.Validate(ctx, t)
		if errors.Is(err, ErrNotFound) {
			slog.Debug("manifest unavailable", "type", t, "err", err)
			out = append(out, Summary{Type: t})
			continue
		} else if err != nil {
			return nil, err
		}
		out = append(out, Summary{
			Type:       t,
			Available:  true,
			Valid:      r.Valid,
			Categories: r.Categories,
			Resources:  r.Resources,
		})
	}
	return out, nil
}
