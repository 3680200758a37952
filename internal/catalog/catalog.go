package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sixstreet/storefront/internal/inventory"
)

var ErrUnknownListing = errors.New("catalog: unknown listing")

// Listing is a named view over the inventory: a filter plus an ordering.
type Listing struct {
	Name  string
	Match func(inventory.Item) bool
	Less  func(a, b inventory.Item) bool
}

type Source interface {
	ListItems(ctx context.Context, page, pageSize int) ([]inventory.Item, int, error)
	InStock(it inventory.Item) bool
}

type Service struct {
	Source   Source
	Listings map[string]Listing
	PageSize int
	MaxPages int
	Log      *zap.Logger
}

func NewService(src Source, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	ls := make(map[string]Listing)
	for _, l := range Builtins() {
		ls[l.Name] = l
	}
	return &Service{Source: src, Listings: ls, PageSize: 200, MaxPages: 20, Log: log}
}

// List returns the in-stock items of the named listing, ordered.
func (s *Service) List(ctx context.Context, name string) ([]inventory.Item, error) {
	l, ok := s.Listings[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownListing, name)
	}
	items, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]inventory.Item, 0, len(items))
	for _, it := range items {
		if !s.Source.InStock(it) {
			continue
		}
		if l.Match != nil && !l.Match(it) {
			continue
		}
		out = append(out, it)
	}
	if l.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return l.Less(out[i], out[j]) })
	}
	return out, nil
}

// all reads page one, then the remaining pages concurrently.
func (s *Service) all(ctx context.Context) ([]inventory.Item, error) {
	first, total, err := s.Source.ListItems(ctx, 1, s.PageSize)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	pages := (total + s.PageSize - 1) / s.PageSize
	if pages > s.MaxPages {
		s.Log.Warn("catalog truncated", zap.Int("total", total), zap.Int("max_pages", s.MaxPages))
		pages = s.MaxPages
	}
	if pages <= 1 {
		return first, nil
	}

	rest := make([][]inventory.Item, pages-1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for p := 2; p <= pages; p++ {
		p := p
		g.Go(func() error {
			items, _, err := s.Source.ListItems(gctx, p, s.PageSize)
			if err != nil {
				return fmt.Errorf("list items page %d: %w", p, err)
			}
			rest[p-2] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, items := range rest {
		first = append(first, items...)
	}
	return first, nil
}
