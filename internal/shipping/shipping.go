package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sixstreet/storefront/internal/commerce"
	"github.com/sixstreet/storefront/internal/events"
)

const DefaultETD = "2-3"

var Couriers = []string{"jne", "jnt", "sicepat", "pos", "tiki", "anteraja"}

var (
	ErrUnavailable    = errors.New("shipping: rates unavailable")
	ErrUnknownCourier = errors.New("shipping: unknown courier")
	ErrNoDestination  = errors.New("shipping: destination required")
)

type Option struct {
	Courier     string `json:"courier"`
	Service     string `json:"service"`
	Description string `json:"description,omitempty"`
	Cost        int64  `json:"cost"`
	ETD         string `json:"etd"`
}

// Quoter is the Commerce Backend's rate proxy.
type Quoter interface {
	ShippingCost(ctx context.Context, in commerce.ShippingCostRequest) ([]commerce.ShippingService, error)
}

type Cache interface {
	Get(ctx context.Context, q commerce.ShippingCostRequest) ([]Option, bool)
	Set(ctx context.Context, q commerce.ShippingCostRequest, opts []Option)
}

type Resolver struct {
	Backend     Quoter
	Cache       Cache
	Origin      string
	WeightGrams int
	Timeout     time.Duration
	Notifier    events.Notifier
	Log         *zap.Logger
}

func NormalizeCourier(c string) (string, error) {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, k := range Couriers {
		if c == k {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCourier, c)
}

// Options returns the courier's service tiers in backend order.
func (r *Resolver) Options(ctx context.Context, destination, courier string) ([]Option, error) {
	courier, err := NormalizeCourier(courier)
	if err != nil {
		return nil, err
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, ErrNoDestination
	}
	q := commerce.ShippingCostRequest{
		Origin:      r.Origin,
		Destination: destination,
		Weight:      r.WeightGrams,
		Courier:     courier,
	}
	if r.Cache != nil {
		if opts, ok := r.Cache.Get(ctx, q); ok {
			return opts, nil
		}
	}

	cctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	svcs, err := r.Backend.ShippingCost(cctx, q)
	if err == nil && len(svcs) == 0 {
		err = errors.New("no services returned")
	}
	if err != nil {
		r.log().Warn("shipping quote failed",
			zap.String("destination", destination), zap.String("courier", courier), zap.Error(err))
		if r.Notifier != nil {
			r.Notifier.Notify(ctx, events.Notice{
				Type:    events.EventShippingUnavailable,
				Level:   events.LevelError,
				Message: "Gagal menghitung ongkos kirim",
				Data:    map[string]any{"destination": destination, "courier": courier},
			})
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	opts := make([]Option, 0, len(svcs))
	for _, s := range svcs {
		opts = append(opts, Option{
			Courier:     courier,
			Service:     s.Service,
			Description: s.Description,
			Cost:        s.Cost,
			ETD:         NormalizeETD(s.ETD),
		})
	}
	if r.Cache != nil {
		r.Cache.Set(ctx, q, opts)
	}
	return opts, nil
}

func (r *Resolver) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// NormalizeETD maps an unspecified estimate to DefaultETD.
func NormalizeETD(etd string) string {
	etd = strings.TrimSpace(etd)
	if etd == "" {
		return DefaultETD
	}
	return etd
}

// DefaultOption is the first tier.
func DefaultOption(opts []Option) (Option, bool) {
	if len(opts) == 0 {
		return Option{}, false
	}
	return opts[0], true
}

func FindService(opts []Option, service string) (Option, bool) {
	for _, o := range opts {
		if strings.EqualFold(o.Service, service) {
			return o, true
		}
	}
	return Option{}, false
}
