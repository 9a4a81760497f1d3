package holidays

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mark3748/helpdesk-ans/internal/sla"
)

// Resolver merges regional holidays with company days off and caches the
// per-year result in Redis. Cache errors fall back to computing the set.
type Resolver struct {
	Provider sla.HolidayProvider
	Extra    sla.HolidaySet
	Cache    redis.Cmdable
	TTL      time.Duration
	Prefix   string
}

// NewResolver returns a resolver for the Colombian calendar. cache may be nil.
func NewResolver(extra sla.HolidaySet, cache redis.Cmdable, ttl time.Duration) *Resolver {
	return &Resolver{Provider: Colombia(), Extra: extra, Cache: cache, TTL: ttl, Prefix: "holidays:co:"}
}

func (r *Resolver) key(year int) string {
	p := r.Prefix
	if p == "" {
		p = "holidays:"
	}
	return fmt.Sprintf("%s%d", p, year)
}

// Year returns the holidays of a single year.
func (r *Resolver) Year(ctx context.Context, year int) (sla.HolidaySet, error) {
	if r.Cache != nil {
		hs, err := r.cached(ctx, year)
		if err == nil {
			return hs, nil
		}
		if !errors.Is(err, redis.Nil) {
			log.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("holiday cache read")
		}
	}
	hs := r.compute(year)
	if r.Cache != nil {
		if err := r.store(ctx, year, hs); err != nil {
			log.Ctx(ctx).Warn().Err(err).Int("year", year).Msg("holiday cache write")
		}
	}
	return hs, nil
}

// Resolve returns the merged holidays of every year given.
func (r *Resolver) Resolve(ctx context.Context, years ...int) (sla.HolidaySet, error) {
	out := sla.HolidaySet{}
	for _, y := range years {
		hs, err := r.Year(ctx, y)
		if err != nil {
			return nil, err
		}
		out = out.Merge(hs)
	}
	return out, nil
}

// Lookup binds ctx for use by sla.Assess.
func (r *Resolver) Lookup(ctx context.Context) sla.HolidayLookup {
	return func(years ...int) (sla.HolidaySet, error) { return r.Resolve(ctx, years...) }
}

// Invalidate drops the cached sets of the given years.
func (r *Resolver) Invalidate(ctx context.Context, years ...int) error {
	if r.Cache == nil || len(years) == 0 {
		return nil
	}
	keys := make([]string, 0, len(years))
	for _, y := range years {
		keys = append(keys, r.key(y))
	}
	return r.Cache.Del(ctx, keys...).Err()
}

func (r *Resolver) compute(year int) sla.HolidaySet {
	var hs sla.HolidaySet
	if r.Provider != nil {
		hs = r.Provider.HolidaysFor(year)
	}
	return hs.Merge(r.Extra.Year(year))
}

func (r *Resolver) cached(ctx context.Context, year int) (sla.HolidaySet, error) {
	b, err := r.Cache.Get(ctx, r.key(year)).Bytes()
	if err != nil {
		return nil, err
	}
	var dates []sla.Date
	if err := json.Unmarshal(b, &dates); err != nil {
		return nil, err
	}
	return sla.NewHolidaySet(dates...), nil
}

func (r *Resolver) store(ctx context.Context, year int, hs sla.HolidaySet) error {
	b, err := json.Marshal(hs.Sorted())
	if err != nil {
		return err
	}
	return r.Cache.Set(ctx, r.key(year), b, r.TTL).Err()
}
