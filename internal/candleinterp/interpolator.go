// Package candleinterp implements the candle reader/interpolator (C8): it
// reads raw candles, aligns timestamps to a target resolution, and folds
// sub-interval candles into resolution-wide buckets. Grounded on the Rust
// original's strategy_runner/candle_interpolator.rs.
package candleinterp

import (
	"context"
	"sort"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// Align rounds ts down to the nearest multiple of resolution's duration,
// measured from the UTC midnight of ts's day (spec.md §4.10 step 1).
func Align(ts time.Time, resolution domain.CandleResolution) time.Time {
	ts = ts.UTC()
	midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	sinceMidnight := ts.Sub(midnight)
	bucketWidth := resolution.Duration()
	nBuckets := int64(sinceMidnight / bucketWidth)
	return midnight.Add(time.Duration(nBuckets) * bucketWidth)
}

// Interpolator folds raw candles into resolution-wide buckets across one or
// more instruments.
type Interpolator struct {
	resolution domain.CandleResolution
	now        time.Time
	data       map[time.Time]domain.CandlePack
}

// New creates an Interpolator targeting resolution. now is used to exclude
// the still-open current bucket (spec.md §4.10 step 3 / Testable Property
// #9).
func New(resolution domain.CandleResolution, now time.Time) *Interpolator {
	return &Interpolator{resolution: resolution, now: now, data: make(map[time.Time]domain.CandlePack)}
}

// InsertCandleData folds every candle in timeline into its resolution
// bucket for figi. Buckets still open at construction time (now - bucket <
// resolution) are skipped. Within a bucket: open = first inserted candle's
// open, close = latest candle's close, high/low = running max/min, volume =
// sum.
func (in *Interpolator) InsertCandleData(figi domain.Figi, timeline domain.CandleTimeline) {
	type tsCandle struct {
		ts time.Time
		c  domain.Candle
	}
	ordered := make([]tsCandle, 0, len(timeline))
	for ts, c := range timeline {
		ordered = append(ordered, tsCandle{ts: ts, c: c})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ts.Before(ordered[j].ts) })

	for _, tc := range ordered {
		bucket := Align(tc.ts, in.resolution)
		if in.now.Sub(bucket) < in.resolution.Duration() {
			continue // bucket still open
		}

		pack, ok := in.data[bucket]
		if !ok {
			pack = make(domain.CandlePack)
		}

		existing, has := pack[figi]
		if !has {
			pack[figi] = tc.c
		} else {
			existing.Close = tc.c.Close
			if tc.c.High > existing.High {
				existing.High = tc.c.High
			}
			if tc.c.Low < existing.Low {
				existing.Low = tc.c.Low
			}
			existing.Volume += tc.c.Volume
			pack[figi] = existing
		}

		in.data[bucket] = pack
	}
}

// Packs returns the accumulated ts -> (figi -> candle) mapping in ascending
// timestamp order. When requireComplete is true, only buckets containing
// every figi in required are included.
func (in *Interpolator) Packs(requireComplete bool, required []domain.Figi) []TimestampedPack {
	keys := make([]time.Time, 0, len(in.data))
	for ts := range in.data {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := make([]TimestampedPack, 0, len(keys))
	for _, ts := range keys {
		pack := in.data[ts]
		if requireComplete && !containsAll(pack, required) {
			continue
		}
		out = append(out, TimestampedPack{Timestamp: ts, Pack: pack})
	}
	return out
}

func containsAll(pack domain.CandlePack, required []domain.Figi) bool {
	for _, f := range required {
		if _, ok := pack[f]; !ok {
			return false
		}
	}
	return true
}

// TimestampedPack pairs a bucket timestamp with its cross-instrument candle
// pack.
type TimestampedPack struct {
	Timestamp time.Time
	Pack      domain.CandlePack
}

// ClampWindow implements spec.md §4.10 step 2: walking days in
// [from.Date, to.Date], clamp to to the earliest of the first Unavailable
// day's 00:00 or any PartiallyAvailable.AvailableUpTo. If the result is
// <= from, the caller should treat the window as empty.
func ClampWindow(ctx context.Context, store domain.Store, figi domain.Figi, from, to time.Time) (time.Time, error) {
	clamped := to
	day := dayStart(from)
	last := dayStart(to)

	for !day.After(last) {
		avail, err := store.ReadCandleDataAvailability(ctx, figi, day)
		if err != nil {
			return time.Time{}, err
		}

		switch avail.Kind {
		case domain.Unavailable:
			if day.Before(clamped) {
				clamped = day
			}
			return clamped, nil
		case domain.PartiallyAvailable:
			if avail.AvailableUpTo.Before(clamped) {
				clamped = avail.AvailableUpTo
			}
			return clamped, nil
		}

		day = day.AddDate(0, 0, 1)
	}

	return clamped, nil
}

func dayStart(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}

// Read reads raw candles for each figi over the availability-clamped window
// [from, to) and folds them into resolution-wide packs (spec.md §4.10).
func Read(ctx context.Context, store domain.Store, now time.Time, figis []domain.Figi, from, to time.Time, resolution domain.CandleResolution, requireComplete bool) ([]TimestampedPack, error) {
	alignedFrom := Align(from, resolution)
	in := New(resolution, now)

	for _, figi := range figis {
		clampedTo, err := ClampWindow(ctx, store, figi, alignedFrom, to)
		if err != nil {
			return nil, err
		}
		if !clampedTo.After(alignedFrom) {
			continue
		}

		timeline, err := store.ReadCandles(ctx, figi, alignedFrom, clampedTo)
		if err != nil {
			return nil, err
		}
		in.InsertCandleData(figi, timeline)
	}

	return in.Packs(requireComplete, figis), nil
}
