// Package features computes derived rolling statistics over one symbol's
// daily rows and merges vendor-computed technical indicators onto them.
package features

import (
	"math"

	"histfill/internal/domain"
)

// Recognized derived feature names.
const (
	DailyReturn   = "daily_return"
	RollingVol5d  = "rolling_volatility_5d"
	RollingVol20d = "rolling_volatility_20d"
	PriceGap      = "price_gap"
	VolumeZScore  = "volume_zscore"

	volumeWindowSize = 20
)

// Recognized reports whether name is a known derived feature.
func Recognized(name string) bool {
	switch name {
	case DailyReturn, RollingVol5d, RollingVol20d, PriceGap, VolumeZScore:
		return true
	}
	return false
}

// Annotate computes the enabled derived features over rows and attaches them
// in place. Rows must already be sorted ascending by date. All computations
// are causal: only current and prior values are read. Null inputs degrade to
// an absent feature value, never an error.
func Annotate(rows []domain.Row, enabled []string) {
	on := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		on[name] = true
	}
	if len(on) == 0 {
		return
	}

	// Most recent non-null close strictly before the current row. Nulls do
	// not reset it; it only advances on a non-null close.
	var prevClose *float64

	for i := range rows {
		row := &rows[i]

		if on[DailyReturn] {
			if row.Close != nil && prevClose != nil && *prevClose != 0 {
				ret := *row.Close / *prevClose
				row.SetExtra(DailyReturn, ret-1)
			}
		}
		if on[PriceGap] {
			if row.Open != nil && prevClose != nil {
				row.SetExtra(PriceGap, *row.Open-*prevClose)
			}
		}
		if on[RollingVol5d] {
			if sd, ok := windowStdDev(rows, i, 5); ok {
				row.SetExtra(RollingVol5d, sd)
			}
		}
		if on[RollingVol20d] {
			if sd, ok := windowStdDev(rows, i, 20); ok {
				row.SetExtra(RollingVol20d, sd)
			}
		}
		if on[VolumeZScore] {
			if z, ok := volumeZScore(rows, i); ok {
				row.SetExtra(VolumeZScore, z)
			}
		}

		if row.Close != nil {
			prevClose = row.Close
		}
	}
}

// windowStdDev returns the sample standard deviation of the non-null closes
// in the trailing window of size w ending at index i, clipped at the start of
// the sequence. ok is false when fewer than 2 non-null closes are present.
func windowStdDev(rows []domain.Row, i, w int) (float64, bool) {
	lo := i - w + 1
	if lo < 0 {
		lo = 0
	}
	var vals []float64
	for j := lo; j <= i; j++ {
		if rows[j].Close != nil {
			vals = append(vals, *rows[j].Close)
		}
	}
	return sampleStdDev(vals)
}

// volumeZScore returns (volume[i] - mean) / std over the trailing 20-row
// window of non-null volumes ending at i. ok is false when the current volume
// is null, the window holds no non-null volumes, or std is undefined or zero.
func volumeZScore(rows []domain.Row, i int) (float64, bool) {
	if rows[i].Volume == nil {
		return 0, false
	}
	lo := i - volumeWindowSize + 1
	if lo < 0 {
		lo = 0
	}
	var vals []float64
	for j := lo; j <= i; j++ {
		if rows[j].Volume != nil {
			vals = append(vals, *rows[j].Volume)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	mean := meanOf(vals)
	sd, ok := sampleStdDev(vals)
	if !ok || sd == 0 {
		return 0, false
	}
	return (*rows[i].Volume - mean) / sd, true
}

func meanOf(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// sampleStdDev computes the n-1 standard deviation. ok is false for fewer
// than 2 values.
func sampleStdDev(vals []float64) (float64, bool) {
	n := len(vals)
	if n < 2 {
		return 0, false
	}
	mean := meanOf(vals)
	var ss float64
	for _, v := range vals {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), true
}
