package anomaly

import (
	"errors"
	"math"

	"github.com/frostline-io/frostline/pkg/analytics"
)

// ErrInsufficientData is returned when a baseline cannot be computed
// because no observations were provided.
var ErrInsufficientData = errors.New("anomaly: insufficient data to compute baseline")

// Default classification thresholds.
const (
	DefaultHighThreshold = 2.0
	DefaultWarningRatio  = 0.75
)

// Options controls classification thresholds. The zero value selects the
// defaults; callers override per call rather than through shared state.
type Options struct {
	// HighThreshold is the minimum |z| for ANOMALY severity.
	HighThreshold float64
	// WarningRatio scales HighThreshold down to the WARNING boundary.
	WarningRatio float64
}

func (o Options) withDefaults() Options {
	if o.HighThreshold <= 0 {
		o.HighThreshold = DefaultHighThreshold
	}
	if o.WarningRatio <= 0 {
		o.WarningRatio = DefaultWarningRatio
	}
	return o
}

// ComputeBaseline derives the mean and population standard deviation of a
// series of observations. Returns ErrInsufficientData for an empty series.
func ComputeBaseline(obs []analytics.MetricObservation) (analytics.BaselineStats, error) {
	if len(obs) == 0 {
		return analytics.BaselineStats{}, ErrInsufficientData
	}

	var sum float64
	for _, o := range obs {
		sum += o.Value
	}
	mean := sum / float64(len(obs))

	var sqDiff float64
	for _, o := range obs {
		d := o.Value - mean
		sqDiff += d * d
	}
	stdDev := math.Sqrt(sqDiff / float64(len(obs)))

	return analytics.BaselineStats{
		Mean:    mean,
		StdDev:  stdDev,
		Samples: len(obs),
	}, nil
}

// Classify scores each observation against the baseline. Output preserves
// input order and length. When the baseline has zero variance every
// observation is NORMAL and its z-score is undefined (nil).
func Classify(obs []analytics.MetricObservation, baseline analytics.BaselineStats, opts Options) []analytics.ClassifiedObservation {
	opts = opts.withDefaults()
	warnThreshold := opts.HighThreshold * opts.WarningRatio

	out := make([]analytics.ClassifiedObservation, 0, len(obs))
	for _, o := range obs {
		c := analytics.ClassifiedObservation{
			Period:    o.Period,
			Value:     o.Value,
			Severity:  analytics.SeverityNormal,
			Direction: analytics.BelowBaseline,
		}
		if o.Value > baseline.Mean {
			c.Direction = analytics.AboveBaseline
		}
		if baseline.StdDev > 0 {
			z := (o.Value - baseline.Mean) / baseline.StdDev
			c.ZScore = &z
			switch absZ := math.Abs(z); {
			case absZ > opts.HighThreshold:
				c.Severity = analytics.SeverityAnomaly
			case absZ > warnThreshold:
				c.Severity = analytics.SeverityWarning
			}
		}
		out = append(out, c)
	}
	return out
}

// ExtractSevere filters classified observations down to those at or above
// minSeverity, preserving input order.
func ExtractSevere(classified []analytics.ClassifiedObservation, minSeverity analytics.Severity) []analytics.ClassifiedObservation {
	out := make([]analytics.ClassifiedObservation, 0)
	for _, c := range classified {
		if c.Severity >= minSeverity {
			out = append(out, c)
		}
	}
	return out
}
