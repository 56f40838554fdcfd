package voltage

import (
	"context"

	"scoring-gateway/internal/core/domain"
)

// Model parameters frozen from the trained regression pipeline. The model
// predicts a standardized u_max; the inverse transform maps it back to
// volts.
const (
	scaleMean = 238.70 // volts
	scaleStd  = 4.15   // volts
)

var coefficients = map[string]float64{
	"kW_surplus":      0.310,
	"kWp":             0.145,
	"pvsystems_count": 0.052,
	"ta":              -0.018,
	"gh":              0.00042,
	"dd":              -0.0009,
	"rr":              -0.021,
	"hour_sin":        0.260,
	"hour_cos":        -0.190,
	"week_sin":        0.034,
	"week_cos":        0.027,
	"weekday_sin":     0.011,
	"weekday_cos":     0.008,
	"UW":              -0.043,
}

// Predictor implements ports.VoltagePredictor with a frozen linear model.
// It is a deterministic pure function of its inputs and safe for
// concurrent use.
type Predictor struct{}

// NewPredictor creates a peak-voltage predictor.
func NewPredictor() *Predictor {
	return &Predictor{}
}

// Predict returns one u_max per reading, positionally aligned with the
// input. Missing features contribute nothing to the prediction.
func (p *Predictor) Predict(ctx context.Context, readings []domain.VoltageReading, returnScaled bool) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float64, len(readings))
	for i := range readings {
		scaled := p.scaledPrediction(&readings[i])
		if returnScaled {
			out[i] = scaled
		} else {
			out[i] = scaleMean + scaleStd*scaled
		}
	}
	return out, nil
}

func (p *Predictor) scaledPrediction(r *domain.VoltageReading) float64 {
	var z float64
	add := func(name string, v *float64) {
		if v != nil {
			z += coefficients[name] * *v
		}
	}
	add("kW_surplus", r.KWSurplus)
	add("kWp", r.KWp)
	add("pvsystems_count", r.PVSystemsCount)
	add("ta", r.Ta)
	add("gh", r.Gh)
	add("dd", r.Dd)
	add("rr", r.Rr)
	add("hour_sin", r.HourSin)
	add("hour_cos", r.HourCos)
	add("week_sin", r.WeekSin)
	add("week_cos", r.WeekCos)
	add("weekday_sin", r.WeekdaySin)
	add("weekday_cos", r.WeekdayCos)
	add("UW", r.UW)
	return z
}
