package voltage

import (
	"context"
	"testing"

	"scoring-gateway/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestPredict_Alignment(t *testing.T) {
	p := NewPredictor()
	readings := []domain.VoltageReading{
		{KWSurplus: fptr(1.0)},
		{KWSurplus: fptr(2.0)},
		{KWSurplus: fptr(3.0)},
	}

	out, err := p.Predict(context.Background(), readings, false)
	require.NoError(t, err)
	require.Len(t, out, 3)

	// More surplus feed-in raises the predicted peak, in input order.
	assert.Less(t, out[0], out[1])
	assert.Less(t, out[1], out[2])
}

func TestPredict_ScaledVsVolts(t *testing.T) {
	p := NewPredictor()
	readings := []domain.VoltageReading{{KWSurplus: fptr(2.0), Ta: fptr(18.5)}}

	scaled, err := p.Predict(context.Background(), readings, true)
	require.NoError(t, err)
	volts, err := p.Predict(context.Background(), readings, false)
	require.NoError(t, err)

	assert.InDelta(t, scaleMean+scaleStd*scaled[0], volts[0], 1e-9)
	// Unscaled output is in a plausible low-voltage-grid band.
	assert.Greater(t, volts[0], 200.0)
	assert.Less(t, volts[0], 280.0)
}

func TestPredict_EmptyReadingIsBaseline(t *testing.T) {
	p := NewPredictor()
	out, err := p.Predict(context.Background(), []domain.VoltageReading{{}}, true)
	require.NoError(t, err)
	assert.Zero(t, out[0])
}

func TestPredict_Deterministic(t *testing.T) {
	p := NewPredictor()
	readings := []domain.VoltageReading{{KWp: fptr(5.4), Gh: fptr(610), HourSin: fptr(0.5)}}

	a, err := p.Predict(context.Background(), readings, false)
	require.NoError(t, err)
	b, err := p.Predict(context.Background(), readings, false)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredict_CancelledContext(t *testing.T) {
	p := NewPredictor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Predict(ctx, []domain.VoltageReading{{}}, false)
	assert.Error(t, err)
}
