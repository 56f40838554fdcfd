package domain

// VoltageReading carries the grid features for one peak-voltage prediction.
// Field names follow the measurement feed.
type VoltageReading struct {
	KWSurplus      *float64 `json:"kW_surplus,omitempty"`
	KWp            *float64 `json:"kWp,omitempty"`
	PVSystemsCount *float64 `json:"pvsystems_count,omitempty"`
	Ta             *float64 `json:"ta,omitempty"`
	Gh             *float64 `json:"gh,omitempty"`
	Dd             *float64 `json:"dd,omitempty"`
	Rr             *float64 `json:"rr,omitempty"`
	HourSin        *float64 `json:"hour_sin,omitempty"`
	HourCos        *float64 `json:"hour_cos,omitempty"`
	WeekSin        *float64 `json:"week_sin,omitempty"`
	WeekCos        *float64 `json:"week_cos,omitempty"`
	WeekdaySin     *float64 `json:"weekday_sin,omitempty"`
	WeekdayCos     *float64 `json:"weekday_cos,omitempty"`
	UW             *float64 `json:"UW,omitempty"`
}
