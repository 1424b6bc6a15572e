package schema

// AdvisoryContext is the serialized context handed to the external
// decision-support process. Volume-profile levels are advisory only and
// never become engine state.
type AdvisoryContext struct {
	Symbol string      `json:"symbol"`
	Action AlertAction `json:"action"`

	PointOfControl float64 `json:"point_of_control,omitempty"`
	ValueAreaHigh  float64 `json:"value_area_high,omitempty"`
	ValueAreaLow   float64 `json:"value_area_low,omitempty"`
	RangeHigh      float64 `json:"range_high,omitempty"`
	RangeLow       float64 `json:"range_low,omitempty"`

	ConfirmationScore float64 `json:"confirmation_score,omitempty"`

	TargetEntry float64 `json:"target_entry,omitempty"`
	TP1         float64 `json:"tp1,omitempty"`
	TP2         float64 `json:"tp2,omitempty"`
	TP3         float64 `json:"tp3,omitempty"`
	InitialStop float64 `json:"initial_stop,omitempty"`
}

// AdvisoryResult is a best-effort annotation from the external process.
// Confidence is clamped to [0,1]. A nil result means the advisory was
// unavailable; it never gates a transition.
type AdvisoryResult struct {
	Reasoning  string  `json:"reasoning"`
	Confidence float64 `json:"confidence"`
}
