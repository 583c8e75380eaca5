package types

// RawProviderMetrics is the raw telemetry the Quality Scorer consumes.
type RawProviderMetrics struct {
	UptimeMinutes   float64
	TotalMinutes    float64
	MedianLatencyMs float64
	P99LatencyMs    float64
	SuccessCount    int64
	FailureCount    int64
	AverageRating   float64 // [1, 5]
	RatingCount     int64
}

// QualityMetrics is the composite output of the Quality Scorer.
type QualityMetrics struct {
	UptimePercent    float64
	MedianLatencyMs  float64
	P99LatencyMs     float64
	ErrorRatePercent float64
	AverageRating    float64
	RatingCount      int64
	CompositeScore   float64 // [0, 100]
}

// DefaultQualityMetrics is the fallback used by the Price Updater when a
// listing has no quality rollup row yet.
func DefaultQualityMetrics() QualityMetrics {
	return QualityMetrics{
		UptimePercent:    99.9,
		MedianLatencyMs:  100,
		P99LatencyMs:     500,
		ErrorRatePercent: 0.5,
		AverageRating:    4.0,
		RatingCount:      0,
		CompositeScore:   70,
	}
}

// SupplyState is the scarcity/utilization input to the pricing engine.
type SupplyState struct {
	CategoryID         string
	CompetitorCount    int
	IsUnique           bool
	CapacityPerMinute  int
	UtilizationPercent float64 // [0, 100]
}
