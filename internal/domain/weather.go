package domain

// TemperatureDistribution is only present in the richer response shape.
type TemperatureDistribution struct {
	Mean        float64            `json:"mean"`
	Std         float64            `json:"std"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// WeatherMetrics holds the aggregate historical statistics for one
// location/date. AvgUVIndex and TemperatureDistribution are optional.
type WeatherMetrics struct {
	AvgTempC             float64                  `json:"avg_temp_c"`
	MinTempC             float64                  `json:"min_temp_c"`
	MaxTempC             float64                  `json:"max_temp_c"`
	AvgPrecipitationMMHr float64                  `json:"avg_precipitation_mmhr"`
	AvgWindSpeedKMH      float64                  `json:"avg_wind_speed_kmh"`
	AvgHumidityPercent   float64                  `json:"avg_humidity_percent"`
	AvgCloudCoverPercent float64                  `json:"avg_cloud_cover_percent"`
	AvgUVIndex           *float64                 `json:"avg_uv_index,omitempty"`
	DataSource           string                   `json:"data_source"`
	YearsAnalyzed        int                      `json:"years_analyzed"`
	TemperatureDist      *TemperatureDistribution `json:"temperature_distribution,omitempty"`
}

// HasExtended reports whether the richer response fields were supplied.
func (m WeatherMetrics) HasExtended() bool {
	return m.AvgUVIndex != nil || m.TemperatureDist != nil
}

// ProbabilityDetail is the likelihood of one named weather extreme.
type ProbabilityDetail struct {
	Probability float64 `json:"probability"` // percent, 0–100
	Threshold   float64 `json:"threshold"`
	Confidence  string  `json:"confidence"`
}

// ExtremeProbabilities groups the five risk entries reported per location.
type ExtremeProbabilities struct {
	VeryHot               ProbabilityDetail `json:"very_hot"`
	VeryCold              ProbabilityDetail `json:"very_cold"`
	VeryWet               ProbabilityDetail `json:"very_wet"`
	VeryWindy             ProbabilityDetail `json:"very_windy"`
	UncomfortableHumidity ProbabilityDetail `json:"uncomfortable_humidity"`
}

// CheckResult is the suitability assessment for one CheckRequest.
type CheckResult struct {
	Score           int                  `json:"score"` // 1–5
	Classification  string               `json:"classification"`
	Justification   string               `json:"justification"`
	Metrics         WeatherMetrics       `json:"weather_data"`
	Request         *CheckRequest        `json:"request_data,omitempty"`
	Probabilities   ExtremeProbabilities `json:"probabilities"`
	Recommendations []string             `json:"recommendations"`
}

// YearlyTrend is one year of the climate-trend series. Averages are absent
// for years without data.
type YearlyTrend struct {
	Year            int      `json:"year"`
	AvgTemp         *float64 `json:"avg_temp"`
	TotalPrecip     *float64 `json:"total_precip"`
	ExtremeHeatDays int      `json:"extreme_heat_days"`
	ExtremeColdDays int      `json:"extreme_cold_days"`
	HeavyRainDays   int      `json:"heavy_rain_days"`
}

// TrendAnalysis is the derived summary of a trend series.
type TrendAnalysis struct {
	TempChangePerDecade     float64 `json:"temp_change_per_decade"`
	IncreasingExtremeEvents bool    `json:"increasing_extreme_events"`
}

// TrendResult is the climate-trend series for one location.
type TrendResult struct {
	Direction          string        `json:"trend_direction"`
	TemperatureTrend   float64       `json:"temperature_trend"`
	PrecipitationTrend float64       `json:"precipitation_trend"`
	Yearly             []YearlyTrend `json:"yearly_data"`
	Analysis           TrendAnalysis `json:"analysis"`
}

// YearRange bounds a trend query. Zero values leave the bound to the service.
type YearRange struct {
	Start int
	End   int
}
