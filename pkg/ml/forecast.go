package ml

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const z95 = 1.96

type ForecastParams struct {
	Horizon int
	// SeasonLength 0 detects the season from the date spacing, negative disables it.
	SeasonLength int
}

type ForecastPoint struct {
	Step  int     `json:"step"`
	Date  string  `json:"date,omitempty"`
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// ForecastModel is a linear trend plus additive seasonal profile.
type ForecastModel struct {
	Intercept   float64   `json:"intercept"`
	Slope       float64   `json:"slope"`
	Seasonal    []float64 `json:"seasonal"`
	ResidualStd float64   `json:"residualStd"`
	N           int       `json:"n"`
	LastDate    time.Time `json:"lastDate"`
	Frequency   string    `json:"frequency"`
	StepSeconds float64   `json:"stepSeconds"`
}

type ForecastResult struct {
	Horizon         int             `json:"horizon"`
	SeasonLength    int             `json:"seasonLength"`
	Frequency       string          `json:"frequency"`
	TrendSlope      float64         `json:"trendSlope"`
	Intercept       float64         `json:"intercept"`
	SeasonalFactors []float64       `json:"seasonalFactors"`
	ResidualStd     float64         `json:"residualStd"`
	MAPE            float64         `json:"mape"`
	RMSE            float64         `json:"rmse"`
	History         int             `json:"history"`
	Forecast        []ForecastPoint `json:"forecast"`
}

func (r *ForecastResult) Metrics() map[string]float64 {
	return map[string]float64{"mape": r.MAPE, "rmse": r.RMSE, "trendSlope": r.TrendSlope}
}

const (
	freqDaily   = "daily"
	freqMonthly = "monthly"
	freqOther   = "irregular"
	freqIndex   = "index"
)

// detectFrequency classifies the median spacing of sorted dates.
func detectFrequency(dates []time.Time) (string, float64) {
	if len(dates) < 2 {
		return freqIndex, 0
	}
	diffs := make([]float64, len(dates)-1)
	for i := 1; i < len(dates); i++ {
		diffs[i-1] = dates[i].Sub(dates[i-1]).Seconds()
	}
	sort.Float64s(diffs)
	median := stat.Quantile(0.5, stat.Empirical, diffs, nil)
	days := median / 86400
	switch {
	case days >= 0.9 && days <= 1.1:
		return freqDaily, median
	case days >= 27 && days <= 32:
		return freqMonthly, median
	}
	return freqOther, median
}

// Forecast orders the series by date when every row carries one, otherwise keeps row order.
func Forecast(dates []time.Time, values []float64, params ForecastParams) (*ForecastModel, *ForecastResult, error) {
	if params.Horizon <= 0 {
		params.Horizon = 12
	}
	type obs struct {
		t time.Time
		v float64
	}
	series := make([]obs, 0, len(values))
	dated := len(dates) == len(values)
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		o := obs{v: v}
		if dated {
			if dates[i].IsZero() {
				dated = false
			}
			o.t = dates[i]
		}
		series = append(series, o)
	}
	if len(series) < 3 {
		return nil, nil, fmt.Errorf("%w: forecasting needs at least 3 points", ErrNotEnoughData)
	}
	model := &ForecastModel{N: len(series), Frequency: freqIndex}
	if dated {
		sort.SliceStable(series, func(i, j int) bool { return series[i].t.Before(series[j].t) })
		ts := make([]time.Time, len(series))
		for i := range series {
			ts[i] = series[i].t
		}
		model.Frequency, model.StepSeconds = detectFrequency(ts)
		model.LastDate = ts[len(ts)-1]
	}
	season := params.SeasonLength
	if season == 0 {
		switch model.Frequency {
		case freqDaily:
			season = 7
		case freqMonthly:
			season = 12
		}
	}
	n := len(series)
	if season < 2 || n < 2*season {
		season = 0
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range series {
		xs[i] = float64(i)
		ys[i] = o.v
	}
	model.Intercept, model.Slope = stat.LinearRegression(xs, ys, nil, false)
	if season > 0 {
		model.Seasonal = make([]float64, season)
		counts := make([]int, season)
		for i := range ys {
			model.Seasonal[i%season] += ys[i] - (model.Intercept + model.Slope*xs[i])
			counts[i%season]++
		}
		var mean float64
		for j := range model.Seasonal {
			model.Seasonal[j] /= float64(counts[j])
			mean += model.Seasonal[j]
		}
		mean /= float64(season)
		for j := range model.Seasonal {
			model.Seasonal[j] -= mean
		}
	}
	fitted := make([]float64, n)
	var ss float64
	for i := range ys {
		fitted[i] = model.at(i)
		ss += (ys[i] - fitted[i]) * (ys[i] - fitted[i])
	}
	dof := n - 2 - season
	if dof < 1 {
		dof = 1
	}
	model.ResidualStd = math.Sqrt(ss / float64(dof))

	res := &ForecastResult{
		Horizon:         params.Horizon,
		SeasonLength:    season,
		Frequency:       model.Frequency,
		TrendSlope:      model.Slope,
		Intercept:       model.Intercept,
		SeasonalFactors: model.Seasonal,
		ResidualStd:     model.ResidualStd,
		MAPE:            MAPE(ys, fitted),
		RMSE:            RMSE(ys, fitted),
		History:         n,
		Forecast:        model.Predict(params.Horizon),
	}
	return model, res, nil
}

func (m *ForecastModel) at(t int) float64 {
	v := m.Intercept + m.Slope*float64(t)
	if len(m.Seasonal) > 0 {
		v += m.Seasonal[t%len(m.Seasonal)]
	}
	return v
}

// Predict extends the series h steps with a 95% band widening with sqrt(h).
func (m *ForecastModel) Predict(horizon int) []ForecastPoint {
	out := make([]ForecastPoint, 0, horizon)
	for h := 1; h <= horizon; h++ {
		v := m.at(m.N - 1 + h)
		band := z95 * m.ResidualStd * math.Sqrt(float64(h))
		p := ForecastPoint{Step: h, Value: v, Lower: v - band, Upper: v + band}
		if !m.LastDate.IsZero() {
			p.Date = m.dateAt(h).Format("2006-01-02")
		}
		out = append(out, p)
	}
	return out
}

func (m *ForecastModel) dateAt(h int) time.Time {
	switch m.Frequency {
	case freqDaily:
		return m.LastDate.AddDate(0, 0, h)
	case freqMonthly:
		return m.LastDate.AddDate(0, h, 0)
	}
	return m.LastDate.Add(time.Duration(m.StepSeconds*float64(h)) * time.Second)
}
