package reconciliation

import (
	"fmt"
	"math"

	"packhouse-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Bands are the absolute variance percentages at which each severity starts.
type Bands struct {
	Critical float64 `json:"critical"`
	High     float64 `json:"high"`
	Medium   float64 `json:"medium"`
	Low      float64 `json:"low"`
}

func (b Bands) validate() error {
	if !(b.Critical > b.High && b.High > b.Medium && b.Medium > b.Low && b.Low >= 0) {
		return fmt.Errorf("bands must satisfy critical > high > medium > low >= 0, got %v/%v/%v/%v",
			b.Critical, b.High, b.Medium, b.Low)
	}
	return nil
}

// DefaultBands are used for alert types the configuration leaves out.
func DefaultBands() map[models.AlertType]Bands {
	money := Bands{Critical: 20, High: 10, Medium: 5, Low: 1}
	return map[models.AlertType]Bands{
		models.AlertGRNVsPayment:      money,
		models.AlertExportVsInvoice:   money,
		models.AlertLabourVsCost:      money,
		models.AlertPalletVsContainer: {Critical: 10, High: 5, Medium: 2, Low: 0},
		models.AlertLotVsBatch:        {Critical: 10, High: 5, Medium: 2, Low: 0},
		models.AlertColdStorageGap:    {Critical: 100, High: 50, Medium: 25, Low: 0},
	}
}

// BandsFrom merges configured [critical, high, medium, low] values over the
// defaults and validates every type.
func BandsFrom(configured map[models.AlertType][4]float64) (map[models.AlertType]Bands, error) {
	out := DefaultBands()
	for t, v := range configured {
		out[t] = Bands{Critical: v[0], High: v[1], Medium: v[2], Low: v[3]}
	}
	for t, b := range out {
		if err := b.validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", t, err)
		}
	}
	return out, nil
}

var hundred = decimal.NewFromInt(100)

// Classify returns the severity and variance percentage of a variance. ok is
// false when the variance is below the low band.
func (b Bands) Classify(expected, variance decimal.Decimal) (sev models.AlertSeverity, pct *float64, ok bool) {
	if variance.IsZero() {
		return "", nil, false
	}
	if expected.IsZero() {
		return models.SeverityCritical, nil, true
	}
	p := variance.Div(expected).Mul(hundred).Round(2).InexactFloat64()
	pct = &p

	abs := math.Abs(p)
	switch {
	case abs >= b.Critical:
		return models.SeverityCritical, pct, true
	case abs >= b.High:
		return models.SeverityHigh, pct, true
	case abs >= b.Medium:
		return models.SeverityMedium, pct, true
	case abs >= b.Low:
		return models.SeverityLow, pct, true
	}
	return "", pct, false
}
