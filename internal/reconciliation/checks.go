package reconciliation

import (
	"fmt"
	"time"

	"packhouse-backend/internal/massbalance"
	"packhouse-backend/internal/models"

	"github.com/shopspring/decimal"
)

// Finding is one expected/actual pair produced by a check.
type Finding struct {
	Type        models.AlertType
	SubjectType string
	SubjectID   uint
	Title       string
	Expected    decimal.Decimal
	Actual      decimal.Decimal
	Unit        models.VarianceUnit
}

func (f Finding) Variance() decimal.Decimal {
	return f.Actual.Sub(f.Expected)
}

// Snapshot is the tenant's operational data a run reads.
type Snapshot struct {
	Batches    []models.Batch
	Lots       []models.Lot
	Pallets    []models.Pallet
	Containers []models.Container
	Invoices   []models.ExportInvoice
	Payments   []models.GrowerPayment
	Labour     []models.LabourEntry
	Now        time.Time
}

type check func(s Snapshot, opt checkOptions) []Finding

type checkOptions struct {
	ColdStorageMaxGapHours float64
}

var checks = map[models.AlertType]check{
	models.AlertGRNVsPayment:      checkGRNVsPayment,
	models.AlertExportVsInvoice:   checkExportVsInvoice,
	models.AlertLabourVsCost:      checkLabourVsCost,
	models.AlertPalletVsContainer: checkPalletVsContainer,
	models.AlertLotVsBatch:        checkLotVsBatch,
	models.AlertColdStorageGap:    checkColdStorageGap,
}

// Findings runs every check over s in the fixed alert type order.
func Findings(s Snapshot, opt checkOptions) []Finding {
	var out []Finding
	for _, t := range models.AlertTypes {
		out = append(out, checks[t](s, opt)...)
	}
	return out
}

func checkGRNVsPayment(s Snapshot, _ checkOptions) []Finding {
	paid := make(map[uint]decimal.Decimal)
	for _, p := range s.Payments {
		paid[p.BatchID] = paid[p.BatchID].Add(p.Amount)
	}
	var out []Finding
	for _, b := range s.Batches {
		if b.Status != models.BatchCompleted || b.PricePerKg == nil || b.NetWeightKg == nil {
			continue
		}
		out = append(out, Finding{
			Type:        models.AlertGRNVsPayment,
			SubjectType: "batch",
			SubjectID:   b.ID,
			Title:       fmt.Sprintf("Grower payments for batch %d differ from GRN value", b.ID),
			Expected:    decimal.NewFromFloat(*b.NetWeightKg).Mul(*b.PricePerKg).Round(2),
			Actual:      paid[b.ID],
			Unit:        models.UnitCurrency,
		})
	}
	return out
}

func checkExportVsInvoice(s Snapshot, _ checkOptions) []Finding {
	invoiced := make(map[uint]decimal.Decimal)
	seen := make(map[uint]bool)
	for _, inv := range s.Invoices {
		invoiced[inv.ContainerID] = invoiced[inv.ContainerID].Add(inv.Amount)
		seen[inv.ContainerID] = true
	}
	var out []Finding
	for _, c := range s.Containers {
		// not yet due for invoicing
		if c.ShippedAt == nil && !seen[c.ID] {
			continue
		}
		out = append(out, Finding{
			Type:        models.AlertExportVsInvoice,
			SubjectType: "container",
			SubjectID:   c.ID,
			Title:       fmt.Sprintf("Invoices for container %s differ from export value", c.Reference),
			Expected:    c.ExportValue,
			Actual:      invoiced[c.ID],
			Unit:        models.UnitCurrency,
		})
	}
	return out
}

func checkLabourVsCost(s Snapshot, _ checkOptions) []Finding {
	var out []Finding
	for _, e := range s.Labour {
		out = append(out, Finding{
			Type:        models.AlertLabourVsCost,
			SubjectType: "labour_entry",
			SubjectID:   e.ID,
			Title:       fmt.Sprintf("Recorded labour cost for %s on %s differs from timesheet", e.Team, e.WorkDate.Format("2006-01-02")),
			Expected:    decimal.NewFromFloat(e.Hours).Mul(e.HourlyRate).Round(2),
			Actual:      e.RecordedCost,
			Unit:        models.UnitCurrency,
		})
	}
	return out
}

func checkPalletVsContainer(s Snapshot, _ checkOptions) []Finding {
	loaded := make(map[uint]int64)
	for _, p := range s.Pallets {
		if p.ContainerID != nil {
			loaded[*p.ContainerID] += int64(p.CurrentBoxes)
		}
	}
	var out []Finding
	for _, c := range s.Containers {
		out = append(out, Finding{
			Type:        models.AlertPalletVsContainer,
			SubjectType: "container",
			SubjectID:   c.ID,
			Title:       fmt.Sprintf("Cartons on pallets for container %s differ from manifest", c.Reference),
			Expected:    decimal.NewFromInt(int64(c.ManifestCartons)),
			Actual:      decimal.NewFromInt(loaded[c.ID]),
			Unit:        models.UnitCartons,
		})
	}
	return out
}

func checkLotVsBatch(s Snapshot, _ checkOptions) []Finding {
	lots := make(map[uint][]models.Lot)
	for _, l := range s.Lots {
		lots[l.BatchID] = append(lots[l.BatchID], l)
	}
	var out []Finding
	for _, b := range s.Batches {
		if b.NetWeightKg == nil || b.Status == models.BatchRejected || len(lots[b.ID]) == 0 {
			continue
		}
		bal := massbalance.Verify(b.NetWeightKg, lots[b.ID], b.WasteKg)
		if bal.Balanced {
			continue
		}
		out = append(out, Finding{
			Type:        models.AlertLotVsBatch,
			SubjectType: "batch",
			SubjectID:   b.ID,
			Title:       fmt.Sprintf("Lots and waste for batch %d do not balance incoming weight", b.ID),
			Expected:    decimal.NewFromFloat(bal.IncomingKg),
			Actual:      decimal.NewFromFloat(bal.AccountedKg),
			Unit:        models.UnitKg,
		})
	}
	return out
}

func checkColdStorageGap(s Snapshot, opt checkOptions) []Finding {
	allowed := decimal.NewFromFloat(opt.ColdStorageMaxGapHours)
	var out []Finding
	for _, p := range s.Pallets {
		if p.Status != models.PalletSealed || p.SealedAt == nil {
			continue
		}
		end := s.Now
		if p.ColdStoreInAt != nil {
			end = *p.ColdStoreInAt
		}
		hours := decimal.NewFromFloat(end.Sub(*p.SealedAt).Hours()).Round(2)
		if !hours.GreaterThan(allowed) {
			continue
		}
		out = append(out, Finding{
			Type:        models.AlertColdStorageGap,
			SubjectType: "pallet",
			SubjectID:   p.ID,
			Title:       fmt.Sprintf("Pallet %d waited too long between sealing and cold storage", p.ID),
			Expected:    allowed,
			Actual:      hours,
			Unit:        models.UnitHours,
		})
	}
	return out
}
