package reconciliation

import (
	"context"
	"io"
	"testing"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/store/memstore"
	"packhouse-backend/internal/tenant"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var scope = tenant.Scope{EnterpriseID: 1, UserID: 4, UserName: "controller"}

func newEngine(st store.Store) *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewEngine(st, NewLocalLocker(), Settings{Workers: 3, ColdStorageMaxGapHours: 4}, log)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func alerts(t *testing.T, st store.Store) []models.ReconciliationAlert {
	t.Helper()
	var out []models.ReconciliationAlert
	if err := st.Tx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.ListAlerts(1, store.AlertFilter{})
		return err
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestClassify(t *testing.T) {
	b := Bands{Critical: 20, High: 10, Medium: 5, Low: 1}
	cases := []struct {
		expected, variance string
		want               models.AlertSeverity
		ok                 bool
	}{
		{"100", "-25", models.SeverityCritical, true},
		{"100", "12", models.SeverityHigh, true},
		{"100", "5", models.SeverityMedium, true},
		{"100", "-1.5", models.SeverityLow, true},
		{"100", "0.5", "", false},
		{"100", "0", "", false},
		{"0", "3", models.SeverityCritical, true},
	}
	for _, tc := range cases {
		sev, _, ok := b.Classify(dec(tc.expected), dec(tc.variance))
		if sev != tc.want || ok != tc.ok {
			t.Errorf("Classify(%s, %s) = %s %v, want %s %v", tc.expected, tc.variance, sev, ok, tc.want, tc.ok)
		}
	}

	if _, pct, _ := b.Classify(dec("0"), dec("3")); pct != nil {
		t.Error("zero expected must leave variance_pct empty")
	}
	if _, pct, _ := b.Classify(dec("200"), dec("-30")); pct == nil || *pct != -15 {
		t.Errorf("pct = %v, want -15", pct)
	}
}

func TestBandsFromRejectsBadOrder(t *testing.T) {
	if _, err := BandsFrom(map[models.AlertType][4]float64{models.AlertLabourVsCost: {5, 10, 2, 1}}); err == nil {
		t.Fatal("expected an ordering error")
	}
	if _, err := BandsFrom(map[models.AlertType][4]float64{models.AlertLabourVsCost: {40, 20, 10, 0}}); err != nil {
		t.Fatalf("valid bands rejected: %v", err)
	}
}

func TestRunUpsertsInPlaceAndReopensAfterResolve(t *testing.T) {
	st := memstore.New()
	st.PutLabourEntry(models.LabourEntry{
		EnterpriseID: 1, Team: "packing", WorkDate: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
		Hours: 10, HourlyRate: dec("20"), RecordedCost: dec("260"),
	})
	e := newEngine(st)
	ctx := context.Background()

	first, err := e.Run(ctx, scope)
	if err != nil {
		t.Fatal(err)
	}
	if first.Created != 1 || first.Updated != 0 || first.RunID == "" {
		t.Fatalf("first run = %+v", first)
	}
	got := alerts(t, st)
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1", len(got))
	}
	a := got[0]
	if a.AlertType != models.AlertLabourVsCost || a.Severity != models.SeverityCritical ||
		!a.Variance.Equal(dec("60")) || a.Unit != models.UnitCurrency || a.Status != models.AlertOpen {
		t.Fatalf("alert = %+v", a)
	}

	second, err := e.Run(ctx, scope)
	if err != nil {
		t.Fatal(err)
	}
	if second.Created != 0 || second.Updated != 1 {
		t.Fatalf("second run = %+v", second)
	}
	got = alerts(t, st)
	if len(got) != 1 || got[0].ID != a.ID || got[0].RunID != second.RunID {
		t.Fatalf("rerun must refresh the same alert, got %+v", got)
	}

	for _, s := range []models.AlertStatus{models.AlertAcknowledged, models.AlertResolved} {
		if _, err := e.UpdateAlert(ctx, scope, a.ID, UpdateAlertInput{Status: s}); err != nil {
			t.Fatalf("move to %s: %v", s, err)
		}
	}
	third, err := e.Run(ctx, scope)
	if err != nil {
		t.Fatal(err)
	}
	if third.Created != 1 {
		t.Fatalf("recurring condition after resolve: %+v", third)
	}
	got = alerts(t, st)
	if len(got) != 2 || got[0].Status != models.AlertResolved || got[0].RunID != second.RunID {
		t.Fatalf("resolved alert must stay untouched, got %+v", got)
	}
}

func TestChecks(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)
	shipped := now.Add(-48 * time.Hour)

	var paidBatch uint
	err := st.Tx(ctx, func(tx store.Tx) error {
		net, price := 1000.0, dec("1.50")
		paid := models.Batch{EnterpriseID: 1, FruitType: "apple", NetWeightKg: &net, PricePerKg: &price, Status: models.BatchCompleted}
		if err := tx.CreateBatch(&paid); err != nil {
			return err
		}
		paidBatch = paid.ID

		short := 500.0
		unbalanced := models.Batch{EnterpriseID: 1, FruitType: "pear", NetWeightKg: &short, WasteKg: 10, Status: models.BatchComplete}
		if err := tx.CreateBatch(&unbalanced); err != nil {
			return err
		}
		w := 400.0
		return tx.CreateLot(&models.Lot{EnterpriseID: 1, BatchID: unbalanced.ID, Grade: "A", WeightKg: &w, Status: models.LotPacked})
	})
	if err != nil {
		t.Fatal(err)
	}

	st.PutGrowerPayment(models.GrowerPayment{EnterpriseID: 1, BatchID: paidBatch, Amount: dec("1500")})
	c := st.PutContainer(models.Container{EnterpriseID: 1, Reference: "MSKU1", ManifestCartons: 480, ExportValue: dec("10000"), ShippedAt: &shipped})
	containerID := c.ID
	st.PutExportInvoice(models.ExportInvoice{EnterpriseID: 1, ContainerID: c.ID, Amount: dec("10000")})

	err = st.Tx(ctx, func(tx store.Tx) error {
		sealed := now.Add(-6 * time.Hour)
		coldIn := sealed.Add(2 * time.Hour)
		for _, p := range []models.Pallet{
			{EnterpriseID: 1, CapacityBoxes: 240, CurrentBoxes: 240, ContainerID: &containerID, Status: models.PalletSealed, SealedAt: &sealed, ColdStoreInAt: &coldIn},
			{EnterpriseID: 1, CapacityBoxes: 240, CurrentBoxes: 200, ContainerID: &containerID, Status: models.PalletSealed, SealedAt: &sealed},
		} {
			if err := tx.CreatePallet(&p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	e := newEngine(st)
	e.now = func() time.Time { return now }
	if _, err := e.Run(ctx, scope); err != nil {
		t.Fatal(err)
	}

	byType := map[models.AlertType]models.ReconciliationAlert{}
	for _, a := range alerts(t, st) {
		byType[a.AlertType] = a
	}
	if _, ok := byType[models.AlertGRNVsPayment]; ok {
		t.Error("fully paid batch must not alert")
	}
	if _, ok := byType[models.AlertExportVsInvoice]; ok {
		t.Error("fully invoiced container must not alert")
	}
	if a, ok := byType[models.AlertLotVsBatch]; !ok || !a.Variance.Equal(dec("-90")) || a.Unit != models.UnitKg {
		t.Errorf("lot-vs-batch = %+v", a)
	}
	if a, ok := byType[models.AlertPalletVsContainer]; !ok || !a.Variance.Equal(dec("-40")) || a.SubjectID != containerID {
		t.Errorf("pallet-vs-container = %+v", a)
	}
	// the second pallet has waited 6h against a 4h allowance, 50% over
	if a, ok := byType[models.AlertColdStorageGap]; !ok || !a.Actual.Equal(dec("6")) || a.Severity != models.SeverityHigh {
		t.Errorf("cold-storage-gap = %+v", a)
	}
}

func TestAlertLifecycle(t *testing.T) {
	st := memstore.New()
	var id uint
	_ = st.Tx(context.Background(), func(tx store.Tx) error {
		a := models.ReconciliationAlert{EnterpriseID: 1, AlertType: models.AlertLotVsBatch, SubjectType: "batch", SubjectID: 1, Status: models.AlertOpen}
		err := tx.CreateAlert(&a)
		id = a.ID
		return err
	})
	e := newEngine(st)
	ctx := context.Background()

	if _, err := e.UpdateAlert(ctx, scope, id, UpdateAlertInput{Status: models.AlertResolved}); !apperr.Is(err, "invalid_alert_transition") {
		t.Fatalf("open -> resolved: got %v", err)
	}
	note := "weighbridge recalibrated"
	a, err := e.UpdateAlert(ctx, scope, id, UpdateAlertInput{Status: models.AlertDismissed, Note: &note})
	if err != nil {
		t.Fatal(err)
	}
	if a.StatusChangedBy == nil || *a.StatusChangedBy != scope.UserID || a.Note != note {
		t.Fatalf("alert = %+v", a)
	}
	if _, err := e.UpdateAlert(ctx, scope, id, UpdateAlertInput{Status: models.AlertOpen}); !apperr.Is(err, "invalid_alert_transition") {
		t.Fatalf("dismissed is terminal, got %v", err)
	}

	_ = st.Tx(ctx, func(tx store.Tx) error {
		logs, _ := tx.ListAudit(1, store.AuditFilter{EntityType: "reconciliation_alert", EntityID: id})
		if len(logs) != 1 || logs[0].FromStatus != "open" || logs[0].ToStatus != "dismissed" {
			t.Fatalf("audit = %+v", logs)
		}
		return nil
	})
}

func TestConcurrentRunIsConflict(t *testing.T) {
	locker := NewLocalLocker()
	release, err := locker.Acquire(context.Background(), "recon:1")
	if err != nil {
		t.Fatal(err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := NewEngine(memstore.New(), locker, Settings{}, log)

	if _, err := e.Run(context.Background(), scope); apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	_ = release(context.Background())
	if _, err := e.Run(context.Background(), scope); err != nil {
		t.Fatalf("run after release: %v", err)
	}
}

func TestDashboardCounts(t *testing.T) {
	st := memstore.New()
	_ = st.Tx(context.Background(), func(tx store.Tx) error {
		for i, s := range []models.AlertStatus{models.AlertOpen, models.AlertAcknowledged, models.AlertResolved} {
			if err := tx.CreateAlert(&models.ReconciliationAlert{
				EnterpriseID: 1, AlertType: models.AlertLabourVsCost, SubjectType: "labour_entry",
				SubjectID: uint(i + 1), Severity: models.SeverityHigh, Status: s,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	d, err := newEngine(st).Dashboard(context.Background(), scope, store.AlertFilter{Statuses: []models.AlertStatus{models.AlertResolved}})
	if err != nil {
		t.Fatal(err)
	}
	if d.ByStatus[models.AlertOpen] != 1 || d.ByStatus[models.AlertResolved] != 1 {
		t.Errorf("by status = %v", d.ByStatus)
	}
	if d.ByType[models.AlertLabourVsCost] != 2 || d.BySeverity[models.SeverityHigh] != 2 {
		t.Errorf("active counts = %v %v", d.ByType, d.BySeverity)
	}
	if len(d.Alerts) != 1 || d.Alerts[0].Status != models.AlertResolved {
		t.Errorf("filtered alerts = %+v", d.Alerts)
	}
}
