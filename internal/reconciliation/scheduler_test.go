package reconciliation

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/store/memstore"

	"github.com/sirupsen/logrus"
)

func TestRunAllSkipsLockedEnterprise(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	var busy, idle uint
	err := st.Tx(ctx, func(tx store.Tx) error {
		a := models.Enterprise{Name: "North packhouse"}
		if err := tx.CreateEnterprise(&a); err != nil {
			return err
		}
		b := models.Enterprise{Name: "South packhouse"}
		if err := tx.CreateEnterprise(&b); err != nil {
			return err
		}
		busy, idle = a.ID, b.ID
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []uint{busy, idle} {
		st.PutLabourEntry(models.LabourEntry{
			EnterpriseID: id, Team: "packing", WorkDate: time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
			Hours: 10, HourlyRate: dec("20"), RecordedCost: dec("260"),
		})
	}

	locker := NewLocalLocker()
	release, err := locker.Acquire(ctx, fmt.Sprintf("recon:%d", busy))
	if err != nil {
		t.Fatal(err)
	}
	defer release(ctx)

	log := logrus.New()
	log.SetOutput(io.Discard)
	e := NewEngine(st, locker, Settings{Workers: 2, ColdStorageMaxGapHours: 4}, log)
	NewScheduler(e, time.Hour).RunAll(ctx)

	count := func(enterpriseID uint) int {
		var n int
		_ = st.Tx(ctx, func(tx store.Tx) error {
			got, err := tx.ListAlerts(enterpriseID, store.AlertFilter{})
			n = len(got)
			return err
		})
		return n
	}
	if n := count(busy); n != 0 {
		t.Fatalf("locked enterprise got %d alerts, want 0", n)
	}
	if n := count(idle); n != 1 {
		t.Fatalf("next enterprise got %d alerts, want 1", n)
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := NewEngine(memstore.New(), NewLocalLocker(), Settings{}, log)

	ctx, cancel := context.WithCancel(context.Background())
	done := NewScheduler(e, time.Millisecond).Start(ctx)
	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
