package scheduler_jobs

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/metrics"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/common"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/settleService"
)

// CheckRoundSettlement is the recurring sweep. It grades every pending leg
// whose round has completed, across all tournaments with open parlays.
func CheckRoundSettlement(db *gorm.DB, settler *settleService.Service, m *metrics.SettlementMetrics) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovered in CheckRoundSettlement", r)
			debug.PrintStack()
			err = fmt.Errorf("panic recovered in CheckRoundSettlement: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	started := time.Now()
	report, err := settler.SettlePendingRounds(ctx)
	if err != nil {
		m.RecordRun("cron", "failed", time.Since(started).Seconds())
		common.SendError(db, "cron:settle", err)
		return err
	}
	m.RecordRun("cron", "ok", report.FinishedAt.Sub(report.StartedAt).Seconds())

	if persistErr := settleService.PersistRun(db, "cron", report); persistErr != nil {
		common.SendError(db, "cron:settle", persistErr)
	}

	log.Printf("settlement sweep (%s): %d tournaments checked, %d rounds processed, %d skipped, %d legs settled, %d parlays closed, %d errors",
		report.Scope, report.TournamentsChecked, report.RoundsProcessed, report.RoundsSkipped,
		report.LegsSettled, report.ParlaysSettled, len(report.Errors))

	return nil
}
