package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/metrics"
	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/scheduler/scheduler_jobs"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/settleService"
)

// SetupCron registers the recurring settlement sweep and starts the
// scheduler. The returned cron is stopped by the caller on shutdown.
func SetupCron(db *gorm.DB, settler *settleService.Service, m *metrics.SettlementMetrics, spec string) *cron.Cron {
	cronService := cron.New(cron.WithSeconds())

	_, err := cronService.AddFunc(spec, func() {
		err := scheduler_jobs.CheckRoundSettlement(db, settler, m)
		if err != nil {
			fmt.Println(err)
		}
	})

	if err != nil {
		errLog := models.ErrorLog{
			Context: "CRON ERR",
			Message: fmt.Sprintf("%v", err),
		}
		db.Create(&errLog)
	}

	cronService.Start()
	return cronService
}
