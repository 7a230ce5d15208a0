package settleService

import (
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
)

// RunError records one failure inside a run without aborting it.
type RunError struct {
	EventID  int    `json:"event_id,omitempty"`
	RoundNum int    `json:"round_num,omitempty"`
	PickID   string `json:"pick_id,omitempty"`
	Message  string `json:"message"`
}

// RunReport aggregates one settlement invocation for the caller. It is
// ephemeral; PersistRun turns it into a durable SettlementRun row.
type RunReport struct {
	Scope              string     `json:"scope"`
	StartedAt          time.Time  `json:"started_at"`
	FinishedAt         time.Time  `json:"finished_at"`
	TournamentsChecked int        `json:"tournaments_checked"`
	RoundsProcessed    int        `json:"rounds_processed"`
	RoundsSkipped      int        `json:"rounds_skipped"`
	LegsSettled        int        `json:"legs_settled"`
	LegsAlreadySettled int        `json:"legs_already_settled"`
	LegsPending        int        `json:"legs_pending"`
	LegsErrored        int        `json:"legs_errored"`
	ParlaysSettled     int        `json:"parlays_settled"`
	Errors             []RunError `json:"errors,omitempty"`
}

// reportBuilder accumulates a RunReport across concurrently settled
// tournament groups.
type reportBuilder struct {
	mu     sync.Mutex
	report RunReport
}

func newReportBuilder(scope Scope, started time.Time) *reportBuilder {
	return &reportBuilder{report: RunReport{Scope: scope.String(), StartedAt: started}}
}

func (b *reportBuilder) tournamentChecked() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.TournamentsChecked++
}

func (b *reportBuilder) roundProcessed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.RoundsProcessed++
}

// roundSkipped counts a round that is not yet settleable; its legs stay
// pending.
func (b *reportBuilder) roundSkipped(legs int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.RoundsSkipped++
	b.report.LegsPending += legs
}

func (b *reportBuilder) legSettled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.LegsSettled++
}

func (b *reportBuilder) legAlreadySettled() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.LegsAlreadySettled++
}

func (b *reportBuilder) legError(runErr RunError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.LegsErrored++
	b.report.Errors = append(b.report.Errors, runErr)
}

// groupFailed records a tournament group that could not be graded this run;
// every one of its legs stays pending for the next invocation.
func (b *reportBuilder) groupFailed(legs int, runErr RunError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.LegsPending += legs
	b.report.Errors = append(b.report.Errors, runErr)
}

func (b *reportBuilder) parlayError(runErr RunError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.Errors = append(b.report.Errors, runErr)
}

func (b *reportBuilder) parlaysSettled(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.ParlaysSettled += n
}

func (b *reportBuilder) finish() RunReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report.FinishedAt = time.Now()
	return b.report
}

// PersistRun stores the durable record of one sweep for the run-history API.
func PersistRun(db *gorm.DB, trigger string, report RunReport) error {
	run := models.SettlementRun{
		Trigger:            trigger,
		Scope:              report.Scope,
		TournamentsChecked: report.TournamentsChecked,
		RoundsProcessed:    report.RoundsProcessed,
		RoundsSkipped:      report.RoundsSkipped,
		LegsSettled:        report.LegsSettled,
		LegsAlreadySettled: report.LegsAlreadySettled,
		LegsPending:        report.LegsPending,
		LegsErrored:        report.LegsErrored,
		ParlaysSettled:     report.ParlaysSettled,
		ErrorCount:         len(report.Errors),
		StartedAt:          report.StartedAt,
		FinishedAt:         report.FinishedAt,
		DurationMs:         report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	}
	return db.Create(&run).Error
}
