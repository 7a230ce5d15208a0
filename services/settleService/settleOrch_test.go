package settleService

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/metrics"
	"github.com/greg-czaplicki/parlay-picker-sub005/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "settle_test.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	err = db.AutoMigrate(
		&models.Tournament{},
		&models.Matchup{},
		&models.Parlay{},
		&models.ParlayPick{},
		&models.SettlementRun{},
		&models.ErrorLog{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test DB: %v", err)
	}
	return db
}

func newMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})

	return gormDB, mock, err
}

type fakeGateway struct {
	mu     sync.Mutex
	states map[int][]models.PlayerRoundState
	errs   map[int]error
	calls  map[int]int
}

func (g *fakeGateway) FetchPlayerRoundStates(ctx context.Context, eventID int) ([]models.PlayerRoundState, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[int]int)
	}
	g.calls[eventID]++
	if err := g.errs[eventID]; err != nil {
		return nil, err
	}
	return g.states[eventID], nil
}

type captureNotifier struct {
	mu      sync.Mutex
	settled []models.Parlay
}

func (n *captureNotifier) ParlaySettled(parlay models.Parlay) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.settled = append(n.settled, parlay)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.settled)
}

func newService(db *gorm.DB, gateway ResultsGateway, notifier Notifier) *Service {
	return New(db, gateway, Config{Metrics: metrics.New(), Notifier: notifier})
}

type gradableFixture struct {
	twoBallMatchup   models.Matchup
	threeBallMatchup models.Matchup
	doubleParlay     models.Parlay
	singleParlay     models.Parlay
	pickWinner       models.ParlayPick
	pickPusher       models.ParlayPick
	pickLoser        models.ParlayPick
}

// seedGradableRound sets up one tournament's round 2 book: a 2-ball and a
// 3-ball, a two-leg parlay picking Scheffler and Morikawa, and a single-leg
// parlay picking Åberg.
func seedGradableRound(t *testing.T, db *gorm.DB, eventID int) gradableFixture {
	t.Helper()

	twoBallMatchup := twoBall(10091, "Scheffler, Scottie", 18417, "Åberg, Ludvig")
	twoBallMatchup.EventID = eventID
	twoBallMatchup.Player1Odds = intPtr(-120)
	twoBallMatchup.Player2Odds = intPtr(100)
	if err := db.Create(&twoBallMatchup).Error; err != nil {
		t.Fatalf("Failed to create 2-ball matchup: %v", err)
	}

	threeBallMatchup := threeBall(11676, "Morikawa, Collin", 15466, "Im, Sungjae", 12965, "Fitzpatrick, Matt")
	threeBallMatchup.EventID = eventID
	threeBallMatchup.Player1Odds = intPtr(150)
	threeBallMatchup.Player2Odds = intPtr(180)
	threeBallMatchup.Player3Odds = intPtr(200)
	if err := db.Create(&threeBallMatchup).Error; err != nil {
		t.Fatalf("Failed to create 3-ball matchup: %v", err)
	}

	doubleParlay := models.Parlay{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		RoundNum:        2,
		Stake:           decimal.NewFromInt(100),
		TotalOdds:       decimal.RequireFromString("4.5832"),
		PotentialPayout: decimal.RequireFromString("458.32"),
		Outcome:         models.ParlayOutcomePending,
	}
	if err := db.Create(&doubleParlay).Error; err != nil {
		t.Fatalf("Failed to create double parlay: %v", err)
	}

	singleParlay := models.Parlay{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		RoundNum:        2,
		Stake:           decimal.NewFromInt(50),
		TotalOdds:       decimal.NewFromInt(2),
		PotentialPayout: decimal.NewFromInt(100),
		Outcome:         models.ParlayOutcomePending,
	}
	if err := db.Create(&singleParlay).Error; err != nil {
		t.Fatalf("Failed to create single parlay: %v", err)
	}

	picks := []models.ParlayPick{
		{
			ID:               uuid.New(),
			ParlayID:         doubleParlay.ID,
			MatchupID:        twoBallMatchup.ID,
			PickedDgID:       10091,
			PickedName:       "Scheffler, Scottie",
			PickedOdds:       intPtr(-120),
			SettlementStatus: models.SettlementStatusPending,
		},
		{
			ID:               uuid.New(),
			ParlayID:         doubleParlay.ID,
			MatchupID:        threeBallMatchup.ID,
			PickedDgID:       11676,
			PickedName:       "Morikawa, Collin",
			PickedOdds:       intPtr(150),
			SettlementStatus: models.SettlementStatusPending,
		},
		{
			ID:               uuid.New(),
			ParlayID:         singleParlay.ID,
			MatchupID:        twoBallMatchup.ID,
			PickedDgID:       18417,
			PickedName:       "Åberg, Ludvig",
			PickedOdds:       intPtr(100),
			SettlementStatus: models.SettlementStatusPending,
		},
	}
	for i := range picks {
		if err := db.Create(&picks[i]).Error; err != nil {
			t.Fatalf("Failed to create pick %d: %v", i, err)
		}
	}

	return gradableFixture{
		twoBallMatchup:   twoBallMatchup,
		threeBallMatchup: threeBallMatchup,
		doubleParlay:     doubleParlay,
		singleParlay:     singleParlay,
		pickWinner:       picks[0],
		pickPusher:       picks[1],
		pickLoser:        picks[2],
	}
}

// completedRoundStates is a feed snapshot with every fixture player through
// 18 holes of round 2. Scheffler 67 beats Åberg 69; Morikawa 66 ties the best
// of Im 70 and Fitzpatrick 66.
func completedRoundStates() []models.PlayerRoundState {
	return []models.PlayerRoundState{
		playerState(10091, "Scheffler, Scottie", models.PlayerStatusActive, map[int]int{1: 68, 2: 67}),
		playerState(18417, "Åberg, Ludvig", models.PlayerStatusActive, map[int]int{1: 70, 2: 69}),
		playerState(11676, "Morikawa, Collin", models.PlayerStatusActive, map[int]int{1: 71, 2: 66}),
		playerState(15466, "Im, Sungjae", models.PlayerStatusActive, map[int]int{1: 69, 2: 70}),
		playerState(12965, "Fitzpatrick, Matt", models.PlayerStatusActive, map[int]int{1: 72, 2: 66}),
	}
}

func reloadPick(t *testing.T, db *gorm.DB, id uuid.UUID) models.ParlayPick {
	t.Helper()
	var pick models.ParlayPick
	if err := db.First(&pick, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to reload pick %s: %v", id, err)
	}
	return pick
}

func reloadParlay(t *testing.T, db *gorm.DB, id uuid.UUID) models.Parlay {
	t.Helper()
	var parlay models.Parlay
	if err := db.First(&parlay, "id = ?", id).Error; err != nil {
		t.Fatalf("Failed to reload parlay %s: %v", id, err)
	}
	return parlay
}

func TestSettleRoundsGradesCompletedRound(t *testing.T) {
	db := newTestDB(t)
	fixture := seedGradableRound(t, db, 540)
	gateway := &fakeGateway{states: map[int][]models.PlayerRoundState{540: completedRoundStates()}}
	notifier := &captureNotifier{}
	svc := newService(db, gateway, notifier)

	report, err := svc.SettlePendingRounds(context.Background())
	if err != nil {
		t.Fatalf("SettlePendingRounds returned error: %v", err)
	}

	assertEqual(t, "all", report.Scope, "Scope")
	assertEqual(t, 1, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 1, report.RoundsProcessed, "RoundsProcessed")
	assertEqual(t, 0, report.RoundsSkipped, "RoundsSkipped")
	assertEqual(t, 3, report.LegsSettled, "LegsSettled")
	assertEqual(t, 0, report.LegsAlreadySettled, "LegsAlreadySettled")
	assertEqual(t, 0, report.LegsPending, "LegsPending")
	assertEqual(t, 0, report.LegsErrored, "LegsErrored")
	assertEqual(t, 2, report.ParlaysSettled, "ParlaysSettled")
	assertEqual(t, 0, len(report.Errors), "Errors length")

	winner := reloadPick(t, db, fixture.pickWinner.ID)
	assertEqual(t, models.SettlementStatusSettled, winner.SettlementStatus, "Winner status")
	assertEqual(t, models.PickOutcomeWin, *winner.PickOutcome, "Winner outcome")
	if winner.SettledAt == nil {
		t.Error("Winner SettledAt should be set")
	}

	pusher := reloadPick(t, db, fixture.pickPusher.ID)
	assertEqual(t, models.PickOutcomePush, *pusher.PickOutcome, "Pusher outcome")

	loser := reloadPick(t, db, fixture.pickLoser.ID)
	assertEqual(t, models.PickOutcomeLoss, *loser.PickOutcome, "Loser outcome")

	// win + push: stake 100 multiplied by the -120 leg only
	double := reloadParlay(t, db, fixture.doubleParlay.ID)
	assertEqual(t, models.ParlayOutcomeWon, double.Outcome, "Double parlay outcome")
	assertEqual(t, true, double.IsSettled, "Double parlay IsSettled")
	if double.ActualPayout == nil {
		t.Fatal("Double parlay ActualPayout should be set")
	}
	assertEqual(t, "183.33", double.ActualPayout.StringFixed(2), "Double parlay payout")

	single := reloadParlay(t, db, fixture.singleParlay.ID)
	assertEqual(t, models.ParlayOutcomeLost, single.Outcome, "Single parlay outcome")
	if single.ActualPayout == nil {
		t.Fatal("Single parlay ActualPayout should be set")
	}
	assertEqual(t, "0.00", single.ActualPayout.StringFixed(2), "Single parlay payout")

	assertEqual(t, 2, notifier.count(), "Notified parlays")
}

func TestSettleRoundsLeavesIncompleteRoundPending(t *testing.T) {
	db := newTestDB(t)
	fixture := seedGradableRound(t, db, 540)

	// only 2 of 5 players done; threshold needs ceil(5 * 0.8) = 4
	states := completedRoundStates()
	for i := 2; i < 5; i++ {
		states[i].Thru = 9
		delete(states[i].RoundScores, 2)
	}
	gateway := &fakeGateway{states: map[int][]models.PlayerRoundState{540: states}}
	svc := newService(db, gateway, nil)

	report, err := svc.SettlePendingRounds(context.Background())
	if err != nil {
		t.Fatalf("SettlePendingRounds returned error: %v", err)
	}

	assertEqual(t, 1, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 0, report.RoundsProcessed, "RoundsProcessed")
	assertEqual(t, 1, report.RoundsSkipped, "RoundsSkipped")
	assertEqual(t, 0, report.LegsSettled, "LegsSettled")
	assertEqual(t, 3, report.LegsPending, "LegsPending")
	assertEqual(t, 0, report.ParlaysSettled, "ParlaysSettled")

	winner := reloadPick(t, db, fixture.pickWinner.ID)
	assertEqual(t, models.SettlementStatusPending, winner.SettlementStatus, "Pick status")
	double := reloadParlay(t, db, fixture.doubleParlay.ID)
	assertEqual(t, models.ParlayOutcomePending, double.Outcome, "Parlay outcome")
	assertEqual(t, false, double.IsSettled, "Parlay IsSettled")
}

func TestSettleRoundsSecondRunFindsNothing(t *testing.T) {
	db := newTestDB(t)
	seedGradableRound(t, db, 540)
	gateway := &fakeGateway{states: map[int][]models.PlayerRoundState{540: completedRoundStates()}}
	notifier := &captureNotifier{}
	svc := newService(db, gateway, notifier)

	if _, err := svc.SettlePendingRounds(context.Background()); err != nil {
		t.Fatalf("First run returned error: %v", err)
	}
	report, err := svc.SettlePendingRounds(context.Background())
	if err != nil {
		t.Fatalf("Second run returned error: %v", err)
	}

	assertEqual(t, 0, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 0, report.LegsSettled, "LegsSettled")
	assertEqual(t, 0, report.ParlaysSettled, "ParlaysSettled")
	assertEqual(t, 2, notifier.count(), "Notified parlays after both runs")
	assertEqual(t, 1, gateway.calls[540], "Feed fetches")
}

func TestSettleRoundsIsolatesFeedFailure(t *testing.T) {
	db := newTestDB(t)
	healthy := seedGradableRound(t, db, 540)
	broken := seedGradableRound(t, db, 666)
	gateway := &fakeGateway{
		states: map[int][]models.PlayerRoundState{540: completedRoundStates()},
		errs:   map[int]error{666: errors.New("connection refused")},
	}
	svc := newService(db, gateway, nil)

	report, err := svc.SettlePendingRounds(context.Background())
	if err != nil {
		t.Fatalf("SettlePendingRounds returned error: %v", err)
	}

	assertEqual(t, 2, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 3, report.LegsSettled, "LegsSettled")
	assertEqual(t, 3, report.LegsPending, "LegsPending")
	assertEqual(t, 1, len(report.Errors), "Errors length")
	assertEqual(t, 666, report.Errors[0].EventID, "Error EventID")
	if !strings.Contains(report.Errors[0].Message, "connection refused") {
		t.Errorf("Error message should carry the feed failure, got %q", report.Errors[0].Message)
	}

	settled := reloadPick(t, db, healthy.pickWinner.ID)
	assertEqual(t, models.SettlementStatusSettled, settled.SettlementStatus, "Healthy event pick status")
	pending := reloadPick(t, db, broken.pickWinner.ID)
	assertEqual(t, models.SettlementStatusPending, pending.SettlementStatus, "Broken event pick status")

	var logs []models.ErrorLog
	if err := db.Where("context = ?", "settle:event:666").Find(&logs).Error; err != nil {
		t.Fatalf("Failed to query error logs: %v", err)
	}
	assertEqual(t, 1, len(logs), "Error log rows")
}

func TestSettleRoundsReportsEmptyFeed(t *testing.T) {
	db := newTestDB(t)
	seedGradableRound(t, db, 540)
	gateway := &fakeGateway{}
	svc := newService(db, gateway, nil)

	report, err := svc.SettlePendingRounds(context.Background())
	if err != nil {
		t.Fatalf("SettlePendingRounds returned error: %v", err)
	}

	assertEqual(t, 1, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 0, report.RoundsProcessed, "RoundsProcessed")
	assertEqual(t, 3, report.LegsPending, "LegsPending")
	assertEqual(t, 1, len(report.Errors), "Errors length")
	assertEqual(t, ErrNoPlayerData.Error(), report.Errors[0].Message, "Error message")
}

func TestSettleTournamentScopesToOneEvent(t *testing.T) {
	db := newTestDB(t)
	inScope := seedGradableRound(t, db, 540)
	outOfScope := seedGradableRound(t, db, 541)
	gateway := &fakeGateway{states: map[int][]models.PlayerRoundState{
		540: completedRoundStates(),
		541: completedRoundStates(),
	}}
	svc := newService(db, gateway, nil)

	report, err := svc.SettleTournament(context.Background(), 540)
	if err != nil {
		t.Fatalf("SettleTournament returned error: %v", err)
	}

	assertEqual(t, "event:540", report.Scope, "Scope")
	assertEqual(t, 1, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 3, report.LegsSettled, "LegsSettled")
	assertEqual(t, 0, gateway.calls[541], "Out-of-scope feed fetches")

	settled := reloadPick(t, db, inScope.pickWinner.ID)
	assertEqual(t, models.SettlementStatusSettled, settled.SettlementStatus, "In-scope pick status")
	pending := reloadPick(t, db, outOfScope.pickWinner.ID)
	assertEqual(t, models.SettlementStatusPending, pending.SettlementStatus, "Out-of-scope pick status")
}

func TestSettleRoundsFlagsOrphanedLegs(t *testing.T) {
	db := newTestDB(t)

	matchup := twoBall(10091, "Scheffler, Scottie", 18417, "Åberg, Ludvig")
	if err := db.Create(&matchup).Error; err != nil {
		t.Fatalf("Failed to create matchup: %v", err)
	}
	badRoundParlay := models.Parlay{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		RoundNum: 5,
		Stake:    decimal.NewFromInt(10),
		Outcome:  models.ParlayOutcomePending,
	}
	if err := db.Create(&badRoundParlay).Error; err != nil {
		t.Fatalf("Failed to create parlay: %v", err)
	}

	orphans := []models.ParlayPick{
		// matchup row missing
		{ID: uuid.New(), ParlayID: badRoundParlay.ID, MatchupID: 9999, PickedDgID: 10091, SettlementStatus: models.SettlementStatusPending},
		// parlay row missing
		{ID: uuid.New(), ParlayID: uuid.New(), MatchupID: matchup.ID, PickedDgID: 10091, SettlementStatus: models.SettlementStatusPending},
		// parlay round outside 1-4
		{ID: uuid.New(), ParlayID: badRoundParlay.ID, MatchupID: matchup.ID, PickedDgID: 10091, SettlementStatus: models.SettlementStatusPending},
	}
	for i := range orphans {
		if err := db.Create(&orphans[i]).Error; err != nil {
			t.Fatalf("Failed to create orphan pick %d: %v", i, err)
		}
	}

	gateway := &fakeGateway{}
	svc := newService(db, gateway, nil)

	report, err := svc.SettlePendingRounds(context.Background())
	if err != nil {
		t.Fatalf("SettlePendingRounds returned error: %v", err)
	}

	assertEqual(t, 0, report.TournamentsChecked, "TournamentsChecked")
	assertEqual(t, 0, report.LegsSettled, "LegsSettled")
	assertEqual(t, 3, report.LegsErrored, "LegsErrored")
	assertEqual(t, 3, len(report.Errors), "Errors length")
	assertEqual(t, 0, len(gateway.calls), "Feed fetches")

	messages := make(map[string]bool)
	for _, runErr := range report.Errors {
		messages[runErr.Message] = true
	}
	if !messages[ErrMissingMatchup.Error()] {
		t.Error("Expected a missing-matchup error")
	}
	if !messages[ErrMissingParlay.Error()] {
		t.Error("Expected a missing-parlay error")
	}
	foundBadRound := false
	for message := range messages {
		if strings.Contains(message, ErrInvalidRound.Error()) {
			foundBadRound = true
		}
	}
	if !foundBadRound {
		t.Error("Expected an invalid-round error")
	}
}

func TestApplyPickOutcomePendingGuard(t *testing.T) {
	pick := models.ParlayPick{
		ID:      uuid.New(),
		Matchup: models.Matchup{EventID: 540},
	}
	resolution := LegResolution{Outcome: models.PickOutcomeWin, Decisive: true, PickedScore: intPtr(67), BestOpponent: intPtr(69)}

	t.Run("Zero rows affected is a benign conflict", func(t *testing.T) {
		gormDB, mock, err := newMockDB()
		if err != nil {
			t.Fatalf("Failed to open mock DB: %v", err)
		}
		svc := New(gormDB, nil, Config{Metrics: metrics.New()})
		builder := newReportBuilder(AllPending(), time.Now())

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `parlay_picks` SET").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		svc.applyPickOutcome(context.Background(), pick, 2, resolution, builder)

		report := builder.finish()
		assertEqual(t, 1, report.LegsAlreadySettled, "LegsAlreadySettled")
		assertEqual(t, 0, report.LegsSettled, "LegsSettled")
		assertEqual(t, 0, report.LegsErrored, "LegsErrored")
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet mock expectations: %v", err)
		}
	})

	t.Run("Write failure lands in the report", func(t *testing.T) {
		gormDB, mock, err := newMockDB()
		if err != nil {
			t.Fatalf("Failed to open mock DB: %v", err)
		}
		svc := New(gormDB, nil, Config{Metrics: metrics.New()})
		builder := newReportBuilder(AllPending(), time.Now())

		mock.ExpectBegin()
		mock.ExpectExec("UPDATE `parlay_picks` SET").WillReturnError(errors.New("lock wait timeout"))
		mock.ExpectRollback()

		svc.applyPickOutcome(context.Background(), pick, 2, resolution, builder)

		report := builder.finish()
		assertEqual(t, 1, report.LegsErrored, "LegsErrored")
		assertEqual(t, 1, len(report.Errors), "Errors length")
		if !strings.Contains(report.Errors[0].Message, "lock wait timeout") {
			t.Errorf("Error message should carry the write failure, got %q", report.Errors[0].Message)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("Unmet mock expectations: %v", err)
		}
	})
}
