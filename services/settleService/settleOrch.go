package settleService

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/metrics"
	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/common"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/parlayService"
)

// tournamentRounds are the round numbers a golf event can settle.
var tournamentRounds = []int{1, 2, 3, 4}

// ResultsGateway supplies live player states for an event.
type ResultsGateway interface {
	FetchPlayerRoundStates(ctx context.Context, eventID int) ([]models.PlayerRoundState, error)
}

// Notifier is told when a parlay reaches a terminal outcome. Implementations
// absorb their own failures; notifying never blocks settlement.
type Notifier interface {
	ParlaySettled(parlay models.Parlay)
}

// Scope selects which pending legs a run settles.
type Scope struct {
	EventID int // 0 settles every tournament with pending legs
}

func AllPending() Scope {
	return Scope{}
}

func TournamentScope(eventID int) Scope {
	return Scope{EventID: eventID}
}

func (sc Scope) String() string {
	if sc.EventID == 0 {
		return "all"
	}
	return "event:" + strconv.Itoa(sc.EventID)
}

// Config tunes a settlement Service. Zero values fall back to production
// defaults.
type Config struct {
	Policy         CompletionPolicy
	Workers        int           // concurrent tournament groups
	GatewayTimeout time.Duration // per-event results fetch budget
	Metrics        *metrics.SettlementMetrics
	Notifier       Notifier
}

// Service is the settlement orchestrator. It owns every write to
// settlement_status, pick_outcome, and the derived parlay outcome.
type Service struct {
	db       *gorm.DB
	gateway  ResultsGateway
	policy   CompletionPolicy
	workers  int
	timeout  time.Duration
	metrics  *metrics.SettlementMetrics
	notifier Notifier
}

func New(db *gorm.DB, gateway ResultsGateway, cfg Config) *Service {
	if cfg.Policy.Threshold <= 0 || cfg.Policy.Threshold > 1 {
		cfg.Policy = DefaultCompletionPolicy()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 30 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Service{
		db:       db,
		gateway:  gateway,
		policy:   cfg.Policy,
		workers:  cfg.Workers,
		timeout:  cfg.GatewayTimeout,
		metrics:  cfg.Metrics,
		notifier: cfg.Notifier,
	}
}

// SettlePendingRounds grades every tournament with pending legs. This is the
// round strategy, the preferred trigger shape.
func (s *Service) SettlePendingRounds(ctx context.Context) (RunReport, error) {
	return s.SettleRounds(ctx, AllPending())
}

// SettleTournament grades a single tournament's pending legs, whatever rounds
// they are in. Legacy coarse trigger kept for manual retriggers.
func (s *Service) SettleTournament(ctx context.Context, eventID int) (RunReport, error) {
	return s.SettleRounds(ctx, TournamentScope(eventID))
}

// SettleRounds finds pending legs in scope, grades every settleable round,
// and reports what happened. Failures inside one tournament group are
// isolated into the report; only failing to query pending legs at all returns
// an error. Safe for arbitrary repeated or overlapping invocation: every leg
// write is guarded by its pending status.
func (s *Service) SettleRounds(ctx context.Context, scope Scope) (RunReport, error) {
	builder := newReportBuilder(scope, time.Now())

	query := s.db.WithContext(ctx).
		Joins("Matchup").
		Joins("Parlay").
		Where("parlay_picks.settlement_status = ?", models.SettlementStatusPending)
	if scope.EventID != 0 {
		query = query.Where("matchup_id IN (?)",
			s.db.Model(&models.Matchup{}).Select("id").Where("event_id = ?", scope.EventID))
	}

	var picks []models.ParlayPick
	if err := query.Find(&picks).Error; err != nil {
		return RunReport{}, fmt.Errorf("querying pending picks: %w", err)
	}

	s.metrics.SetPendingLegs(float64(len(picks)))

	// eventID -> roundNum -> legs
	groups := make(map[int]map[int][]models.ParlayPick)
	for _, pick := range picks {
		if pick.Matchup.ID == 0 {
			builder.legError(RunError{PickID: pick.ID.String(), Message: ErrMissingMatchup.Error()})
			s.metrics.RecordLegError()
			continue
		}
		if pick.Parlay.ID == uuid.Nil {
			builder.legError(RunError{EventID: pick.Matchup.EventID, PickID: pick.ID.String(), Message: ErrMissingParlay.Error()})
			s.metrics.RecordLegError()
			continue
		}
		roundNum := pick.Parlay.RoundNum
		if !common.Contains(tournamentRounds, roundNum) {
			builder.legError(RunError{
				EventID:  pick.Matchup.EventID,
				RoundNum: roundNum,
				PickID:   pick.ID.String(),
				Message:  fmt.Sprintf("%v: %d", ErrInvalidRound, roundNum),
			})
			s.metrics.RecordLegError()
			continue
		}

		eventID := pick.Matchup.EventID
		if groups[eventID] == nil {
			groups[eventID] = make(map[int][]models.ParlayPick)
		}
		groups[eventID][roundNum] = append(groups[eventID][roundNum], pick)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for eventID, rounds := range groups {
		g.Go(func() error {
			// group failures land in the report, never cancel siblings
			s.settleEvent(gctx, eventID, rounds, builder)
			return nil
		})
	}
	g.Wait()

	report := builder.finish()
	return report, nil
}

// settleEvent grades every pending round of one tournament from a single feed
// fetch.
func (s *Service) settleEvent(ctx context.Context, eventID int, rounds map[int][]models.ParlayPick, builder *reportBuilder) {
	builder.tournamentChecked()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	states, err := s.gateway.FetchPlayerRoundStates(fetchCtx, eventID)
	if err != nil {
		s.metrics.RecordGatewayError()
		builder.groupFailed(countLegs(rounds), RunError{
			EventID: eventID,
			Message: fmt.Sprintf("fetching player states: %v", err),
		})
		common.SendError(s.db, fmt.Sprintf("settle:event:%d", eventID), err)
		return
	}
	if len(states) == 0 {
		for range rounds {
			s.metrics.RecordRoundSkipped("no_data")
		}
		builder.groupFailed(countLegs(rounds), RunError{
			EventID: eventID,
			Message: ErrNoPlayerData.Error(),
		})
		return
	}

	idx := NewStateIndex(states)
	parlayIDs := make(map[uuid.UUID]struct{})

	for roundNum, legs := range rounds {
		completion, err := s.policy.IsRoundComplete(states, roundNum)
		if err != nil {
			builder.groupFailed(len(legs), RunError{EventID: eventID, RoundNum: roundNum, Message: err.Error()})
			continue
		}
		if !completion.Complete {
			log.Printf("event %d round %d not settleable yet (%d/%d players done)",
				eventID, roundNum, completion.CompletedPlayers, completion.TotalPlayers)
			builder.roundSkipped(len(legs))
			s.metrics.RecordRoundSkipped("incomplete")
			continue
		}

		builder.roundProcessed()
		for _, pick := range legs {
			resolution := ResolveLeg(pick, pick.Matchup, roundNum, idx)
			s.applyPickOutcome(ctx, pick, roundNum, resolution, builder)
			parlayIDs[pick.ParlayID] = struct{}{}
		}
	}

	// derived parlay outcomes follow the leg writes
	settled := 0
	for parlayID := range parlayIDs {
		parlay, becameTerminal, err := parlayService.RecomputeParlayOutcome(s.db.WithContext(ctx), parlayID)
		if err != nil {
			builder.parlayError(RunError{
				EventID: eventID,
				Message: fmt.Sprintf("recomputing parlay %s: %v", parlayID, err),
			})
			continue
		}
		if becameTerminal {
			settled++
			if s.notifier != nil {
				s.notifier.ParlaySettled(parlay)
			}
		}
	}
	builder.parlaysSettled(settled)
}

// applyPickOutcome writes a terminal grade through the pending guard. Zero
// rows affected means another run got there first; that leg is already done.
func (s *Service) applyPickOutcome(ctx context.Context, pick models.ParlayPick, roundNum int, resolution LegResolution, builder *reportBuilder) {
	result := s.db.WithContext(ctx).Model(&models.ParlayPick{}).
		Where("id = ? AND settlement_status = ?", pick.ID, models.SettlementStatusPending).
		Updates(map[string]interface{}{
			"settlement_status": models.SettlementStatusSettled,
			"pick_outcome":      resolution.Outcome,
			"settled_at":        time.Now(),
		})
	if result.Error != nil {
		builder.legError(RunError{
			EventID:  pick.Matchup.EventID,
			RoundNum: roundNum,
			PickID:   pick.ID.String(),
			Message:  fmt.Sprintf("writing outcome: %v", result.Error),
		})
		s.metrics.RecordLegError()
		return
	}
	if result.RowsAffected == 0 {
		builder.legAlreadySettled()
		s.metrics.RecordLegConflict()
		return
	}

	log.Printf("settled pick %s on event %d round %d: %s", pick.ID, pick.Matchup.EventID, roundNum, resolution)
	builder.legSettled()
	s.metrics.RecordLegSettled(string(resolution.Outcome))
}

func countLegs(rounds map[int][]models.ParlayPick) int {
	total := 0
	for _, legs := range rounds {
		total += len(legs)
	}
	return total
}
