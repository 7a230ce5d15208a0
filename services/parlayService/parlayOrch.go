package parlayService

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/common"
)

// AggregateOutcome derives a parlay's grade from its legs. One lost leg loses
// the parlay immediately, even while other legs run. Pushes and voids do not
// break a win; they drop out of the payout instead (see SettledPayout).
func AggregateOutcome(picks []models.ParlayPick) models.ParlayOutcome {
	if len(picks) == 0 {
		return models.ParlayOutcomePending
	}

	anyPending := false
	anyLoss := false
	anyWin := false
	anyPush := false
	for _, pick := range picks {
		if pick.SettlementStatus != models.SettlementStatusSettled || pick.PickOutcome == nil {
			anyPending = true
			continue
		}
		switch *pick.PickOutcome {
		case models.PickOutcomeLoss:
			anyLoss = true
		case models.PickOutcomeWin:
			anyWin = true
		case models.PickOutcomePush:
			anyPush = true
		}
	}

	switch {
	case anyLoss:
		return models.ParlayOutcomeLost
	case anyPending:
		return models.ParlayOutcomePending
	case anyWin:
		return models.ParlayOutcomeWon
	case anyPush:
		return models.ParlayOutcomePush
	default:
		return models.ParlayOutcomeVoid
	}
}

// SettledPayout computes the amount owed for a terminal outcome. A won parlay
// recombines the snapshotted odds of its winning legs only: pushed and voided
// legs contribute a 1.0 multiplier. Push and void parlays return the stake;
// lost pays nothing. A winning leg without snapshotted odds also contributes
// 1.0 rather than inventing a price.
func SettledPayout(outcome models.ParlayOutcome, stake decimal.Decimal, picks []models.ParlayPick) decimal.Decimal {
	switch outcome {
	case models.ParlayOutcomeWon:
		var wonOdds []int
		for _, pick := range picks {
			if pick.PickOutcome != nil && *pick.PickOutcome == models.PickOutcomeWin && pick.PickedOdds != nil {
				wonOdds = append(wonOdds, *pick.PickedOdds)
			}
		}
		return common.PayoutForStake(stake, common.CombinedOdds(wonOdds))
	case models.ParlayOutcomePush, models.ParlayOutcomeVoid:
		return stake.Round(2)
	default:
		return decimal.Zero
	}
}

// RecomputeParlayOutcome reloads a parlay's legs, rederives its outcome, and
// persists the change. The write is guarded on is_settled so a terminal
// parlay row is never regraded, even by overlapping runs. Returns the loaded
// parlay and whether this call settled it.
func RecomputeParlayOutcome(db *gorm.DB, parlayID uuid.UUID) (models.Parlay, bool, error) {
	var parlay models.Parlay
	err := db.Preload("Picks").Preload("Picks.Matchup").First(&parlay, "id = ?", parlayID).Error
	if err != nil {
		return models.Parlay{}, false, fmt.Errorf("loading parlay %s: %w", parlayID, err)
	}

	outcome := AggregateOutcome(parlay.Picks)
	if outcome == parlay.Outcome || parlay.IsSettled {
		return parlay, false, nil
	}

	updates := map[string]interface{}{"outcome": outcome}
	terminal := outcome.Terminal()
	var payout decimal.Decimal
	var settledAt time.Time
	if terminal {
		settledAt = time.Now()
		payout = SettledPayout(outcome, parlay.Stake, parlay.Picks)
		updates["is_settled"] = true
		updates["settled_at"] = settledAt
		updates["actual_payout"] = payout
	}

	result := db.Model(&models.Parlay{}).
		Where("id = ? AND is_settled = ?", parlayID, false).
		Updates(updates)
	if result.Error != nil {
		return parlay, false, fmt.Errorf("updating parlay %s: %w", parlayID, result.Error)
	}
	if result.RowsAffected == 0 {
		// settled elsewhere between the read and the write
		return parlay, false, nil
	}

	parlay.Outcome = outcome
	if terminal {
		parlay.IsSettled = true
		parlay.SettledAt = &settledAt
		parlay.ActualPayout = &payout
	}
	return parlay, terminal, nil
}

// ReconcileParlayOutcomes rederives the outcome of every unsettled parlay.
// Run at startup, it closes parlays left stale by a crash that landed between
// the leg writes and the parlay update.
func ReconcileParlayOutcomes(db *gorm.DB) (int, error) {
	var parlayIDs []uuid.UUID
	err := db.Model(&models.Parlay{}).Where("is_settled = ?", false).Pluck("id", &parlayIDs).Error
	if err != nil {
		return 0, fmt.Errorf("listing unsettled parlays: %w", err)
	}

	reconciled := 0
	for _, parlayID := range parlayIDs {
		_, becameTerminal, err := RecomputeParlayOutcome(db, parlayID)
		if err != nil {
			common.SendError(db, "reconcile", err)
			continue
		}
		if becameTerminal {
			reconciled++
		}
	}
	return reconciled, nil
}
