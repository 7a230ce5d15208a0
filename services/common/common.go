package common

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
)

// SendError logs an error and records it durably so failures absorbed by the
// pipeline stay visible to operators.
func SendError(db *gorm.DB, context string, err error) {
	log.Printf("[%s] %v", context, err)

	errLog := models.ErrorLog{
		Context: context,
		Message: fmt.Sprintf("%v", err),
	}
	db.Create(&errLog)
}

// FormatOdds renders american odds with an explicit sign (+150, -120).
func FormatOdds(odds int) string {
	if odds > 0 {
		return fmt.Sprintf("+%d", odds)
	}
	return strconv.Itoa(odds)
}

// AmericanToDecimal converts american odds to a decimal multiplier.
// +150 -> 2.5, -120 -> 1.8333. Rounded half to even at 4 decimal places.
func AmericanToDecimal(odds int) decimal.Decimal {
	one := decimal.NewFromInt(1)
	hundred := decimal.NewFromInt(100)

	if odds > 0 {
		return decimal.NewFromInt(int64(odds)).Div(hundred).Add(one).RoundBank(4)
	}
	return hundred.Div(decimal.NewFromInt(int64(-odds))).Add(one).RoundBank(4)
}

// CombinedOdds multiplies per-leg american odds into a parlay multiplier,
// carrying the same 4 decimal place precision as the per-leg conversion.
// An empty list is a 1.0 multiplier (stake back, no profit).
func CombinedOdds(oddsList []int) decimal.Decimal {
	multiplier := decimal.NewFromInt(1)
	for _, odds := range oddsList {
		multiplier = multiplier.Mul(AmericanToDecimal(odds))
	}
	return multiplier.RoundBank(4)
}

// PayoutForStake computes the gross payout for a stake at a combined
// multiplier, rounded to cents.
func PayoutForStake(stake decimal.Decimal, multiplier decimal.Decimal) decimal.Decimal {
	return stake.Mul(multiplier).Round(2)
}

// NormalizePlayerName folds case and strips diacritics so feed names match
// stored names ("Åberg, Ludvig" and "aberg, ludvig" compare equal). Matchup
// rows older than the player-id backfill only carry names.
func NormalizePlayerName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func Contains[T comparable](s []T, e T) bool {
	for _, v := range s {
		if v == e {
			return true
		}
	}
	return false
}
