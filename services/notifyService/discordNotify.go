package notifyService

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"gorm.io/gorm"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/services/common"
)

// DiscordNotifier posts parlay settlement embeds to a channel. It only uses
// the REST API; the session never opens the gateway socket.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
	db        *gorm.DB
}

func NewDiscordNotifier(token, channelID string, db *gorm.DB) (*DiscordNotifier, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channelID: channelID, db: db}, nil
}

// ParlaySettled posts the terminal grade of a parlay. Failures are recorded
// and absorbed; a dead channel never blocks settlement.
func (n *DiscordNotifier) ParlaySettled(parlay models.Parlay) {
	embed := buildParlayEmbed(parlay)
	_, err := n.session.ChannelMessageSendComplex(n.channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
	})
	if err != nil {
		common.SendError(n.db, "notify", fmt.Errorf("sending parlay notification: %w", err))
	}
}

func buildParlayEmbed(parlay models.Parlay) *discordgo.MessageEmbed {
	var title string
	var color int
	switch parlay.Outcome {
	case models.ParlayOutcomeWon:
		title = "Parlay Hit!"
		color = 0x57F287 // Discord green
	case models.ParlayOutcomeLost:
		title = "Parlay Lost"
		color = 0xED4245 // Discord red
	default:
		title = "Parlay Closed"
		color = 0x99AAB5 // Discord grey
	}

	var description strings.Builder
	description.WriteString(fmt.Sprintf("Parlay `%s` settled **%s**\n\n", shortID(parlay), parlay.Outcome))
	description.WriteString(fmt.Sprintf("**Stake:** %s\n", parlay.Stake.StringFixed(2)))
	description.WriteString(fmt.Sprintf("**Combined Odds:** %sx\n", parlay.TotalOdds.StringFixed(2)))
	if parlay.ActualPayout != nil {
		description.WriteString(fmt.Sprintf("**Payout:** %s\n", parlay.ActualPayout.StringFixed(2)))
	}

	description.WriteString("\n**Legs:**\n")
	for idx, pick := range parlay.Picks {
		status := "pending"
		if pick.PickOutcome != nil {
			status = string(*pick.PickOutcome)
		}
		description.WriteString(fmt.Sprintf("%d. R%d %s: **%s** - %s\n",
			idx+1, pick.Matchup.RoundNum, matchupLabel(pick.Matchup), pick.PickedName, status))
	}

	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description.String(),
		Color:       color,
	}
}

func matchupLabel(matchup models.Matchup) string {
	names := make([]string, 0, 3)
	for _, player := range matchup.Players() {
		names = append(names, player.Name)
	}
	return strings.Join(names, " / ")
}

func shortID(parlay models.Parlay) string {
	id := parlay.ID.String()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
