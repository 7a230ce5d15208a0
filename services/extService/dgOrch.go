package extService

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/greg-czaplicki/parlay-picker-sub005/models"
	"github.com/greg-czaplicki/parlay-picker-sub005/models/external"
)

const defaultBaseURL = "https://feeds.datagolf.com"

// DataGolfClient fetches live per-player round states from the DataGolf feed.
// The upstream is rate limited, so every request passes through a local
// limiter before it goes out.
type DataGolfClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type ClientOption func(*DataGolfClient)

func WithBaseURL(baseURL string) ClientOption {
	return func(c *DataGolfClient) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *DataGolfClient) {
		c.httpClient = httpClient
	}
}

// WithRateLimit overrides the default request budget against the feed.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *DataGolfClient) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func NewDataGolfClient(apiKey string, opts ...ClientOption) *DataGolfClient {
	c := &DataGolfClient{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *DataGolfClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("key", c.apiKey)
	params.Set("file_format", "json")

	requestURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("datagolf request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("datagolf returned %d for %s: %s", resp.StatusCode, path, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding datagolf response for %s: %w", path, err)
	}
	return nil
}

// FetchPlayerRoundStates returns the live standing of every player in the
// event. Transport, status, and decode failures surface as errors, as does a
// payload whose info block names a different event; the in-play feed serves
// whatever event is currently live regardless of the event_id parameter. An
// event the feed confirms but has no players for yields an empty slice, which
// the completion detector classifies as unavailable data.
func (c *DataGolfClient) FetchPlayerRoundStates(ctx context.Context, eventID int) ([]models.PlayerRoundState, error) {
	params := url.Values{}
	params.Set("event_id", strconv.Itoa(eventID))

	var payload external.DG_InPlayResponse
	if err := c.get(ctx, "/preds/in-play", params, &payload); err != nil {
		return nil, err
	}
	if payload.Info.EventID != eventID {
		return nil, fmt.Errorf("datagolf returned event %d when event %d was requested", payload.Info.EventID, eventID)
	}

	states := make([]models.PlayerRoundState, 0, len(payload.Stats))
	for _, player := range payload.Stats {
		states = append(states, toRoundState(player, payload.Info.CurrentRound))
	}
	return states, nil
}

// terminalPositions maps feed position markers to settlement statuses. "DQ"
// grades like a withdrawal.
var terminalPositions = map[string]models.PlayerStatus{
	"WD":  models.PlayerStatusWithdrawn,
	"DQ":  models.PlayerStatusWithdrawn,
	"CUT": models.PlayerStatusCut,
	"MC":  models.PlayerStatusCut,
	"F":   models.PlayerStatusFinished,
	"FIN": models.PlayerStatusFinished,
}

func toRoundState(player external.DG_LivePlayer, currentRound int) models.PlayerRoundState {
	state := models.PlayerRoundState{
		DgID:        player.DgID,
		PlayerName:  player.PlayerName,
		RoundScores: make(map[int]int),
	}

	if status, ok := terminalPositions[strings.ToUpper(strings.TrimSpace(player.Position))]; ok {
		state.Status = status
	}

	state.CurrentRound = currentRound
	if player.Round != nil {
		state.CurrentRound = *player.Round
	}
	if player.Thru != nil {
		state.Thru = *player.Thru
	}

	for roundNum, score := range map[int]*int{1: player.R1, 2: player.R2, 3: player.R3, 4: player.R4} {
		if score != nil {
			state.RoundScores[roundNum] = *score
		}
	}
	return state
}
