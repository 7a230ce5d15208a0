package external

type DG_InPlayResponse struct {
	Info  DG_EventInfo    `json:"info"`
	Stats []DG_LivePlayer `json:"live_stats"`
}

type DG_EventInfo struct {
	EventID      int    `json:"event_id"`
	EventName    string `json:"event_name"`
	Tour         string `json:"tour"`
	CurrentRound int    `json:"current_round"`
	LastUpdated  string `json:"last_updated"`
}

type DG_LivePlayer struct {
	DgID       int     `json:"dg_id"`
	PlayerName string  `json:"player_name"`
	Country    string  `json:"country"`
	Position   string  `json:"current_pos"`
	Total      *int    `json:"total"`
	Today      *int    `json:"today"`
	Thru       *int    `json:"thru"`
	Round      *int    `json:"round"`
	R1         *int    `json:"r1"`
	R2         *int    `json:"r2"`
	R3         *int    `json:"r3"`
	R4         *int    `json:"r4"`
	EndHole    *int    `json:"end_hole"`
	Course     *string `json:"course"`
}
