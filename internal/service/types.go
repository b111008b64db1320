package service

// TeamList is the roster of raw team spellings
type TeamList struct {
	Teams      []string `json:"teams"`
	TotalTeams int      `json:"total_teams"`
}

// HeadToHead is the record between two queried teams. Wins repeats the two win
// counts keyed by the identifiers as they were queried.
type HeadToHead struct {
	Team1        string         `json:"team1"`
	Team2        string         `json:"team2"`
	TotalMatches int            `json:"total_matches"`
	Team1Wins    int            `json:"team1_wins"`
	Team2Wins    int            `json:"team2_wins"`
	NoResult     int            `json:"no_result"`
	Wins         map[string]int `json:"wins"`
}

// Record is a win/loss/no-result tally. Won+Lost+NoResult always equals MatchesPlayed.
type Record struct {
	MatchesPlayed int `json:"matches_played"`
	Won           int `json:"won"`
	Lost          int `json:"lost"`
	NoResult      int `json:"no_result"`
}

func (r *Record) add(o outcome) {
	r.MatchesPlayed++
	switch o {
	case outcomeWon:
		r.Won++
	case outcomeLost:
		r.Lost++
	default:
		r.NoResult++
	}
}

// TeamRecord is a team's overall record plus one Record per opponent spelling
type TeamRecord struct {
	Team string `json:"team"`
	Record
	Against map[string]*Record `json:"against"`
}

// BattingRecord reports match outcomes under batting labels.
type BattingRecord struct {
	Team          string `json:"team"`
	MatchesPlayed int    `json:"matches_played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	NoResult      int    `json:"no_result"`
	Note          string `json:"note"`
}

// BowlingRecord reports match outcomes under bowling labels.
type BowlingRecord struct {
	Team                 string `json:"team"`
	MatchesPlayed        int    `json:"matches_played"`
	SuccessfullyDefended int    `json:"successfully_defended"`
	FailedDefense        int    `json:"failed_defense"`
	NoResult             int    `json:"no_result"`
	Note                 string `json:"note"`
}
