// Package matches collapses the delivery log into one canonical row per match.
package matches

import (
	"sort"

	"github.com/fortuna/iplstats/internal/dataset"
)

// Match is a canonical two-team contest. Team1 sorts before Team2.
// Winner is nil for a no-result.
type Match struct {
	MatchID string  `json:"match_id"`
	Team1   string  `json:"team1"`
	Team2   string  `json:"team2"`
	Winner  *string `json:"winner"`
}

// HasWinner reports whether the match produced a result.
func (m Match) HasWinner() bool {
	return m.Winner != nil
}

// WinnerName returns the winner, or "" for a no-result.
func (m Match) WinnerName() string {
	if m.Winner == nil {
		return ""
	}
	return *m.Winner
}

// Stats counts what Derive discarded. Dropping is data cleaning, not an error.
type Stats struct {
	Groups        int `json:"groups"`
	Kept          int `json:"kept"`
	TooFewTeams   int `json:"too_few_teams"`
	TooManyTeams  int `json:"too_many_teams"`
	UnknownWinner int `json:"unknown_winner"`
}

// Dropped returns the number of match groups that produced no canonical match.
func (s Stats) Dropped() int {
	return s.TooFewTeams + s.TooManyTeams
}

// Result is the derived match table plus the roster of every spelling seen.
type Result struct {
	Matches []Match
	Teams   []string
	Stats   Stats
}

type accumulator struct {
	matchID string
	teams   []string
	winner  string
}

func (a *accumulator) addTeam(name string) {
	if name == "" {
		return
	}
	for _, seen := range a.teams {
		if seen == name {
			return
		}
	}
	a.teams = append(a.teams, name)
}

// Derive builds the canonical match table in a single pass over the deliveries.
//
// Matches keep the order in which their match_id first appears. A match survives
// only if its deliveries name exactly two distinct teams; those are sorted into
// Team1/Team2 so repeated runs are identical. The winner is the first non-null
// match_won_by; a winner that is neither participant is read as no-result.
func Derive(table *dataset.Table) *Result {
	index := make(map[string]*accumulator)
	order := make([]*accumulator, 0)
	roster := make(map[string]struct{})

	if table != nil {
		for _, d := range table.Deliveries {
			acc, ok := index[d.MatchID]
			if !ok {
				acc = &accumulator{matchID: d.MatchID}
				index[d.MatchID] = acc
				order = append(order, acc)
			}

			acc.addTeam(d.BattingTeam)
			acc.addTeam(d.BowlingTeam)
			if acc.winner == "" {
				acc.winner = d.MatchWonBy
			}

			if d.BattingTeam != "" {
				roster[d.BattingTeam] = struct{}{}
			}
			if d.BowlingTeam != "" {
				roster[d.BowlingTeam] = struct{}{}
			}
		}
	}

	result := &Result{
		Matches: make([]Match, 0, len(order)),
		Teams:   make([]string, 0, len(roster)),
	}
	result.Stats.Groups = len(order)

	for _, acc := range order {
		switch {
		case len(acc.teams) < 2:
			result.Stats.TooFewTeams++
			continue
		case len(acc.teams) > 2:
			result.Stats.TooManyTeams++
			continue
		}

		team1, team2 := acc.teams[0], acc.teams[1]
		if team2 < team1 {
			team1, team2 = team2, team1
		}

		match := Match{MatchID: acc.matchID, Team1: team1, Team2: team2}
		switch acc.winner {
		case "":
		case team1, team2:
			winner := acc.winner
			match.Winner = &winner
		default:
			result.Stats.UnknownWinner++
		}

		result.Matches = append(result.Matches, match)
	}
	result.Stats.Kept = len(result.Matches)

	for name := range roster {
		result.Teams = append(result.Teams, name)
	}
	sort.Strings(result.Teams)

	return result
}
