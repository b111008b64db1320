package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/iplstats/internal/matches"
	"github.com/fortuna/iplstats/internal/store"
	"github.com/fortuna/iplstats/internal/teams"
)

// ErrInvalidArgument is returned when a required team argument is missing or blank.
var ErrInvalidArgument = errors.New("invalid argument")

// OutcomeNote is attached to batting/bowling records, which are match-outcome
// proxies rather than per-delivery statistics.
const OutcomeNote = "Derived from match outcomes (no ball-by-ball data)"

// Match listing limits
const (
	DefaultMatchLimit = 10
	MaxMatchLimit     = 100
)

// MatchProvider supplies the current canonical match table
type MatchProvider interface {
	Snapshot(ctx context.Context) (*store.Snapshot, error)
}

// StatsService answers the read-only team queries
type StatsService struct {
	matches  MatchProvider
	teams    *teams.Directory
	maxLimit int
}

// NewStatsService creates a new stats service
func NewStatsService(provider MatchProvider, directory *teams.Directory) *StatsService {
	return &StatsService{
		matches:  provider,
		teams:    directory,
		maxLimit: MaxMatchLimit,
	}
}

// WithMaxMatchLimit caps the matches listing at limit
func (s *StatsService) WithMaxMatchLimit(limit int) *StatsService {
	if limit > 0 {
		s.maxLimit = limit
	}
	return s
}

// Version returns the fingerprint of the dataset the next answer will be computed from.
func (s *StatsService) Version(ctx context.Context) (string, error) {
	snap, err := s.matches.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snap.Fingerprint, nil
}

// Teams returns every raw team spelling in the dataset, sorted
func (s *StatsService) Teams(ctx context.Context) (*TeamList, error) {
	snap, err := s.matches.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching match table: %w", err)
	}

	names := append([]string(nil), snap.Teams...)
	return &TeamList{Teams: names, TotalTeams: len(names)}, nil
}

// Matches returns the first limit canonical matches in dataset order
func (s *StatsService) Matches(ctx context.Context, limit int) ([]matches.Match, error) {
	snap, err := s.matches.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching match table: %w", err)
	}

	if limit <= 0 {
		limit = DefaultMatchLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}
	if limit > len(snap.Matches) {
		limit = len(snap.Matches)
	}

	out := make([]matches.Match, limit)
	copy(out, snap.Matches[:limit])
	return out, nil
}

// Aliases returns the franchise code table
func (s *StatsService) Aliases() map[string][]string {
	return s.teams.Aliases()
}

// HeadToHead counts the matches played between two teams and who won them.
// Both identifiers are expanded through the alias table, so renamed franchises
// are merged on each side.
func (s *StatsService) HeadToHead(ctx context.Context, team1, team2 string) (*HeadToHead, error) {
	team1, team2 = strings.TrimSpace(team1), strings.TrimSpace(team2)
	if err := requireTeam("team1", team1); err != nil {
		return nil, err
	}
	if err := requireTeam("team2", team2); err != nil {
		return nil, err
	}

	snap, err := s.matches.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching match table: %w", err)
	}

	side1 := newNameSet(s.teams.Expand(team1))
	side2 := newNameSet(s.teams.Expand(team2))

	h2h := &HeadToHead{Team1: team1, Team2: team2}
	for _, m := range snap.Matches {
		between := (side1.has(m.Team1) && side2.has(m.Team2)) || (side2.has(m.Team1) && side1.has(m.Team2))
		if !between {
			continue
		}

		h2h.TotalMatches++
		if !m.HasWinner() {
			h2h.NoResult++
			continue
		}
		if side1.has(m.WinnerName()) {
			h2h.Team1Wins++
		}
		if side2.has(m.WinnerName()) {
			h2h.Team2Wins++
		}
	}

	h2h.Wins = map[string]int{team1: h2h.Team1Wins}
	if team2 != team1 {
		h2h.Wins[team2] = h2h.Team2Wins
	}
	return h2h, nil
}

// TeamRecord returns a team's overall record and a per-opponent breakdown.
// Opponents are keyed by the spelling stored in the dataset, so an opponent that
// was renamed appears once per spelling.
func (s *StatsService) TeamRecord(ctx context.Context, team string) (*TeamRecord, error) {
	team = strings.TrimSpace(team)
	played, names, err := s.teamMatches(ctx, team)
	if err != nil {
		return nil, err
	}

	record := &TeamRecord{Team: team, Against: make(map[string]*Record)}
	for _, m := range played {
		opponent := m.Team1
		if names.has(m.Team1) {
			opponent = m.Team2
		}

		against, ok := record.Against[opponent]
		if !ok {
			against = &Record{}
			record.Against[opponent] = against
		}

		outcome := outcomeFor(m, names)
		record.Record.add(outcome)
		against.add(outcome)
	}

	return record, nil
}

// BattingRecord summarises match outcomes under batting labels
func (s *StatsService) BattingRecord(ctx context.Context, team string) (*BattingRecord, error) {
	team = strings.TrimSpace(team)
	played, names, err := s.teamMatches(ctx, team)
	if err != nil {
		return nil, err
	}

	var total Record
	for _, m := range played {
		total.add(outcomeFor(m, names))
	}

	return &BattingRecord{
		Team:          team,
		MatchesPlayed: total.MatchesPlayed,
		Wins:          total.Won,
		Losses:        total.Lost,
		NoResult:      total.NoResult,
		Note:          OutcomeNote,
	}, nil
}

// BowlingRecord summarises match outcomes under bowling labels
func (s *StatsService) BowlingRecord(ctx context.Context, team string) (*BowlingRecord, error) {
	team = strings.TrimSpace(team)
	played, names, err := s.teamMatches(ctx, team)
	if err != nil {
		return nil, err
	}

	var total Record
	for _, m := range played {
		total.add(outcomeFor(m, names))
	}

	return &BowlingRecord{
		Team:                 team,
		MatchesPlayed:        total.MatchesPlayed,
		SuccessfullyDefended: total.Won,
		FailedDefense:        total.Lost,
		NoResult:             total.NoResult,
		Note:                 OutcomeNote,
	}, nil
}

// teamMatches selects the matches in which any spelling of team took part
func (s *StatsService) teamMatches(ctx context.Context, team string) ([]matches.Match, nameSet, error) {
	if err := requireTeam("team", team); err != nil {
		return nil, nil, err
	}

	snap, err := s.matches.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching match table: %w", err)
	}

	names := newNameSet(s.teams.Expand(team))
	played := make([]matches.Match, 0)
	for _, m := range snap.Matches {
		if names.has(m.Team1) || names.has(m.Team2) {
			played = append(played, m)
		}
	}
	return played, names, nil
}

func requireTeam(param, value string) error {
	if value == "" {
		return fmt.Errorf("%w: missing required parameter %q", ErrInvalidArgument, param)
	}
	return nil
}

type outcome int

const (
	outcomeWon outcome = iota
	outcomeLost
	outcomeNoResult
)

func outcomeFor(m matches.Match, names nameSet) outcome {
	switch {
	case !m.HasWinner():
		return outcomeNoResult
	case names.has(m.WinnerName()):
		return outcomeWon
	default:
		return outcomeLost
	}
}

type nameSet map[string]struct{}

func newNameSet(names []string) nameSet {
	set := make(nameSet, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return set
}

func (n nameSet) has(name string) bool {
	_, ok := n[name]
	return ok
}
