package models

import (
	"time"

	"github.com/google/uuid"
)

// GameState is derived from the pair of team states; it is never stored.
type GameState string

const (
	GameStateScheduled  GameState = "SCHEDULED"
	GameStateWaitReady  GameState = "WAIT_READY"
	GameStateWaitDone   GameState = "WAIT_DONE"
	GameStateWaitSubmit GameState = "WAIT_SUBMIT"
	GameStateCompleted  GameState = "COMPLETED"
)

// ScorePair is one team's claim of the final score, listed as (team A, team B).
type ScorePair struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Game is one match between two distinct teams. It borrows its teams.
type Game struct {
	ID           uuid.UUID  `json:"id"`
	TeamA        *Team      `json:"-"`
	TeamB        *Team      `json:"-"`
	GetReadyTime *time.Time `json:"get_ready_time,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`

	// ClaimA and ClaimB hold each team's latest submission until both agree.
	ClaimA *ScorePair `json:"-"`
	ClaimB *ScorePair `json:"-"`

	// Final scores, set once the claims agree.
	ScoreA    int  `json:"score_a"`
	ScoreB    int  `json:"score_b"`
	Completed bool `json:"completed"`
}

// NewGame pairs two teams.
func NewGame(a, b *Team) *Game {
	return &Game{
		ID:    uuid.New(),
		TeamA: a,
		TeamB: b,
	}
}

// Has reports whether the named team plays in this game.
func (g *Game) Has(name string) bool {
	return g.TeamA.Name == name || g.TeamB.Name == name
}

// Other returns the opponent of the named team.
func (g *Game) Other(name string) *Team {
	if g.TeamA.Name == name {
		return g.TeamB
	}
	return g.TeamA
}

// TeamNames returns both team names, A first.
func (g *Game) TeamNames() []string {
	return []string{g.TeamA.Name, g.TeamB.Name}
}

// Claim returns the latest score claim submitted by the named team.
func (g *Game) Claim(name string) *ScorePair {
	if g.TeamA.Name == name {
		return g.ClaimA
	}
	return g.ClaimB
}

// SetClaim stores the named team's score claim.
func (g *Game) SetClaim(name string, claim ScorePair) {
	if g.TeamA.Name == name {
		g.ClaimA = &claim
		return
	}
	g.ClaimB = &claim
}

// ClearClaims drops both claims so the teams resubmit from scratch.
func (g *Game) ClearClaims() {
	g.ClaimA = nil
	g.ClaimB = nil
}

// ExpectedStart is the get-ready time plus the ready lead time.
func (g *Game) ExpectedStart(readyLead time.Duration) *time.Time {
	if g.GetReadyTime == nil {
		return nil
	}
	t := g.GetReadyTime.Add(readyLead)
	return &t
}

// ExpectedEnd is the start time plus the game length, or the expected start plus
// the game length when the game has not started.
func (g *Game) ExpectedEnd(readyLead, length time.Duration) *time.Time {
	if g.StartTime != nil {
		t := g.StartTime.Add(length)
		return &t
	}
	start := g.ExpectedStart(readyLead)
	if start == nil {
		return nil
	}
	t := start.Add(length)
	return &t
}

// State derives the game state from both team states.
func (g *Game) State() GameState {
	if g.Completed {
		return GameStateCompleted
	}
	return GameStateOf(g.TeamA.State, g.TeamB.State)
}

// GameStateOf derives a game state from two team states.
func GameStateOf(a, b TeamState) GameState {
	switch {
	case waitingReady(a) && waitingReady(b):
		return GameStateWaitReady
	case waitingDone(a) && waitingDone(b):
		return GameStateWaitDone
	case waitingSubmit(a) && waitingSubmit(b):
		return GameStateWaitSubmit
	case a == TeamStateInactive && b == TeamStateInactive:
		return GameStateCompleted
	default:
		return GameStateScheduled
	}
}

func waitingReady(s TeamState) bool {
	return s == TeamStateReadyRequest || s == TeamStateReady
}

func waitingDone(s TeamState) bool {
	return s == TeamStatePlaying || s == TeamStateDone
}

func waitingSubmit(s TeamState) bool {
	return s == TeamStateSubmitRequest || s == TeamStateSubmitted
}

// GameSummary is a read-only view of a game for callers outside the orchestrator.
type GameSummary struct {
	ID            uuid.UUID  `json:"id"`
	TeamA         string     `json:"team_a"`
	TeamB         string     `json:"team_b"`
	TeamAState    TeamState  `json:"team_a_state"`
	TeamBState    TeamState  `json:"team_b_state"`
	State         GameState  `json:"state"`
	GetReadyTime  *time.Time `json:"get_ready_time,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	ExpectedStart *time.Time `json:"expected_start,omitempty"`
	ExpectedEnd   *time.Time `json:"expected_end,omitempty"`
	ScoreA        int        `json:"score_a"`
	ScoreB        int        `json:"score_b"`
	Completed     bool       `json:"completed"`
}

// Summary copies the game into a GameSummary.
func (g *Game) Summary(readyLead, length time.Duration) GameSummary {
	return GameSummary{
		ID:            g.ID,
		TeamA:         g.TeamA.Name,
		TeamB:         g.TeamB.Name,
		TeamAState:    g.TeamA.State,
		TeamBState:    g.TeamB.State,
		State:         g.State(),
		GetReadyTime:  copyTime(g.GetReadyTime),
		StartTime:     copyTime(g.StartTime),
		EndTime:       copyTime(g.EndTime),
		ExpectedStart: g.ExpectedStart(readyLead),
		ExpectedEnd:   g.ExpectedEnd(readyLead, length),
		ScoreA:        g.ScoreA,
		ScoreB:        g.ScoreB,
		Completed:     g.Completed,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
