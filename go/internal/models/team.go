package models

// TeamState defines where a team is in the match lifecycle.
type TeamState string

const (
	TeamStateInactive      TeamState = "INACTIVE"
	TeamStateSearching     TeamState = "SEARCHING"
	TeamStateMatched       TeamState = "MATCHED"
	TeamStateReadyRequest  TeamState = "READY_REQUEST"
	TeamStateReady         TeamState = "READY"
	TeamStatePlaying       TeamState = "PLAYING"
	TeamStateDone          TeamState = "DONE"
	TeamStateSubmitRequest TeamState = "SUBMIT_REQUEST"
	TeamStateSubmitted     TeamState = "SUBMITTED"
)

// MaxTeamNameLength is the longest accepted team name.
const MaxTeamNameLength = 20

// Team represents a registered participant.
type Team struct {
	Name          string    `json:"name"`
	PasswordHash  []byte    `json:"-"`
	State         TeamState `json:"state"`
	Profile       string    `json:"profile"`
	Rating        int       `json:"rating"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	Draws         int       `json:"draws"`
	Games         []*Game   `json:"-"`
	RatingHistory []int     `json:"rating_history"`
}

// NewTeam creates an inactive team with a single rating snapshot.
func NewTeam(name string, passwordHash []byte, rating int) *Team {
	return &Team{
		Name:          name,
		PasswordHash:  passwordHash,
		State:         TeamStateInactive,
		Rating:        rating,
		RatingHistory: []int{rating},
	}
}

// GamesPlayed returns the number of finished games.
func (t *Team) GamesPlayed() int {
	return len(t.Games)
}

// RecordResult appends a finished game and its rating to the team's history.
func (t *Team) RecordResult(game *Game, newRating int, outcome float64) {
	switch {
	case outcome > 0.5:
		t.Wins++
	case outcome < 0.5:
		t.Losses++
	default:
		t.Draws++
	}
	t.Rating = newRating
	t.Games = append(t.Games, game)
	t.RatingHistory = append(t.RatingHistory, newRating)
}

// TeamSnapshot is a read-only copy of a team, safe to hand out of the orchestrator lock.
type TeamSnapshot struct {
	Name          string    `json:"name"`
	State         TeamState `json:"state"`
	Profile       string    `json:"profile"`
	Rating        int       `json:"rating"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	Draws         int       `json:"draws"`
	GamesPlayed   int       `json:"games_played"`
	RatingHistory []int     `json:"rating_history"`
}

// Snapshot copies the team's public fields.
func (t *Team) Snapshot() TeamSnapshot {
	history := make([]int, len(t.RatingHistory))
	copy(history, t.RatingHistory)
	return TeamSnapshot{
		Name:          t.Name,
		State:         t.State,
		Profile:       t.Profile,
		Rating:        t.Rating,
		Wins:          t.Wins,
		Losses:        t.Losses,
		Draws:         t.Draws,
		GamesPlayed:   len(t.Games),
		RatingHistory: history,
	}
}
