package table

import (
	"sort"

	"github.com/mcdev12/tablematch/go/internal/models"
)

// Team returns a snapshot of the named team.
func (o *Orchestrator) Team(name string) (models.TeamSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	team, err := o.lookup(name)
	if err != nil {
		return models.TeamSnapshot{}, err
	}
	return team.Snapshot(), nil
}

// Leaderboard lists all teams by rating, highest first. Ties keep registration order.
func (o *Orchestrator) Leaderboard() []models.TeamSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.TeamSnapshot, len(o.registration))
	for i, team := range o.registration {
		out[i] = team.Snapshot()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating > out[j].Rating
	})
	return out
}

// CurrentGame returns the game on the table, or nil when the table is free.
func (o *Orchestrator) CurrentGame() *models.GameSummary {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.table.ActiveGame == nil {
		return nil
	}
	summary := o.summary(o.table.ActiveGame)
	return &summary
}

// GameFor returns the active game if the named team plays in it.
func (o *Orchestrator) GameFor(name string) (*models.GameSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.lookup(name); err != nil {
		return nil, err
	}
	game := o.table.ActiveGame
	if game == nil || !game.Has(name) {
		return nil, nil
	}
	summary := o.summary(game)
	return &summary, nil
}

// LastGame returns the most recent completed game of the named team, or nil.
func (o *Orchestrator) LastGame(name string) (*models.GameSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	team, err := o.lookup(name)
	if err != nil {
		return nil, err
	}
	if len(team.Games) == 0 {
		return nil, nil
	}
	summary := o.summary(team.Games[len(team.Games)-1])
	return &summary, nil
}

// PastGames lists completed games, most recent first.
func (o *Orchestrator) PastGames() []models.GameSummary {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]models.GameSummary, 0, len(o.pastGames))
	for i := len(o.pastGames) - 1; i >= 0; i-- {
		out = append(out, o.summary(o.pastGames[i]))
	}
	return out
}

// Queue lists searching teams, longest waiting first.
func (o *Orchestrator) Queue() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.snapshot()
}

// Queued reports whether the named team is waiting for an opponent.
func (o *Orchestrator) Queued(name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.contains(name)
}

func (o *Orchestrator) summary(game *models.Game) models.GameSummary {
	return game.Summary(o.config.ReadyLeadTime, o.config.GameLength)
}
