package table

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablematch/go/internal/models"
	"github.com/mcdev12/tablematch/go/internal/rating"
	"github.com/mcdev12/tablematch/go/internal/table/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// Notifier pushes refresh events to connected clients. The orchestrator calls it
// while holding its lock, so implementations must not block.
type Notifier interface {
	Notify(audience events.Audience, refresh events.Refresh)
}

// Config holds the table timing and rating settings.
type Config struct {
	ReadyLeadTime time.Duration
	GameLength    time.Duration
	InitialRating int
	KFactor       float64
}

// DefaultConfig returns the default table settings.
func DefaultConfig() Config {
	return Config{
		ReadyLeadTime: 2 * time.Minute,
		GameLength:    10 * time.Minute,
		InitialRating: 1000,
		KFactor:       rating.DefaultKFactor,
	}
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the real clock, e.g. with clockwork.NewFakeClock() in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *Orchestrator) {
		o.metrics = metrics
	}
}

// WithPasswordCost sets the bcrypt cost used when registering teams.
func WithPasswordCost(cost int) Option {
	return func(o *Orchestrator) {
		o.passwordCost = cost
	}
}

// Orchestrator owns the table, the teams and the matchmaking queue. Its exported
// methods are the only way to mutate them; user calls and scheduler callbacks
// serialize on mu.
type Orchestrator struct {
	mu sync.Mutex

	config    Config
	clock     clockwork.Clock
	scheduler *Scheduler
	notifier  Notifier
	metrics   MetricsCollector
	elo       rating.Elo

	passwordCost int

	teams        map[string]*models.Team
	registration []*models.Team
	queue        *matchQueue
	table        models.Table
	pastGames    []*models.Game
}

// NewOrchestrator creates the orchestrator for one table.
func NewOrchestrator(config Config, notifier Notifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		config:   config,
		clock:    clockwork.NewRealClock(),
		notifier: notifier,
		metrics:  &NoOpMetricsCollector{},
		elo:      rating.NewElo(config.KFactor),
		teams:    make(map[string]*models.Team),
		queue:    newMatchQueue(),

		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.config.InitialRating == 0 {
		o.config.InitialRating = DefaultConfig().InitialRating
	}
	o.scheduler = NewScheduler(o.clock)
	return o
}

// Close cancels pending scheduler callbacks. Call it on shutdown only.
func (o *Orchestrator) Close() {
	o.scheduler.Stop()
}

// EnqueueForMatch puts an inactive team in the matchmaking queue and pairs it if
// an opponent is waiting and the table is free. Re-enqueuing a searching team is a no-op.
func (o *Orchestrator) EnqueueForMatch(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	team, err := o.lookup(name)
	if err != nil {
		return o.rejected("enqueue", err)
	}
	if team.State == models.TeamStateSearching {
		return nil
	}
	if team.State != models.TeamStateInactive {
		return o.rejected("enqueue", reject(ErrIllegalTransition, "You are already in a game"))
	}

	team.State = models.TeamStateSearching
	o.queue.push(name, o.clock.Now())

	log.Info().
		Str("team", name).
		Str("state", string(team.State)).
		Int("queue_length", o.queue.len()).
		Msg("team searching for a match")

	o.notify(events.ToTeams(name), events.Refresh{Pages: []string{events.PageGame}})

	return o.tryMatch()
}

// TryMatch pairs the two longest-waiting teams if the table is free.
func (o *Orchestrator) TryMatch() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.tryMatch()
}

func (o *Orchestrator) tryMatch() error {
	if o.table.Occupied() {
		if o.queue.len() > 0 {
			log.Debug().
				Int("queue_length", o.queue.len()).
				Str("game_id", o.table.ActiveGame.ID.String()).
				Msg("table occupied; teams stay queued")
		}
		return nil
	}

	nameA, nameB, ok := o.queue.peekPair()
	if !ok {
		return nil
	}
	teamA, teamB := o.teams[nameA], o.teams[nameB]
	if teamA == nil || teamB == nil || nameA == nameB {
		return o.inconsistent("queued team %q or %q is not registered", nameA, nameB)
	}

	game := models.NewGame(teamA, teamB)
	if err := o.scheduleGame(game); err != nil {
		return err
	}

	o.queue.popPair()
	teamA.State = models.TeamStateMatched
	teamB.State = models.TeamStateMatched

	log.Info().
		Str("game_id", game.ID.String()).
		Str("team_a", nameA).
		Str("team_b", nameB).
		Str("state", string(models.TeamStateMatched)).
		Msg("teams matched")

	o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{Pages: []string{events.PageGame}})
	return nil
}

// scheduleGame puts the game on the table and arms the ready-request callback.
func (o *Orchestrator) scheduleGame(game *models.Game) error {
	if o.table.Occupied() {
		return o.inconsistent("table already hosts game %s; refusing game %s", o.table.ActiveGame.ID, game.ID)
	}

	now := o.clock.Now()
	o.table.ActiveGame = game
	game.GetReadyTime = &now

	gameID := game.ID
	o.scheduler.At(now, func() {
		o.requestReady(gameID)
	})
	o.metrics.RecordGameScheduled()

	log.Info().
		Str("game_id", gameID.String()).
		Time("get_ready_time", now).
		Msg("game scheduled")
	return nil
}

// requestReady is the scheduler callback asking both teams to ready up.
func (o *Orchestrator) requestReady(gameID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	game := o.table.ActiveGame
	if game == nil || game.ID != gameID {
		log.Warn().Str("game_id", gameID.String()).Msg("ready request for a game no longer on the table")
		return
	}
	if game.TeamA.State != models.TeamStateMatched || game.TeamB.State != models.TeamStateMatched {
		log.Warn().
			Str("game_id", gameID.String()).
			Str("team_a_state", string(game.TeamA.State)).
			Str("team_b_state", string(game.TeamB.State)).
			Msg("ready request skipped; teams already past matching")
		return
	}

	game.TeamA.State = models.TeamStateReadyRequest
	game.TeamB.State = models.TeamStateReadyRequest

	log.Info().
		Str("game_id", gameID.String()).
		Str("state", string(models.TeamStateReadyRequest)).
		Msg("ready requested")

	o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{
		Pages:    []string{events.PageGame},
		Redirect: events.PageGame,
	})
}

// MarkReady confirms a team's presence. Once both teams are ready the game starts.
func (o *Orchestrator) MarkReady(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	team, game, err := o.participant(name)
	if err != nil {
		return o.rejected("ready", err)
	}
	if !inState(team, models.TeamStateReadyRequest, models.TeamStateReady) {
		return o.rejected("ready", reject(ErrIllegalTransition, "You cannot ready up right now"))
	}

	team.State = models.TeamStateReady
	if game.TeamA.State == models.TeamStateReady && game.TeamB.State == models.TeamStateReady {
		now := o.clock.Now()
		game.StartTime = &now
		game.TeamA.State = models.TeamStatePlaying
		game.TeamB.State = models.TeamStatePlaying
		log.Info().
			Str("game_id", game.ID.String()).
			Str("state", string(models.TeamStatePlaying)).
			Time("start_time", now).
			Msg("game started")
	} else {
		log.Info().
			Str("game_id", game.ID.String()).
			Str("team", name).
			Str("state", string(team.State)).
			Msg("team ready")
	}

	o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{Pages: []string{events.PageGame}})
	return nil
}

// MarkDone records that a team finished playing. Once both are done, scores are requested.
func (o *Orchestrator) MarkDone(name string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	team, game, err := o.participant(name)
	if err != nil {
		return o.rejected("done", err)
	}
	if !inState(team, models.TeamStatePlaying, models.TeamStateDone) {
		msg := "The game has not started"
		if inState(team, models.TeamStateSubmitRequest, models.TeamStateSubmitted) {
			msg = "The game is already over"
		}
		return o.rejected("done", reject(ErrIllegalTransition, msg))
	}

	team.State = models.TeamStateDone
	if game.TeamA.State == models.TeamStateDone && game.TeamB.State == models.TeamStateDone {
		now := o.clock.Now()
		game.EndTime = &now
		game.TeamA.State = models.TeamStateSubmitRequest
		game.TeamB.State = models.TeamStateSubmitRequest
		log.Info().
			Str("game_id", game.ID.String()).
			Str("state", string(models.TeamStateSubmitRequest)).
			Time("end_time", now).
			Msg("game finished; awaiting scores")
	} else {
		log.Info().
			Str("game_id", game.ID.String()).
			Str("team", name).
			Str("state", string(team.State)).
			Msg("team done")
	}

	o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{Pages: []string{events.PageGame}})
	return nil
}

// SubmitScore stores the team's claim of the final score. When both teams have
// submitted, agreeing claims complete the game; disagreeing claims send both
// teams back to resubmit and return ErrScoreMismatch.
func (o *Orchestrator) SubmitScore(name string, scoreA, scoreB int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if scoreA < 0 || scoreB < 0 {
		return o.rejected("submit", reject(ErrValidation, "Scores cannot be negative"))
	}
	team, game, err := o.participant(name)
	if err != nil {
		return o.rejected("submit", err)
	}
	if !inState(team, models.TeamStateSubmitRequest, models.TeamStateSubmitted) {
		return o.rejected("submit", reject(ErrIllegalTransition, "Scores cannot be submitted yet"))
	}

	game.SetClaim(name, models.ScorePair{A: scoreA, B: scoreB})
	team.State = models.TeamStateSubmitted

	other := game.Other(name)
	if other.State != models.TeamStateSubmitted {
		log.Info().
			Str("game_id", game.ID.String()).
			Str("team", name).
			Str("state", string(team.State)).
			Int("score_a", scoreA).
			Int("score_b", scoreB).
			Msg("score submitted")
		o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{Pages: []string{events.PageGame}})
		return nil
	}

	mine, theirs := game.Claim(name), game.Claim(other.Name)
	if mine == nil || theirs == nil {
		return o.inconsistent("game %s: team submitted without a stored claim", game.ID)
	}
	if *mine != *theirs {
		game.ClearClaims()
		team.State = models.TeamStateSubmitRequest
		other.State = models.TeamStateSubmitRequest
		o.metrics.RecordScoreMismatch()

		log.Info().
			Str("game_id", game.ID.String()).
			Str("state", string(models.TeamStateSubmitRequest)).
			Interface("claim_"+name, *mine).
			Interface("claim_"+other.Name, *theirs).
			Msg("submitted scores do not match")

		o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{Pages: []string{events.PageGame}})
		return reject(ErrScoreMismatch, "Scores do not match, please resubmit")
	}

	o.completeGame(game, *mine)
	return nil
}

// completeGame accepts the final score, rates both teams and frees the table.
func (o *Orchestrator) completeGame(game *models.Game, final models.ScorePair) {
	now := o.clock.Now()
	game.EndTime = &now
	game.ScoreA = final.A
	game.ScoreB = final.B
	game.Completed = true

	a, b := game.TeamA, game.TeamB
	res := o.elo.Update(a.Rating, b.Rating, final.A, final.B)
	a.RecordResult(game, res.NewRatingA, res.OutcomeA)
	b.RecordResult(game, res.NewRatingB, res.OutcomeB)
	a.State = models.TeamStateInactive
	b.State = models.TeamStateInactive

	o.pastGames = append(o.pastGames, game)
	o.table.ActiveGame = nil
	if game.GetReadyTime != nil {
		o.metrics.RecordGameCompleted(now.Sub(*game.GetReadyTime))
	}

	log.Info().
		Str("game_id", game.ID.String()).
		Str("team_a", a.Name).
		Str("team_b", b.Name).
		Int("score_a", final.A).
		Int("score_b", final.B).
		Int("rating_a", a.Rating).
		Int("rating_b", b.Rating).
		Str("state", string(models.TeamStateInactive)).
		Msg("game completed")

	o.notify(events.ToTeams(game.TeamNames()...), events.Refresh{
		Pages:    []string{events.PageAny},
		Redirect: events.PageResults,
	})
	o.notify(events.ToAll(), events.Refresh{
		Pages: []string{events.PageLeaderboard, events.TeamPage(a.Name), events.TeamPage(b.Name)},
	})

	if err := o.tryMatch(); err != nil {
		log.Error().Err(err).Msg("failed to schedule next game")
	}
}

// SetProfileText replaces a team's profile blurb. Allowed in any state.
func (o *Orchestrator) SetProfileText(name, text string) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	team, err := o.lookup(name)
	if err != nil {
		return o.rejected("profile", err)
	}
	team.Profile = text

	log.Info().Str("team", name).Int("length", len(text)).Msg("profile updated")

	o.notify(events.ToAll(), events.Refresh{Pages: []string{events.TeamPage(name)}})
	return nil
}

func (o *Orchestrator) lookup(name string) (*models.Team, error) {
	team, ok := o.teams[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, name)
	}
	return team, nil
}

// participant resolves a team that plays in the active game.
func (o *Orchestrator) participant(name string) (*models.Team, *models.Game, error) {
	team, err := o.lookup(name)
	if err != nil {
		return nil, nil, err
	}
	game := o.table.ActiveGame
	if game == nil || !game.Has(name) {
		return nil, nil, reject(ErrNotInGame, "You are not in an active game")
	}
	if game.TeamA == nil || game.TeamB == nil ||
		o.teams[game.TeamA.Name] != game.TeamA || o.teams[game.TeamB.Name] != game.TeamB {
		return nil, nil, o.inconsistent("game %s references a team that is not registered", game.ID)
	}
	return team, game, nil
}

func (o *Orchestrator) notify(audience events.Audience, refresh events.Refresh) {
	log.Debug().
		Bool("all", audience.All).
		Strs("teams", audience.Teams).
		Strs("pages", refresh.Pages).
		Str("redirect", refresh.Redirect).
		Msg("requesting refresh")
	o.notifier.Notify(audience, refresh)
}

func (o *Orchestrator) rejected(op string, err error) error {
	log.Debug().Err(err).Str("op", op).Msg("operation rejected")
	o.metrics.RecordRejected(op, reasonLabel(err))
	return err
}

func (o *Orchestrator) inconsistent(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrInternalConsistency, fmt.Sprintf(format, args...))
	log.Error().Err(err).Msg("broken table invariant; operation aborted")
	o.metrics.RecordRejected("internal", reasonLabel(err))
	return err
}

func inState(team *models.Team, states ...models.TeamState) bool {
	for _, s := range states {
		if team.State == s {
			return true
		}
	}
	return false
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrNotInGame):
		return "not_in_game"
	case errors.Is(err, ErrScoreMismatch):
		return "score_mismatch"
	case errors.Is(err, ErrTeamNotFound):
		return "team_not_found"
	case errors.Is(err, ErrWrongPassword):
		return "wrong_password"
	case errors.Is(err, ErrInternalConsistency):
		return "internal"
	default:
		return "other"
	}
}
