package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mcdev12/tablematch/go/internal/models"
	"github.com/mcdev12/tablematch/go/internal/session"
	"github.com/mcdev12/tablematch/go/internal/table"
	"github.com/rs/zerolog/log"
)

// Table is the orchestrator surface the HTTP layer calls.
type Table interface {
	RegisterTeam(name, password, confirm string) (models.TeamSnapshot, error)
	Authenticate(name, password string) (models.TeamSnapshot, error)
	EnqueueForMatch(name string) error
	MarkReady(name string) error
	MarkDone(name string) error
	SubmitScore(name string, scoreA, scoreB int) error
	SetProfileText(name, text string) error

	Team(name string) (models.TeamSnapshot, error)
	Leaderboard() []models.TeamSnapshot
	CurrentGame() *models.GameSummary
	GameFor(name string) (*models.GameSummary, error)
	LastGame(name string) (*models.GameSummary, error)
	PastGames() []models.GameSummary
	Queue() []string
}

// Sessions issues and resolves session tokens.
type Sessions interface {
	Issue(team string) (string, time.Time, error)
	TeamFromRequest(r *http.Request) (string, error)
}

// Handler serves the JSON API.
type Handler struct {
	table    Table
	sessions Sessions
}

// NewHandler creates the API handler.
func NewHandler(table Table, sessions Sessions) *Handler {
	return &Handler{table: table, sessions: sessions}
}

// RegisterRoutes mounts the API under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))

		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)

		r.Get("/leaderboard", h.Leaderboard)
		r.Get("/game", h.CurrentGame)
		r.Get("/games", h.PastGames)
		r.Get("/queue", h.Queue)
		r.Get("/teams/{name}", h.Team)
		r.Get("/teams/{name}/last-game", h.TeamLastGame)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireTeam)

			r.Get("/me", h.Me)
			r.Post("/me/enqueue", h.Enqueue)
			r.Post("/me/ready", h.Ready)
			r.Post("/me/done", h.Done)
			r.Post("/me/score", h.SubmitScore)
			r.Put("/me/profile", h.SetProfile)
		})
	})
}

type credentialsRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

type sessionResponse struct {
	Team      models.TeamSnapshot `json:"team"`
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
}

// Register creates a team and logs it in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var input credentialsRequest
	if !decode(w, r, &input) {
		return
	}

	team, err := h.table.RegisterTeam(input.Name, input.Password, input.Confirm)
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, http.StatusCreated, team)
}

// Login authenticates a team and issues a session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input credentialsRequest
	if !decode(w, r, &input) {
		return
	}

	team, err := h.table.Authenticate(input.Name, input.Password)
	if errors.Is(err, table.ErrTeamNotFound) || errors.Is(err, table.ErrWrongPassword) {
		writeMessage(w, http.StatusUnauthorized, table.RejectionMessage(err))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	h.startSession(w, http.StatusOK, team)
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) startSession(w http.ResponseWriter, status int, team models.TeamSnapshot) {
	token, expires, err := h.sessions.Issue(team.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	session.SetCookie(w, token, expires)
	writeJSON(w, status, sessionResponse{Team: team, Token: token, ExpiresAt: expires})
}

// Leaderboard lists teams by rating.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.table.Leaderboard())
}

type gameResponse struct {
	Game *models.GameSummary `json:"game"`
}

// CurrentGame returns the game on the table, if any.
func (h *Handler) CurrentGame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gameResponse{Game: h.table.CurrentGame()})
}

// PastGames lists completed games, newest first.
func (h *Handler) PastGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.table.PastGames())
}

// Queue lists searching teams.
func (h *Handler) Queue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.table.Queue())
}

// Team returns a team's public profile.
func (h *Handler) Team(w http.ResponseWriter, r *http.Request) {
	team, err := h.table.Team(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// TeamLastGame returns a team's most recent completed game.
func (h *Handler) TeamLastGame(w http.ResponseWriter, r *http.Request) {
	game, err := h.table.LastGame(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameResponse{Game: game})
}

type meResponse struct {
	Team     models.TeamSnapshot `json:"team"`
	Game     *models.GameSummary `json:"game"`
	LastGame *models.GameSummary `json:"last_game"`
}

// Me returns the caller's team, its active game and its last result.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	name := currentTeam(r)
	team, err := h.table.Team(name)
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := h.table.GameFor(name)
	if err != nil {
		writeError(w, err)
		return
	}
	last, err := h.table.LastGame(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{Team: team, Game: game, LastGame: last})
}

// Enqueue puts the caller's team in the matchmaking queue.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.table.EnqueueForMatch)
}

// Ready confirms the caller's presence at the table.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.table.MarkReady)
}

// Done records that the caller finished playing.
func (h *Handler) Done(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.table.MarkDone)
}

type scoreRequest struct {
	ScoreA *int `json:"score_a"`
	ScoreB *int `json:"score_b"`
}

// SubmitScore records the caller's claim of the final score.
func (h *Handler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	var input scoreRequest
	if !decode(w, r, &input) {
		return
	}
	if input.ScoreA == nil || input.ScoreB == nil {
		writeMessage(w, http.StatusBadRequest, "Both scores are required")
		return
	}

	h.transition(w, r, func(name string) error {
		return h.table.SubmitScore(name, *input.ScoreA, *input.ScoreB)
	})
}

type profileRequest struct {
	Text string `json:"text"`
}

// SetProfile replaces the caller's profile text.
func (h *Handler) SetProfile(w http.ResponseWriter, r *http.Request) {
	var input profileRequest
	if !decode(w, r, &input) {
		return
	}
	h.transition(w, r, func(name string) error {
		return h.table.SetProfileText(name, input.Text)
	})
}

// transition runs op for the caller and answers with the team's new snapshot.
func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(name string) error) {
	name := currentTeam(r)
	if err := op(name); err != nil {
		writeError(w, err)
		return
	}
	team, err := h.table.Team(name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func currentTeam(r *http.Request) string {
	team, _ := session.TeamFromContext(r.Context())
	return team
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		log.Debug().Err(err).Str("path", r.URL.Path).Msg("bad request body")
		writeMessage(w, http.StatusBadRequest, "Malformed request body")
		return false
	}
	return true
}
