package table

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/mcdev12/tablematch/go/internal/models"
	"github.com/mcdev12/tablematch/go/internal/table/events"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

// RegisterTeam creates an inactive team with the initial rating.
func (o *Orchestrator) RegisterTeam(name, password, confirm string) (models.TeamSnapshot, error) {
	if err := o.validateRegistration(name, password, confirm); err != nil {
		return models.TeamSnapshot{}, o.rejected("register", err)
	}

	// bcrypt is slow; hash before taking the lock.
	hash, err := bcrypt.GenerateFromPassword([]byte(password), o.passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return models.TeamSnapshot{}, o.rejected("register", reject(ErrValidation, "Password must be at most 72 bytes"))
	}
	if err != nil {
		return models.TeamSnapshot{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, taken := o.teams[name]; taken {
		return models.TeamSnapshot{}, o.rejected("register", reject(ErrValidation, "Username already taken"))
	}

	team := models.NewTeam(name, hash, o.config.InitialRating)
	o.teams[name] = team
	o.registration = append(o.registration, team)

	log.Info().
		Str("team", name).
		Str("state", string(team.State)).
		Int("rating", team.Rating).
		Msg("team registered")

	o.notify(events.ToAll(), events.Refresh{Pages: []string{events.PageLeaderboard}})
	return team.Snapshot(), nil
}

func (o *Orchestrator) validateRegistration(name, password, confirm string) error {
	if name == "" || password == "" {
		return reject(ErrValidation, "Username and password cannot be empty")
	}
	if utf8.RuneCountInString(name) > models.MaxTeamNameLength {
		return reject(ErrValidation, "Username must be at most 20 characters")
	}
	if strings.ContainsAny(name, "/?#") || strings.TrimSpace(name) != name {
		return reject(ErrValidation, "Username contains invalid characters")
	}

	o.mu.Lock()
	_, taken := o.teams[name]
	o.mu.Unlock()
	if taken {
		return reject(ErrValidation, "Username already taken")
	}

	if password != confirm {
		return reject(ErrValidation, "Passwords do not match")
	}
	return nil
}

// Authenticate checks a team's password.
func (o *Orchestrator) Authenticate(name, password string) (models.TeamSnapshot, error) {
	o.mu.Lock()
	team, ok := o.teams[name]
	var (
		hash     []byte
		snapshot models.TeamSnapshot
	)
	if ok {
		hash = team.PasswordHash
		snapshot = team.Snapshot()
	}
	o.mu.Unlock()

	if !ok {
		return models.TeamSnapshot{}, o.rejected("login", reject(ErrTeamNotFound, "Unknown username"))
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		log.Info().Str("team", name).Msg("login failed")
		return models.TeamSnapshot{}, o.rejected("login", reject(ErrWrongPassword, "Wrong password"))
	}
	return snapshot, nil
}
