package events

import "strings"

// Page paths that notifications scope refreshes to.
const (
	PageGame        = "/game"
	PageLeaderboard = "/leaderboard"
	PageResults     = "/results"

	// PageAny forces a refresh whatever page the client is on.
	PageAny = "*"
)

// TeamPage returns the public profile page of a team.
func TeamPage(name string) string {
	return "/team/" + name
}

// Refresh is pushed to clients to tell them which views are stale.
type Refresh struct {
	Pages    []string `json:"pages"`
	Redirect string   `json:"redirect,omitempty"`
}

// Action is what a client does with a Refresh.
type Action struct {
	Navigate string // non-empty: follow this path
	Reload   bool
}

// Resolve applies the client rule: a redirect wins over a reload; otherwise reload
// when the current page matches any listed page.
func (r Refresh) Resolve(current string) Action {
	if r.Redirect != "" {
		return Action{Navigate: r.Redirect}
	}
	return Action{Reload: r.Matches(current)}
}

// Matches reports whether the current page is covered by the refresh: an exact
// path match, a first-segment match, or the wildcard page.
func (r Refresh) Matches(current string) bool {
	for _, page := range r.Pages {
		if page == PageAny || page == current {
			return true
		}
		if seg := firstSegment(page); seg != "" && seg == firstSegment(current) {
			return true
		}
	}
	return false
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Audience selects the teams a refresh goes to.
type Audience struct {
	All   bool     `json:"all,omitempty"`
	Teams []string `json:"teams,omitempty"`
}

// ToTeams addresses the named teams.
func ToTeams(names ...string) Audience {
	return Audience{Teams: names}
}

// ToAll addresses every identity connected when the refresh is dispatched.
func ToAll() Audience {
	return Audience{All: true}
}
