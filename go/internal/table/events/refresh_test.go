package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRefresh_Resolve(t *testing.T) {
	tests := []struct {
		name    string
		refresh Refresh
		current string
		want    Action
	}{
		{
			name:    "exact page match reloads",
			refresh: Refresh{Pages: []string{PageGame}},
			current: "/game",
			want:    Action{Reload: true},
		},
		{
			name:    "first segment match reloads",
			refresh: Refresh{Pages: []string{PageGame}},
			current: "/game/details",
			want:    Action{Reload: true},
		},
		{
			name:    "team pages share a segment",
			refresh: Refresh{Pages: []string{TeamPage("alice")}},
			current: "/team/bob",
			want:    Action{Reload: true},
		},
		{
			name:    "unrelated page is left alone",
			refresh: Refresh{Pages: []string{PageGame}},
			current: "/leaderboard",
			want:    Action{},
		},
		{
			name:    "wildcard always reloads",
			refresh: Refresh{Pages: []string{PageAny}},
			current: "/login",
			want:    Action{Reload: true},
		},
		{
			name:    "redirect wins over reload",
			refresh: Refresh{Pages: []string{PageAny}, Redirect: PageResults},
			current: "/game",
			want:    Action{Navigate: PageResults},
		},
		{
			name:    "root page does not match by empty segment",
			refresh: Refresh{Pages: []string{"/"}},
			current: "/game",
			want:    Action{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.refresh.Resolve(tt.current))
		})
	}
}

func TestAudience(t *testing.T) {
	assert.True(t, ToAll().All)
	assert.Equal(t, []string{"alice", "bob"}, ToTeams("alice", "bob").Teams)
	assert.False(t, ToTeams("alice").All)
}
