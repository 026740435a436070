package table

import "time"

type queueEntry struct {
	team     string
	joinedAt time.Time
}

// matchQueue holds the teams searching for an opponent, oldest first.
// Not safe for concurrent use; the orchestrator lock guards it.
type matchQueue struct {
	entries []queueEntry
	members map[string]struct{}
}

func newMatchQueue() *matchQueue {
	return &matchQueue{members: make(map[string]struct{})}
}

// push appends a team. It reports false if the team is already queued.
func (q *matchQueue) push(team string, at time.Time) bool {
	if _, ok := q.members[team]; ok {
		return false
	}
	q.members[team] = struct{}{}
	q.entries = append(q.entries, queueEntry{team: team, joinedAt: at})
	return true
}

// peekPair returns the two oldest entries without removing them.
func (q *matchQueue) peekPair() (string, string, bool) {
	if len(q.entries) < 2 {
		return "", "", false
	}
	return q.entries[0].team, q.entries[1].team, true
}

// popPair removes the two oldest entries.
func (q *matchQueue) popPair() (string, string, bool) {
	a, b, ok := q.peekPair()
	if !ok {
		return "", "", false
	}
	delete(q.members, a)
	delete(q.members, b)
	q.entries = q.entries[2:]
	return a, b, true
}

func (q *matchQueue) contains(team string) bool {
	_, ok := q.members[team]
	return ok
}

func (q *matchQueue) len() int {
	return len(q.entries)
}

// snapshot lists queued teams, oldest first.
func (q *matchQueue) snapshot() []string {
	out := make([]string, len(q.entries))
	for i, e := range q.entries {
		out[i] = e.team
	}
	return out
}
