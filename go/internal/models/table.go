package models

// Table is the single shared resource. ActiveGame is non-nil iff a match is in progress.
type Table struct {
	ActiveGame *Game
}

// Occupied reports whether a game holds the table.
func (t *Table) Occupied() bool {
	return t.ActiveGame != nil
}
