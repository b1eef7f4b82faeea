package models

// AgendaItem is one scheduled segment of a session's agenda.
type AgendaItem struct {
	Title                  string `json:"title"`
	PlannedDurationSeconds int    `json:"planned_duration_seconds"`
	Description            string `json:"description,omitempty"`
	Speaker                string `json:"speaker,omitempty"`
}
