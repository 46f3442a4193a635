package domain

import "time"

// AgendaBlock is one display-ready entry of a rendered agenda
type AgendaBlock struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Color string    `json:"color"`
}
