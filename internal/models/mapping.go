// Package models contains domain models and entities.
package models

import (
	"time"
)

// MaxCodeLength is the longest short code any store will hold.
const MaxCodeLength = 16

// Mapping represents a short code pointing at a target URL.
type Mapping struct {
	Code        string    `json:"code"`
	Target      string    `json:"target"`
	CreatedAt   time.Time `json:"created_at"`
	AccessCount int64     `json:"access_count"`
}

// RateWindow is the fixed-window counter kept for a single client.
type RateWindow struct {
	ClientKey   string    `json:"client_key"`
	WindowStart time.Time `json:"window_start"`
	Count       int       `json:"count"`
}

// Elapsed returns how far now is past the start of the window.
func (w *RateWindow) Elapsed(now time.Time) time.Duration {
	return now.Sub(w.WindowStart)
}

// Reset starts a fresh window at now.
func (w *RateWindow) Reset(now time.Time) {
	w.WindowStart = now
	w.Count = 0
}
