package domain

import "time"

// Identity maps a human-chosen handle to its durable connection id.
// Created on first registration of the handle and never modified.
type Identity struct {
	Handle    string    `json:"handle"`
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
