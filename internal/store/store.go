// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

// Package store records script runs.
package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Run is one recorded execution of a script.
type Run struct {
	ID     string          // Random UUID
	Script string          // File name, URL or "-" for inline code
	Source string          // Code that was executed
	OK     bool            // False when the run faulted or failed validation
	Result json.RawMessage // JSON form of the run result, or {"error": ...}
	Ts     time.Time
}

// NewRun returns a record with a fresh ID and the current time.
func NewRun(script, source string, ok bool, result json.RawMessage) *Run {
	return &Run{
		ID:     uuid.NewString(),
		Script: script,
		Source: source,
		OK:     ok,
		Result: result,
		Ts:     time.Now().UTC(),
	}
}

// Store is the interface for run persistence.
type Store interface {
	// Save records r, overwriting any run with the same ID.
	Save(r *Run) error
	// Get retrieves a run by ID. Returns nil if not found.
	Get(id string) (*Run, error)
	// Latest returns the most recent run, or nil if there is none.
	Latest() (*Run, error)
	// List returns runs newest first. A limit of 0 means all.
	List(limit int) ([]Run, error)
	// Close releases resources.
	Close() error
}
