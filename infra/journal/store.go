// Package journal persists a record of every operation run and every device
// load update so past demo runs can be inspected.
package journal

import (
	"context"
	"time"

	"github.com/google/uuid"

	coremetrics "github.com/kilianp07/flexmarket/core/metrics"
)

// Record kinds.
const (
	KindOperation  = "operation"
	KindDeviceLoad = "device_load"
)

// Record is one journal entry.
type Record struct {
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	Name       string    `json:"name"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	Error      string    `json:"error,omitempty"`
	// Created lists the ids of the platform records the operation created.
	Created []string                     `json:"created,omitempty"`
	Load    *coremetrics.DeviceLoadEvent `json:"load,omitempty"`
}

// OperationRecord journals a finished operation.
func OperationRecord(runID, name string, started time.Time, d time.Duration, created []string, err error) Record {
	r := Record{
		RunID:      runID,
		Kind:       KindOperation,
		Name:       name,
		Timestamp:  started,
		DurationMS: d.Milliseconds(),
		Created:    created,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// DeviceLoadRecord journals a device load update.
func DeviceLoadRecord(runID string, ev coremetrics.DeviceLoadEvent) Record {
	return Record{
		RunID:     runID,
		Kind:      KindDeviceLoad,
		Name:      ev.DeviceID,
		Timestamp: ev.Time,
		Load:      &ev,
	}
}

// Query filters records. Zero fields match everything.
type Query struct {
	RunID string
	Kind  string
	Name  string
	Start time.Time
	End   time.Time
}

// Match reports whether r satisfies q.
func (q Query) Match(r Record) bool {
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Name != "" && r.Name != q.Name {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NewRunID returns a fresh identifier shared by the records of one run.
func NewRunID() string { return uuid.NewString() }

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
