package domain

import "time"

// SyncStatus describes how a locally stored record relates to the backend copy.
type SyncStatus string

const (
	// SyncStatusSynchronized means local and backend state agree.
	SyncStatusSynchronized SyncStatus = "SYNCHRONIZED"
	// SyncStatusDirty means the record exists on the backend but has local edits not yet pushed.
	SyncStatusDirty SyncStatus = "DIRTY"
	// SyncStatusDetached means the record exists only locally and was never created on the backend.
	SyncStatusDetached SyncStatus = "DETACHED"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusSynchronized, SyncStatusDirty, SyncStatusDetached:
		return true
	}
	return false
}

// String implements fmt.Stringer.
func (s SyncStatus) String() string {
	return string(s)
}

// Syncable provides common fields for entities that participate in synchronization.
// It gets embedded in every record the local store keeps in step with the backend.
type Syncable struct {
	SyncStatus SyncStatus `json:"syncStatus,omitempty"`
	CreatedAt  Timestamp  `json:"createdAt,omitzero"`
	UpdatedAt  Timestamp  `json:"updatedAt,omitzero"`
}

// Touch updates the UpdatedAt timestamp to the current time.
func (s *Syncable) Touch() {
	s.UpdatedAt = Now()
}

// StampIfMissing fills UpdatedAt (and CreatedAt) with now when they are unset.
// Every review must be sortable by recency even if the backend never echoes a timestamp.
func (s *Syncable) StampIfMissing() {
	now := Now()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = now
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = s.UpdatedAt
	}
}

// MarkSynchronized records that the backend acknowledged the current state.
func (s *Syncable) MarkSynchronized() {
	s.SyncStatus = SyncStatusSynchronized
}

// MarkDirty records a local edit the backend has not seen yet.
func (s *Syncable) MarkDirty() {
	s.SyncStatus = SyncStatusDirty
}

// MarkDetached records that the entity exists only locally.
func (s *Syncable) MarkDetached() {
	s.SyncStatus = SyncStatusDetached
}

// IsDirty reports whether the record has unpushed local edits.
func (s *Syncable) IsDirty() bool {
	return s.SyncStatus == SyncStatusDirty
}

// IsDetached reports whether the record has never reached the backend.
func (s *Syncable) IsDetached() bool {
	return s.SyncStatus == SyncStatusDetached
}

// LastChanged returns the most recent of UpdatedAt and CreatedAt.
func (s *Syncable) LastChanged() time.Time {
	if s.UpdatedAt.After(s.CreatedAt.Time) {
		return s.UpdatedAt.Time
	}
	return s.CreatedAt.Time
}
