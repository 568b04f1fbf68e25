package models

import "time"

// WrappedKey is a content key wrapped for a single recipient. Records are
// written in pairs under one alias and never updated.
type WrappedKey struct {
	ID           string
	RecipientID  string
	RepositoryID string
	WrappedKey   string
	Alias        string
	CreatedAt    time.Time
}
