package models

import "time"

// RepositoryRecord is the relational half of a repository; its content
// lives in a directory of the same name under the repositories root.
type RepositoryRecord struct {
	ID          string
	Name        string
	Description string
	OwnerID     string
	CreatedAt   time.Time
}
