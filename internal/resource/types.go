// Package resource defines the persisted catalog entities whose metadata is
// edited and indexed, and the relational store backing them.
package resource

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the concrete resource subtype.
type Kind string

const (
	KindDataset  Kind = "dataset"
	KindMap      Kind = "map"
	KindDocument Kind = "document"
)

// Resource is one row of the resource table together with its directly
// column-backed metadata fields. Side-table values (contacts, regions, links,
// keywords, sparse values) are loaded and written through the Store.
type Resource struct {
	ID   int64
	UUID uuid.UUID
	Kind Kind

	OwnerID int64
	GroupID sql.NullInt64

	Title        string
	Abstract     string
	Purpose      string
	Language     string
	Date         time.Time
	DateType     string
	Edition      string
	Attribution  string
	DOI          string
	License      string
	Restrictions string

	Created time.Time
	Updated time.Time
}

// Contact is a party that can fill a metadata role (owner, author, point of
// contact, distributor, ...).
type Contact struct {
	ID    int64
	Name  string
	Email string
}

// Region is an entry of the administrative/geographic region vocabulary.
type Region struct {
	ID   int64
	Code string
	Name string
}

// Link connects a resource to another resource. Internal links are managed
// by the system (e.g. dataset-to-map associations created at publish time)
// and are never replaced through metadata edits.
type Link struct {
	ID       int64
	TargetID int64
	Internal bool
}
