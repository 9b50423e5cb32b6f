package domain

import (
	"context"

	"gorm.io/gorm"
)

// Entry is the caller-facing shape of an audit record. Actor and request
// attribution are filled in from the context by the service.
type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

// Service records audit entries. Record never fails the surrounding
// operation; RecordTx participates in the caller's transaction and does.
type Service interface {
	Record(ctx context.Context, entry Entry)
	RecordTx(ctx context.Context, tx *gorm.DB, entry Entry) error
	List(ctx context.Context, filter ListFilter) ([]*AuditLog, error)
}
