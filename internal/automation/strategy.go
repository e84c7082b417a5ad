// internal/automation/strategy.go
package automation

import (
	"context"

	"filing-automation/internal/models"
)

// RegistrationStrategy validates and drafts one family of registration types.
// Implementations must be safe for concurrent use.
type RegistrationStrategy interface {
	Name() string
	Validate(ctx context.Context, record *models.ApplicationRecord) error
	// GenerateDrafts returns draft kind -> storage reference.
	GenerateDrafts(ctx context.Context, record *models.ApplicationRecord) (map[string]string, error)
}

// Renderer turns one draft kind for a record into a stored document reference.
type Renderer interface {
	Render(ctx context.Context, kind string, record *models.ApplicationRecord) (string, error)
}

// Packager assembles the filing package for a record at path.
type Packager interface {
	Build(ctx context.Context, record *models.ApplicationRecord, path string) error
}

// Notifier delivers lifecycle events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// JobIndexer records terminal job summaries for search.
type JobIndexer interface {
	IndexJob(ctx context.Context, job *models.Job, record *models.ApplicationRecord) error
}
