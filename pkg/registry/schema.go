// pkg/registry/schema.go
package registry

// ServiceCatalog lists every filing service offered, keyed by the registration
// type that routes it to an automation strategy.
type ServiceCatalog struct {
	Version     string    `json:"version"`
	LastUpdated string    `json:"lastUpdated"`
	Services    []Service `json:"services"`
}

type Service struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category"`
	TypeKey     string   `json:"typeKey"`
	Status      string   `json:"status"`
	Documents   []string `json:"documents,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Service statuses.
const (
	StatusPlanned = "planned"
	StatusActive  = "active"
	StatusRetired = "retired"
)
