// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"filing-automation/internal/common/validation"
)

var (
	ErrServiceExists   = errors.New("service already exists")
	ErrServiceNotFound = errors.New("service not found")
)

// LoadCatalog reads a catalog file.
func LoadCatalog(path string) (*ServiceCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cat ServiceCatalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &cat, nil
}

// LoadOrNew reads path, or returns an empty catalog when it does not exist.
func LoadOrNew(path string) (*ServiceCatalog, error) {
	cat, err := LoadCatalog(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ServiceCatalog{Version: "1.0.0", Services: []Service{}}, nil
	}
	return cat, err
}

// Save writes the catalog as indented JSON, stamping LastUpdated.
func (c *ServiceCatalog) Save(path string) error {
	c.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Find returns the service with id.
func (c *ServiceCatalog) Find(id string) (*Service, error) {
	for i := range c.Services {
		if c.Services[i].ID == id {
			return &c.Services[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, id)
}

// Add appends a service after validating it.
func (c *ServiceCatalog) Add(s Service) error {
	if _, err := c.Find(s.ID); err == nil {
		return fmt.Errorf("%w: %s", ErrServiceExists, s.ID)
	}
	if s.Status == "" {
		s.Status = StatusPlanned
	}
	if err := s.Validate(); err != nil {
		return err
	}
	c.Services = append(c.Services, s)
	return nil
}

// Update sets one field of an existing service.
func (c *ServiceCatalog) Update(id, field, value string) error {
	s, err := c.Find(id)
	if err != nil {
		return err
	}
	next := *s
	switch field {
	case "status":
		next.Status = value
	case "displayName":
		next.DisplayName = value
	case "description":
		next.Description = value
	case "category":
		next.Category = value
	case "typeKey":
		next.TypeKey = value
	default:
		return fmt.Errorf("unknown field: %s", field)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*s = next
	return nil
}

// Validate checks required fields and the type key format.
func (s Service) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("service missing required field: id")
	case s.DisplayName == "":
		return fmt.Errorf("service %s missing required field: displayName", s.ID)
	case s.Category == "":
		return fmt.Errorf("service %s missing required field: category", s.ID)
	case s.TypeKey == "":
		return fmt.Errorf("service %s missing required field: typeKey", s.ID)
	}
	if err := validation.ValidateTypeKey(s.TypeKey); err != nil {
		return fmt.Errorf("service %s: %w", s.ID, err)
	}
	switch s.Status {
	case StatusPlanned, StatusActive, StatusRetired:
	default:
		return fmt.Errorf("service %s: unknown status %q", s.ID, s.Status)
	}
	return nil
}

// Validate checks every service and rejects duplicate ids or type keys.
func (c *ServiceCatalog) Validate() error {
	if len(c.Services) == 0 {
		return fmt.Errorf("catalog contains no services")
	}
	ids := make(map[string]bool, len(c.Services))
	keys := make(map[string]string, len(c.Services))
	for _, s := range c.Services {
		if err := s.Validate(); err != nil {
			return err
		}
		if ids[s.ID] {
			return fmt.Errorf("duplicate service id: %s", s.ID)
		}
		ids[s.ID] = true
		if other, ok := keys[s.TypeKey]; ok {
			return fmt.Errorf("type key %s used by %s and %s", s.TypeKey, other, s.ID)
		}
		keys[s.TypeKey] = s.ID
	}
	return nil
}

// TypeKeys returns the type keys of every non-retired service, in catalog order.
func (c *ServiceCatalog) TypeKeys() []string {
	out := make([]string, 0, len(c.Services))
	for _, s := range c.Services {
		if s.Status == StatusRetired {
			continue
		}
		out = append(out, s.TypeKey)
	}
	return out
}
