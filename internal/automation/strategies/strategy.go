// Package strategies holds the registration strategies for every service
// category and the ordered token table that routes type keys to them.
package strategies

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"filing-automation/internal/automation"
	apperrors "filing-automation/internal/common/errors"
	"filing-automation/internal/common/validation"
	"filing-automation/internal/models"

	"golang.org/x/sync/errgroup"
)

// Service categories.
const (
	CategoryBusinessRegistration = "business-registration"
	CategoryTaxCompliance        = "tax-compliance"
	CategoryROCFilings           = "roc-filings"
	CategoryLicenses             = "licenses"
	CategoryIntellectualProperty = "intellectual-property"
	CategoryLabourHR             = "labour-hr"
	CategoryCertifications       = "certifications"
	CategoryLegalDrafting        = "legal-drafting"
	CategoryFinancial            = "financial"
)

// maxParallelRenders bounds concurrent renderer calls per record.
const maxParallelRenders = 4

// Definition declares one strategy.
type Definition struct {
	Name     string
	Category string
	// Schema constrains FormData fields when they are present.
	Schema map[string]interface{}
	// Drafts are the document kinds rendered for the record.
	Drafts []string
}

// Strategy validates form data against its schema and renders its drafts
// through the Renderer.
type Strategy struct {
	def      Definition
	schema   *validation.Schema
	renderer automation.Renderer
}

func New(def Definition, renderer automation.Renderer) (*Strategy, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("strategy name is required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("strategy %s: renderer is required", def.Name)
	}
	schemaDef := def.Schema
	if schemaDef == nil {
		schemaDef = map[string]interface{}{"type": "object"}
	}
	schema, err := validation.Compile(schemaDef)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", def.Name, err)
	}
	return &Strategy{def: def, schema: schema, renderer: renderer}, nil
}

func (s *Strategy) Name() string     { return s.def.Name }
func (s *Strategy) Category() string { return s.def.Category }

// DraftKinds returns the kinds GenerateDrafts renders.
func (s *Strategy) DraftKinds() []string {
	return append([]string(nil), s.def.Drafts...)
}

// Validate rejects blank document references and form data that breaks the schema.
func (s *Strategy) Validate(ctx context.Context, record *models.ApplicationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var issues []string
	kinds := make([]string, 0, len(record.UploadedDocuments))
	for kind := range record.UploadedDocuments {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if strings.TrimSpace(record.UploadedDocuments[kind]) == "" {
			issues = append(issues, fmt.Sprintf("document %s: missing file reference", kind))
		}
	}

	res, err := s.schema.Validate(record.FormData)
	if err != nil {
		return apperrors.NewApplicationValidationError(err.Error(), nil)
	}
	issues = append(issues, res.GetErrorMessages()...)

	if len(issues) > 0 {
		return apperrors.NewApplicationValidationError("", issues).
			WithMetadata("strategy", s.def.Name)
	}
	return nil
}

// GenerateDrafts renders every draft kind concurrently. The first failure
// cancels the rest.
func (s *Strategy) GenerateDrafts(ctx context.Context, record *models.ApplicationRecord) (map[string]string, error) {
	var (
		mu     sync.Mutex
		drafts = make(map[string]string, len(s.def.Drafts))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRenders)
	for _, kind := range s.def.Drafts {
		kind := kind
		g.Go(func() (err error) {
			// Render runs off the orchestrator goroutine, so its panics are recovered here.
			defer func() {
				if rec := recover(); rec != nil {
					err = apperrors.NewInternalError(fmt.Errorf("render %s panic: %v", kind, rec)).
						WithMetadata("draftKind", kind)
				}
			}()
			ref, err := s.renderer.Render(gctx, kind, record)
			if err != nil {
				return apperrors.NewDraftGenerationError(kind, err, isTransient(err))
			}
			mu.Lock()
			drafts[kind] = ref
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return drafts, nil
}

type temporary interface {
	Temporary() bool
}

func isTransient(err error) bool {
	var t temporary
	if errors.As(err, &t) && t.Temporary() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
