// internal/automation/packager.go
package automation

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"filing-automation/internal/models"
)

// PackageTimestampLayout is sortable and filesystem safe.
const PackageTimestampLayout = "20060102T150405.000000000Z"

// PackagePath returns {baseDir}/{submissionId}/Final_Package_{timestamp}.{ext}.
func PackagePath(baseDir, submissionID, ext string, at time.Time) string {
	ext = strings.TrimPrefix(ext, ".")
	name := fmt.Sprintf("Final_Package_%s.%s", at.UTC().Format(PackageTimestampLayout), ext)
	return filepath.Join(baseDir, safeSegment(submissionID), name)
}

// safeSegment keeps a caller supplied id from escaping baseDir.
func safeSegment(s string) string {
	s = strings.NewReplacer("/", "_", `\`, "_").Replace(s)
	if s == "." || s == ".." || s == "" {
		return "_"
	}
	return s
}

type packageManifest struct {
	SubmissionID      string                 `json:"submissionId"`
	RegistrationType  string                 `json:"registrationType"`
	UploadedDocuments map[string]string      `json:"uploadedDocuments"`
	GeneratedDrafts   map[string]string      `json:"generatedDrafts"`
	FormData          map[string]interface{} `json:"formData"`
	BuiltAt           time.Time              `json:"builtAt"`
}

// ZipPackager writes a zip archive holding a manifest plus every draft that is
// a readable local file. Remote draft references are listed in the manifest only.
type ZipPackager struct{}

func NewZipPackager() *ZipPackager {
	return &ZipPackager{}
}

func (p *ZipPackager) Build(ctx context.Context, record *models.ApplicationRecord, path string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".package-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	zw := zip.NewWriter(tmp)
	if err = writeManifest(zw, record); err != nil {
		return err
	}

	kinds := make([]string, 0, len(record.GeneratedDrafts))
	for kind := range record.GeneratedDrafts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		if err = ctx.Err(); err != nil {
			return err
		}
		if err = addLocalFile(zw, "drafts/"+kind+filepath.Ext(record.GeneratedDrafts[kind]), record.GeneratedDrafts[kind]); err != nil {
			return err
		}
	}

	if err = zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("publish archive: %w", err)
	}
	return nil
}

func writeManifest(zw *zip.Writer, record *models.ApplicationRecord) error {
	rec := record.Clone()
	rec.EnsureMaps()
	body, err := json.MarshalIndent(packageManifest{
		SubmissionID:      rec.SubmissionID,
		RegistrationType:  rec.RegistrationType,
		UploadedDocuments: rec.UploadedDocuments,
		GeneratedDrafts:   rec.GeneratedDrafts,
		FormData:          rec.FormData,
		BuiltAt:           time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	w, err := zw.Create("manifest.json")
	if err != nil {
		return fmt.Errorf("add manifest: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func addLocalFile(zw *zip.Writer, name, ref string) error {
	info, err := os.Stat(ref)
	if err != nil || !info.Mode().IsRegular() {
		return nil
	}
	f, err := os.Open(ref)
	if err != nil {
		return fmt.Errorf("open draft %s: %w", ref, err)
	}
	defer f.Close()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add draft %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("copy draft %s: %w", name, err)
	}
	return nil
}
