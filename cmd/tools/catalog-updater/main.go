// cmd/tools/catalog-updater/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"filing-automation/internal/automation"
	"filing-automation/internal/automation/strategies"
	"filing-automation/internal/render"
	"filing-automation/pkg/registry"
)

const defaultCatalogPath = "configs/service-catalog.json"

func main() {
	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "update":
		err = runUpdate(os.Args[2:])
	case "validate":
		err = runValidate(os.Args[2:])
	case "check":
		err = runCheck(os.Args[2:])
	default:
		help()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	path := fs.String("path", defaultCatalogPath, "Path to catalog file")
	id := fs.String("id", "", "Service ID (e.g., gst-registration)")
	displayName := fs.String("displayName", "", "Display Name (e.g., GST Registration)")
	description := fs.String("description", "", "Description")
	category := fs.String("category", "", "Category (e.g., tax-compliance)")
	typeKey := fs.String("typeKey", "", "Registration type key (e.g., GST_REGISTRATION)")
	status := fs.String("status", registry.StatusPlanned, "Status (planned, active, retired)")
	documents := fs.String("documents", "", "Comma separated document kinds")
	_ = fs.Parse(args)

	if *id == "" || *displayName == "" || *category == "" || *typeKey == "" {
		fs.Usage()
		return fmt.Errorf("id, displayName, category, and typeKey are required for add")
	}

	cat, err := registry.LoadOrNew(*path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	svc := registry.Service{
		ID:          *id,
		DisplayName: *displayName,
		Description: *description,
		Category:    *category,
		TypeKey:     automation.NormalizeType(*typeKey),
		Status:      *status,
		Documents:   splitList(*documents),
	}
	if err := cat.Add(svc); err != nil {
		return err
	}
	if err := cat.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Added service: %s (%s)\n", svc.ID, svc.TypeKey)
	return nil
}

func runUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	path := fs.String("path", defaultCatalogPath, "Path to catalog file")
	id := fs.String("id", "", "Service ID to update")
	field := fs.String("field", "", "Field to update (status, displayName, description, category, typeKey)")
	value := fs.String("value", "", "New value for the field")
	_ = fs.Parse(args)

	if *id == "" || *field == "" || *value == "" {
		fs.Usage()
		return fmt.Errorf("id, field, and value are required for update")
	}

	cat, err := registry.LoadCatalog(*path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := cat.Update(*id, *field, *value); err != nil {
		return err
	}
	if err := cat.Save(*path); err != nil {
		return err
	}
	fmt.Printf("Updated service %s, field %s to %s\n", *id, *field, *value)
	return nil
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	path := fs.String("path", defaultCatalogPath, "Path to catalog file")
	_ = fs.Parse(args)

	cat, err := registry.LoadCatalog(*path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return fmt.Errorf("catalog validation failed: %w", err)
	}
	fmt.Printf("Catalog validation passed. Found %d services.\n", len(cat.Services))
	return nil
}

// runCheck resolves every catalog type key against the strategy table.
func runCheck(args []string) error {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	path := fs.String("path", defaultCatalogPath, "Path to catalog file")
	_ = fs.Parse(args)

	cat, err := registry.LoadCatalog(*path)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	reg, err := strategies.NewDefaultRegistry(render.NewLocalRenderer(os.TempDir()))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tTYPE KEY\tSTRATEGY")
	unresolved := 0
	for _, svc := range cat.Services {
		name := "-"
		if s, err := reg.Resolve(svc.TypeKey); err == nil {
			name = s.Name()
		} else if svc.Status != registry.StatusRetired {
			unresolved++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", svc.ID, svc.TypeKey, name)
	}
	_ = w.Flush()

	if unresolved > 0 {
		return fmt.Errorf("%d service(s) have no strategy", unresolved)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func help() {
	fmt.Println(`
Usage: catalog-updater <command> [flags]

Commands:
  add      Add a new service to the catalog
  update   Update an existing service's field
  validate Validate the catalog file
  check    Resolve every type key against the strategy table
  help     Show this help message

Examples:
  catalog-updater add -id gst-registration -displayName "GST Registration" -category tax-compliance -typeKey GST_REGISTRATION
  catalog-updater update -id gst-registration -field status -value active
  catalog-updater validate -path configs/service-catalog.json
  catalog-updater check

Use 'catalog-updater <command> -h' for more information about a command.`)
}
