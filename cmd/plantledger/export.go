package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"plantledger/pkg/domain"
)

// exportDocument is the full ledger as written by the export command.
type exportDocument struct {
	Organization         string                       `json:"organization,omitempty"`
	ExportedAt           time.Time                    `json:"exported_at"`
	Collections          []domain.Collection          `json:"collections"`
	SeedBatches          []domain.SeedBatch           `json:"seed_batches"`
	GerminationRecords   []domain.GerminationRecord   `json:"germination_records"`
	GerminationEvents    []domain.GerminationEvent    `json:"germination_events"`
	CultivationRecords   []domain.CultivationRecord   `json:"cultivation_records"`
	CultivationEvents    []domain.CultivationEvent    `json:"cultivation_events"`
	CultivationSubgroups []domain.CultivationSubgroup `json:"cultivation_subgroups"`
	Images               []domain.Image               `json:"images"`
}

func exportCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every ledger record as JSON or YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := exportDocument{
				Organization: a.cfg.OrganizationName,
				ExportedAt:   time.Now().UTC(),
			}
			err := a.ledger.Store().View(cmd.Context(), func(v domain.TransactionView) error {
				doc.Collections = v.ListCollections()
				doc.SeedBatches = v.ListSeedBatches()
				doc.GerminationRecords = v.ListGerminationRecords()
				doc.GerminationEvents = v.ListGerminationEvents()
				doc.CultivationRecords = v.ListCultivationRecords()
				doc.CultivationEvents = v.ListCultivationEvents()
				doc.CultivationSubgroups = v.ListCultivationSubgroups()
				doc.Images = v.ListImages()
				return nil
			})
			if err != nil {
				return err
			}
			return writeExport(a.stdout, format, doc)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or yaml")
	return cmd
}

func writeExport(w io.Writer, format string, doc exportDocument) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml", "yml":
		// Round-trip through JSON so YAML keys follow the json tags of the
		// domain types.
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		var tree map[string]any
		if err := json.Unmarshal(raw, &tree); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tree); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
