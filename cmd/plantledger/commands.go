package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"plantledger/internal/query"
	"plantledger/pkg/domain"
)

func availableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "available",
		Short: "List seed batches that still hold seed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			batches, err := a.reporter.AvailableBatches(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tSPECIES\tSTORED\tLOCATION\tTOTAL\tAVAILABLE")
			for _, b := range batches {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\n",
					b.Batch.Code,
					speciesLabel(b.Batch.Taxon),
					b.Batch.StorageDate.Format(domain.DateLayout),
					b.Batch.StorageLocation,
					b.Batch.TotalQuantity,
					b.Available)
			}
			return w.Flush()
		},
	}
}

func speciesLabel(t domain.Taxon) string {
	switch {
	case t.SpeciesLatin != "" && t.SpeciesLocal != "":
		return t.SpeciesLatin + " (" + t.SpeciesLocal + ")"
	case t.SpeciesLatin != "":
		return t.SpeciesLatin
	case t.SpeciesLocal != "":
		return t.SpeciesLocal
	case t.Genus != "":
		return t.Genus + " sp."
	}
	return "-"
}

func statsCommand(a *app) *cobra.Command {
	var top int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print ledger statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			overview, err := a.reporter.Overview(ctx)
			if err != nil {
				return err
			}
			germination, err := a.reporter.GerminationStats(ctx)
			if err != nil {
				return err
			}
			taxa, err := a.reporter.TaxonCounts(ctx, top)
			if err != nil {
				return err
			}
			survival, err := a.reporter.SurvivalByLocation(ctx)
			if err != nil {
				return err
			}

			out := a.stdout
			if a.cfg.OrganizationName != "" {
				fmt.Fprintln(out, a.cfg.OrganizationName)
			}
			fmt.Fprintf(out, "collections: %d (%d unidentified)\n", overview.Collections, overview.UnidentifiedCollections)
			fmt.Fprintf(out, "seed batches: %d, seeds available: %d\n", overview.SeedBatches, overview.SeedsAvailable)
			fmt.Fprintf(out, "germination trials: %d (%d in progress)\n", overview.GerminationTrials, overview.GerminationsInProgress)
			fmt.Fprintf(out, "cultivations: %d alive, %d dead, %d flowering, %d fruiting\n",
				overview.Alive, overview.Dead, overview.Flowering, overview.Fruiting)

			if germination.Trials > 0 {
				fmt.Fprintf(out, "germination rate over %d completed trials: mean %.1f%%, min %.1f%%, max %.1f%%\n",
					germination.Trials, germination.MeanRate*100, germination.MinRate*100, germination.MaxRate*100)
				for _, t := range germination.ByTreatment {
					fmt.Fprintf(out, "  %s: %.1f%% (%d)\n", t.Treatment, t.MeanRate*100, t.Trials)
				}
			}
			printCounts(a, "cultivated families", taxa.CultivationFamilies)
			printCounts(a, "collected families", taxa.CollectionFamilies)
			if len(survival) > 0 {
				fmt.Fprintln(out, "survival by location:")
				for _, s := range survival {
					fmt.Fprintf(out, "  %s: %.1f%% (%d/%d)\n", s.Location, s.Rate*100, s.Alive, s.Total)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 10, "number of families and genera to list")
	return cmd
}

func printCounts(a *app, title string, counts []query.NameCount) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(a.stdout, "%s:\n", title)
	for _, c := range counts {
		fmt.Fprintf(a.stdout, "  %s: %d\n", c.Name, c.Count)
	}
}

func lineageCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lineage <code>",
		Short: "Trace a record back to its origin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := a.reporter.Lineage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for i, s := range steps {
				fmt.Fprintf(a.stdout, "%s%s %s %s\n", strings.Repeat("  ", i), s.Code, s.Kind, speciesLabel(s.Taxon))
			}
			return nil
		},
	}
}

func searchCommand(a *app) *cobra.Command {
	var (
		f            query.CollectionFilter
		from, to     string
		unidentified bool
		cultivations bool
	)
	cmd := &cobra.Command{
		Use:   "search [text]",
		Short: "Search collections or cultivation records by name, pinyin or place",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.Text = args[0]
			}
			var err error
			if f.From, err = optionalDate(from); err != nil {
				return err
			}
			if f.To, err = optionalDate(to); err != nil {
				return err
			}
			if unidentified {
				no := false
				f.Identified = &no
			}

			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			if cultivations {
				records, err := a.reporter.SearchCultivations(cmd.Context(), query.CultivationFilter{
					Text: f.Text, Family: f.Family, Location: f.Location, From: f.From, To: f.To,
				})
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "CODE\tSPECIES\tSTARTED\tLOCATION\tQTY\tSTATUS")
				for _, r := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Code, speciesLabel(r.Taxon),
						r.StartDate.Format(domain.DateLayout), r.Location, r.Quantity, r.Status)
				}
				return w.Flush()
			}

			collections, err := a.reporter.SearchCollections(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "CODE\tSPECIES\tFAMILY\tCOLLECTED\tLOCATION\tCOLLECTOR")
			for _, c := range collections {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.Code, speciesLabel(c.Taxon), c.Taxon.Family,
					c.CollectionDate.Format(domain.DateLayout), c.Location, c.Collector)
			}
			return w.Flush()
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.Family, "family", "", "family contains")
	flags.StringVar(&f.Genus, "genus", "", "genus contains")
	flags.StringVar(&f.Location, "location", "", "location contains")
	flags.StringVar(&f.Collector, "collector", "", "collector contains")
	flags.StringVar(&from, "from", "", "earliest date (YYYY-MM-DD)")
	flags.StringVar(&to, "to", "", "latest date (YYYY-MM-DD)")
	flags.BoolVar(&unidentified, "unidentified", false, "only collections not yet identified")
	flags.BoolVar(&cultivations, "cultivations", false, "search cultivation records instead of collections")
	return cmd
}

func optionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return domain.ParseDate(raw)
}
