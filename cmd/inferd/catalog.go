package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"inferd/internal/catalog"
)

func (a *app) newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect and manage model catalogs",
	}
	cmd.AddCommand(a.newCatalogListCmd(), newCatalogValidateCmd(), a.newCatalogImportCmd())
	return cmd
}

func (a *app) newCatalogListCmd() *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models from the built-in table, catalog file and catalog db",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := buildCatalog(cmd.Context(), a.cfg, a.log)
			if err != nil {
				return err
			}
			models := cat.List()
			if query != "" {
				models = cat.Search(query)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tVERSION\tLABELS\tSOURCE")
			for _, m := range models {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					color.CyanString(m.ID), m.Type, m.Version, len(m.Labels), m.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by id, name or type")
	return cmd
}

func newCatalogValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate every model in a catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := catalog.LoadPath(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var bad int
			seen := make(map[string]bool, len(models))
			for _, m := range models {
				_, _, err := catalog.Validate(m)
				if err == nil && seen[m.ID] {
					err = fmt.Errorf("model %q: duplicate id", m.ID)
				}
				seen[m.ID] = true
				if err != nil {
					bad++
					fmt.Fprintf(out, "%s %s\n", color.RedString("FAIL"), err)
					continue
				}
				fmt.Fprintf(out, "%s %s\n", color.GreenString("ok"), m.ID)
			}
			if bad > 0 {
				return fmt.Errorf("%d of %d models invalid", bad, len(models))
			}
			return nil
		},
	}
}

func (a *app) newCatalogImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a catalog file and upsert its models into --catalog-db",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(a.cfg.CatalogDB) == "" {
				return fmt.Errorf("--catalog-db is required")
			}
			models, err := catalog.LoadPath(args[0])
			if err != nil {
				return err
			}
			store, err := catalog.OpenStore(a.cfg.CatalogDB)
			if err != nil {
				return err
			}
			defer store.Close()
			for _, m := range models {
				if err := store.Upsert(cmd.Context(), m); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d models into %s\n", len(models), a.cfg.CatalogDB)
			return nil
		},
	}
}
