package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"genstudio/internal/catalog"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := ctx.catalog()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, models)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Type", "ID", "Name", "Refs", "Options"},
				modelRows(models),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

func modelRows(c *catalog.Catalog) [][]string {
	var rows [][]string
	for _, m := range c.Images {
		opts := strings.Join(m.Resolutions, " ")
		rows = append(rows, []string{"image", m.ID, m.Name, strconv.Itoa(m.MaxReferenceImages), opts})
	}
	for _, m := range c.Videos {
		tiers := make([]string, 0, len(m.Options))
		for _, o := range m.Options {
			tiers = append(tiers, o.DurationText())
		}
		rows = append(rows, []string{"video", m.ID, m.Name, strconv.Itoa(m.MaxReferenceImages), strings.Join(tiers, " ")})
	}
	for _, m := range c.Audio {
		rows = append(rows, []string{"audio", m.ID, m.Name, "0", fmt.Sprintf("%d Hz", m.SampleRate)})
	}
	for _, m := range c.Music {
		rows = append(rows, []string{"music", m.ID, m.Name, "0", m.MV})
	}
	return rows
}
