package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"genstudio/internal/domain"
	"genstudio/internal/library"
	"genstudio/internal/storage"
)

const promptColumnWidth = 40

func newAssetsCommand(ctx *commandContext) *cobra.Command {
	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Inspect and manage generated assets",
	}
	assetsCmd.AddCommand(newAssetsListCommand(ctx))
	assetsCmd.AddCommand(newAssetsShowCommand(ctx))
	assetsCmd.AddCommand(newAssetsDeleteCommand(ctx))
	assetsCmd.AddCommand(newAssetsExportCommand(ctx))
	return assetsCmd
}

func newAssetsListCommand(ctx *commandContext) *cobra.Command {
	var typeFlag, statusFlag string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List assets, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(typeFlag, statusFlag)
			if err != nil {
				return err
			}
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			assets := rt.Library.List(filter)
			if asJSON {
				return writeJSON(cmd, assets)
			}
			out := cmd.OutOrStdout()
			if len(assets) == 0 {
				fmt.Fprintln(out, "No assets")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Type", "Status", "Model", "Created", "Label", "Prompt"},
				assetRows(assets, time.Now()),
				nil,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&typeFlag, "type", "", "Only list assets of this type (image, video, audio, music)")
	cmd.Flags().StringVar(&statusFlag, "status", "", "Only list assets with this status")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print assets as JSON")
	return cmd
}

func newAssetsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one asset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()
			asset, ok := rt.Library.Get(args[0])
			if !ok {
				return fmt.Errorf("asset %s: %w", args[0], domain.ErrNotFound)
			}
			return writeJSON(cmd, asset)
		},
	}
}

func newAssetsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete assets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()
			out := cmd.OutOrStdout()
			var missing []string
			for _, id := range args {
				removed, ok := rt.Library.Delete(cmd.Context(), id)
				if !ok {
					missing = append(missing, id)
					continue
				}
				if removed.TaskID != "" {
					rt.Poller.Cancel(removed.TaskID)
				}
				fmt.Fprintf(out, "Deleted %s\n", id)
			}
			if len(missing) > 0 {
				return fmt.Errorf("not found: %s", strings.Join(missing, ", "))
			}
			return nil
		},
	}
}

func newAssetsExportCommand(ctx *commandContext) *cobra.Command {
	var output, typeFlag string
	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Write completed assets to a zip archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(typeFlag, "")
			if err != nil {
				return err
			}
			filter.Status = domain.StatusCompleted
			filter.IDs = args

			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			assets := rt.Library.List(filter)
			if len(assets) == 0 {
				return fmt.Errorf("no completed assets to export")
			}
			if strings.TrimSpace(output) == "" {
				output = storage.ExportName(time.Now())
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			n, skipped, err := rt.Exporter.WriteArchive(cmd.Context(), f, assets)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}

			out := cmd.OutOrStdout()
			info, statErr := os.Stat(output)
			size := "unknown size"
			if statErr == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(out, "Wrote %d files to %s (%s)\n", n, output, size)
			if len(skipped) > 0 {
				fmt.Fprintf(out, "Skipped: %s\n", strings.Join(skipped, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (defaults to a timestamped name)")
	cmd.Flags().StringVar(&typeFlag, "type", "", "Only export assets of this type")
	return cmd
}

func parseFilter(typeFlag, statusFlag string) (library.Filter, error) {
	var filter library.Filter
	if typeFlag != "" {
		t, ok := domain.ParseAssetType(typeFlag)
		if !ok {
			return filter, fmt.Errorf("unknown type %q", typeFlag)
		}
		filter.Type = t
	}
	if statusFlag != "" {
		switch s := domain.AssetStatus(strings.ToLower(statusFlag)); s {
		case domain.StatusLoading, domain.StatusQueued, domain.StatusProcessing, domain.StatusCompleted, domain.StatusFailed:
			filter.Status = s
		default:
			return filter, fmt.Errorf("unknown status %q", statusFlag)
		}
	}
	return filter, nil
}

func assetRows(assets []domain.GeneratedAsset, now time.Time) [][]string {
	rows := make([][]string, 0, len(assets))
	for _, a := range assets {
		rows = append(rows, []string{
			a.ID,
			string(a.Type),
			string(a.Status),
			a.ModelID,
			humanize.RelTime(a.CreatedAt(), now, "ago", "from now"),
			a.GenTimeLabel,
			truncate(a.Prompt, promptColumnWidth),
		})
	}
	return rows
}

func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
