package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Re-attach pollers to pending assets",
		Long:  "Re-attach pollers to queued assets left behind by a stopped server. Assets that never received a task id are marked interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := ctx.open(cmd.Context())
			if err != nil {
				return err
			}
			defer ctx.close()

			pending := rt.Library.Pending()
			report := rt.Poller.ResumePending(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Re-attached: %d\nInterrupted: %d\n", report.Reattached, report.Interrupted)
			if !wait || report.Reattached == 0 {
				return nil
			}

			ids := make([]string, 0, len(pending))
			for _, a := range pending {
				if a.TaskID != "" {
					ids = append(ids, a.ID)
				}
			}
			waitCtx, cancel := withOptionalTimeout(cmd.Context(), timeout)
			defer cancel()
			settled, err := waitTerminal(waitCtx, rt.Library, ids)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderTable([]string{"ID", "Status", "Label", "URL"}, resultRows(settled), nil))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Keep polling until the re-attached assets settle")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Maximum time to wait")
	return cmd
}
