package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

func newVersionsCommand(env *commandEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Inspect and reorder version chains",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list GROUP_ID",
		Short: "List the versions of a group, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, scope, release, err := env.services(cmd)
			if err != nil {
				return err
			}
			defer release()
			versions, err := svc.Versions.ListVersions(cmd.Context(), scope, args[0])
			if err != nil {
				return err
			}
			return printVersions(cmd.OutOrStdout(), env.opts.json, versions)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-current DOCUMENT_ID",
		Short: "Make a document the current version of its group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, scope, release, err := env.services(cmd)
			if err != nil {
				return err
			}
			defer release()
			versions, err := svc.Versions.SetCurrent(cmd.Context(), scope, args[0])
			if err != nil {
				return err
			}
			return printVersions(cmd.OutOrStdout(), env.opts.json, versions)
		},
	})

	var from, to int
	move := &cobra.Command{
		Use:   "move DOCUMENT_ID",
		Short: "Swap two version numbers within the document's group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, scope, release, err := env.services(cmd)
			if err != nil {
				return err
			}
			defer release()
			versions, err := svc.Versions.MoveVersion(cmd.Context(), scope, args[0], from, to)
			if err != nil {
				return err
			}
			return printVersions(cmd.OutOrStdout(), env.opts.json, versions)
		},
	}
	move.Flags().IntVar(&from, "from", 0, "Version number to move")
	move.Flags().IntVar(&to, "to", 0, "Version number to swap with")
	_ = move.MarkFlagRequired("from")
	_ = move.MarkFlagRequired("to")
	cmd.AddCommand(move)

	return cmd
}

func printVersions(w io.Writer, asJSON bool, versions []domain.Document) error {
	if asJSON {
		return printJSON(w, versions)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tCURRENT\tID\tTITLE")
	for _, doc := range versions {
		current := ""
		if doc.IsCurrentVersion {
			current = "*"
		}
		fmt.Fprintf(tw, "v%d\t%s\t%s\t%s\n", doc.VersionNumber, current, doc.ID, doc.Title)
	}
	return tw.Flush()
}
