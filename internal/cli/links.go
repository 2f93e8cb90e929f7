package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

func newLinksCommand(env *commandEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Show and edit directed document links",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show DOCUMENT_ID",
		Short: "Show incoming and outgoing links and sibling versions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, scope, release, err := env.services(cmd)
			if err != nil {
				return err
			}
			defer release()
			rel, err := svc.Links.RelationshipsOf(cmd.Context(), scope, args[0])
			if err != nil {
				return err
			}
			return printRelationships(cmd.OutOrStdout(), env.opts.json, rel)
		},
	})

	var linkType string
	add := &cobra.Command{
		Use:   "add FROM_ID TO_ID",
		Short: "Create a typed link from one document to another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, scope, release, err := env.services(cmd)
			if err != nil {
				return err
			}
			defer release()
			rel, err := svc.Links.Link(cmd.Context(), scope, domain.Link{FromID: args[0], ToID: args[1], LinkType: linkType})
			if err != nil {
				return err
			}
			return printRelationships(cmd.OutOrStdout(), env.opts.json, rel)
		},
	}
	add.Flags().StringVar(&linkType, "type", "related", "Link type")
	cmd.AddCommand(add)

	cmd.AddCommand(&cobra.Command{
		Use:   "remove FROM_ID TO_ID",
		Short: "Remove the link from one document to another; the reverse link stays",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, scope, release, err := env.services(cmd)
			if err != nil {
				return err
			}
			defer release()
			rel, err := svc.Links.Unlink(cmd.Context(), scope, args[0], args[1])
			if err != nil {
				return err
			}
			return printRelationships(cmd.OutOrStdout(), env.opts.json, rel)
		},
	})

	return cmd
}

func printRelationships(w io.Writer, asJSON bool, rel domain.Relationships) error {
	if asJSON {
		return printJSON(w, rel)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DIRECTION\tTYPE\tID\tTITLE")
	for _, peer := range rel.Outgoing {
		fmt.Fprintf(tw, "->\t%s\t%s\t%s\n", peer.LinkType, peer.ID, peer.Title)
	}
	for _, peer := range rel.Incoming {
		fmt.Fprintf(tw, "<-\t%s\t%s\t%s\n", peer.LinkType, peer.ID, peer.Title)
	}
	for _, doc := range rel.Versions {
		fmt.Fprintf(tw, "version\tv%d\t%s\t%s\n", doc.VersionNumber, doc.ID, doc.Title)
	}
	return tw.Flush()
}
