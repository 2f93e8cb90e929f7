package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/usecase"
)

type auditOptions struct {
	text        string
	types       []string
	actors      []string
	from        string
	to          string
	page        int
	includeSelf bool
}

func newAuditCommand(env *commandEnv) *cobra.Command {
	opts := &auditOptions{}
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the organization's audit trail",
		Long: `Audit fetches the most recent activity once, correlates actors with their
roles and prints one page of the filtered result.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, env, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.text, "query", "q", "", "Free-text search over actor, type, title, document id, note and path")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "Event types to keep (login, create, edit, delete, move, link, unlink, versionSet)")
	cmd.Flags().StringSliceVar(&opts.actors, "actor", nil, "Actors to keep")
	cmd.Flags().StringVar(&opts.from, "from", "", "First day to include, YYYY-MM-DD")
	cmd.Flags().StringVar(&opts.to, "to", "", "Last day to include, YYYY-MM-DD")
	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number")
	cmd.Flags().BoolVar(&opts.includeSelf, "include-self", false, "Include the caller's own activity")

	return cmd
}

func runAudit(cmd *cobra.Command, env *commandEnv, opts *auditOptions) error {
	filter, err := opts.filter(time.Local)
	if err != nil {
		return err
	}

	svc, scope, release, err := env.services(cmd)
	if err != nil {
		return err
	}
	defer release()

	query := svc.AuditQuery
	query.IncludeSelf = opts.includeSelf
	view := usecase.NewAuditView(svc.Audit, scope, query)
	if err := view.Refresh(cmd.Context()); err != nil {
		return err
	}
	view.SetFilter(filter)
	view.SetPage(opts.page)
	snap := view.Snapshot()

	if env.opts.json {
		return printJSON(cmd.OutOrStdout(), snap)
	}
	return printAuditPage(cmd.OutOrStdout(), snap.Page)
}

func (o *auditOptions) filter(loc *time.Location) (domain.AuditFilter, error) {
	filter := domain.AuditFilter{Text: o.text, Actors: o.actors, Location: loc}
	for _, raw := range o.types {
		eventType := domain.AuditEventType(raw)
		if !eventType.Known() {
			return domain.AuditFilter{}, domain.WrapError(domain.ErrInvalidInput, "audit filter", fmt.Errorf("unknown event type %q", raw))
		}
		filter.Types = append(filter.Types, eventType)
	}
	for _, bound := range []struct {
		raw string
		dst **time.Time
	}{{o.from, &filter.From}, {o.to, &filter.To}} {
		if bound.raw == "" {
			continue
		}
		day, err := time.ParseInLocation("2006-01-02", bound.raw, loc)
		if err != nil {
			return domain.AuditFilter{}, domain.WrapError(domain.ErrInvalidInput, "audit filter", err)
		}
		*bound.dst = &day
	}
	return filter, nil
}

func printAuditPage(w io.Writer, page domain.AuditPage) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTOR\tROLE\tTYPE\tDOCUMENT\tNOTE")
	for _, event := range page.Events {
		document := event.Title
		if document == "" {
			document = event.DocID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			event.Time().Local().Format("2006-01-02 15:04"),
			event.ActorIdentity, event.Role, event.Type, document, event.Note)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d of %d (%d events)\n", page.Page, page.TotalPages, page.Total)
	return err
}
