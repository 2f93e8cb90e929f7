package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

// Services is what the commands run against.
type Services struct {
	Uploads  ports.DocumentUploader
	Versions ports.VersionChainManager
	Links    ports.RelationshipGraph
	Audit    ports.AuditReader

	// Scope holds the configured defaults; --org and --actor override them.
	Scope      domain.Scope
	AuditQuery domain.AuditQuery
}

// Loader builds the services once per invocation. The returned func releases them.
type Loader func(cmd *cobra.Command) (*Services, func(), error)

type rootOptions struct {
	org      string
	actor    string
	elevated bool
	json     bool
}

func NewRootCommand(load Loader) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "doclife",
		Short: "Document lifecycle CLI",
		Long: `doclife uploads documents into an organization's folder tree and manages
version chains, document links and the audit trail.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.org, "org", "", "Organization id (default DOCLIFE_ORG_ID)")
	rootCmd.PersistentFlags().StringVar(&opts.actor, "actor", "", "Acting user email (default DOCLIFE_ACTOR_EMAIL)")
	rootCmd.PersistentFlags().BoolVar(&opts.elevated, "elevated", false, "Act with elevated role")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print JSON instead of tables")

	env := &commandEnv{load: load, opts: opts}
	rootCmd.AddCommand(newUploadCommand(env))
	rootCmd.AddCommand(newVersionsCommand(env))
	rootCmd.AddCommand(newLinksCommand(env))
	rootCmd.AddCommand(newAuditCommand(env))

	return rootCmd
}

// Execute runs the root command
func Execute(load Loader) {
	if err := NewRootCommand(load).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", domain.UserMessage(err))
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}
}

type commandEnv struct {
	load Loader
	opts *rootOptions
}

// services loads the dependencies and resolves the scope from flags over defaults.
func (e *commandEnv) services(cmd *cobra.Command) (*Services, domain.Scope, func(), error) {
	svc, release, err := e.load(cmd)
	if err != nil {
		return nil, domain.Scope{}, nil, err
	}
	if release == nil {
		release = func() {}
	}
	scope := svc.Scope
	if e.opts.org != "" {
		scope.OrgID = e.opts.org
	}
	if e.opts.actor != "" {
		scope.ActorEmail = e.opts.actor
	}
	if cmd.Flags().Changed("elevated") {
		scope.Elevated = e.opts.elevated
	}
	return svc, scope, release, nil
}

func printJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}
