package cli

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
)

type uploadOptions struct {
	declaredType string
	folderID     string
	path         string
	department   string
	category     string
	mimeType     string
}

func newUploadCommand(env *commandEnv) *cobra.Command {
	opts := &uploadOptions{}
	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a file and commit it as a document",
		Long: `Upload signs a storage destination, transfers the file, extracts its metadata,
creates the destination folders and commits the document record.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, env, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.declaredType, "type", "", "Declared document type, passed to extraction")
	cmd.Flags().StringVar(&opts.folderID, "folder-id", "", "Existing destination folder id")
	cmd.Flags().StringVar(&opts.path, "path", "", "Destination folder path, e.g. Finance/2025")
	cmd.Flags().StringVar(&opts.department, "department", "", "Destination department")
	cmd.Flags().StringVar(&opts.category, "category", "", "Destination category")
	cmd.Flags().StringVar(&opts.mimeType, "mime-type", "", "Override the detected MIME type")

	return cmd
}

func runUpload(cmd *cobra.Command, env *commandEnv, opts *uploadOptions, path string) error {
	file, err := localFileSource(path, opts.mimeType)
	if err != nil {
		return err
	}

	svc, scope, release, err := env.services(cmd)
	if err != nil {
		return err
	}
	defer release()

	req := domain.UploadRequest{
		File:         file,
		DeclaredType: opts.declaredType,
		Placement: domain.Placement{
			Path:       domain.ParseFolderPath(opts.path),
			Department: opts.department,
			Category:   opts.category,
		},
	}
	if opts.folderID != "" {
		folderID := opts.folderID
		req.Placement.FolderID = &folderID
	}

	progress := cmd.ErrOrStderr()
	doc, err := svc.Uploads.Upload(cmd.Context(), scope, req, func(session domain.UploadSession) {
		fmt.Fprintf(progress, "\r%-10s %5.1f%%  %s", session.State, session.ProgressPercent, session.Filename)
		if session.State == domain.UploadSuccess || session.State == domain.UploadError {
			fmt.Fprintln(progress)
		}
	})
	if err != nil {
		return err
	}

	if env.opts.json {
		return printJSON(cmd.OutOrStdout(), doc)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "committed %s (%s)\n", doc.ID, doc.Title)
	return nil
}

func localFileSource(path, mimeType string) (domain.FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.FileSource{}, domain.WrapError(domain.ErrInvalidInput, "open upload", err)
	}
	if info.IsDir() {
		return domain.FileSource{}, domain.WrapError(domain.ErrInvalidInput, "open upload", fmt.Errorf("%s is a directory", path))
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return domain.FileSource{
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
