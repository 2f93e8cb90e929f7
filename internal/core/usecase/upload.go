package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kirillkom/doc-lifecycle/internal/core/domain"
	"github.com/kirillkom/doc-lifecycle/internal/core/ports"
)

// transferProgressCeiling keeps visible headroom for post-transfer processing.
const transferProgressCeiling = 90.0

type UploadUseCase struct {
	signer     ports.UploadSigner
	transport  ports.ByteTransport
	recognizer ports.TextRecognizer
	extractor  ports.MetadataExtractor
	folders    ports.FolderStore
	documents  ports.DocumentStore

	notifier ports.LifecycleNotifier
	ledger   ports.CommitLedger
	observer ports.UploadObserver
	logger   *slog.Logger

	gate *semaphore.Weighted
	now  func() time.Time
}

func NewUploadUseCase(
	signer ports.UploadSigner,
	transport ports.ByteTransport,
	recognizer ports.TextRecognizer,
	extractor ports.MetadataExtractor,
	folders ports.FolderStore,
	documents ports.DocumentStore,
) *UploadUseCase {
	return &UploadUseCase{
		signer:     signer,
		transport:  transport,
		recognizer: recognizer,
		extractor:  extractor,
		folders:    folders,
		documents:  documents,
		logger:     slog.Default(),
		gate:       semaphore.NewWeighted(1),
		now:        time.Now,
	}
}

func (uc *UploadUseCase) WithNotifier(notifier ports.LifecycleNotifier) *UploadUseCase {
	uc.notifier = notifier
	return uc
}

func (uc *UploadUseCase) WithLedger(ledger ports.CommitLedger) *UploadUseCase {
	uc.ledger = ledger
	return uc
}

func (uc *UploadUseCase) WithObserver(observer ports.UploadObserver) *UploadUseCase {
	uc.observer = observer
	return uc
}

func (uc *UploadUseCase) WithLogger(logger *slog.Logger) *UploadUseCase {
	if logger != nil {
		uc.logger = logger
	}
	return uc
}

// Upload runs sign, transfer, extraction, placement, folder upsert, record
// creation and finalize for one file. Calls on the same use case are
// serialized so folder upserts of two uploads never interleave.
func (uc *UploadUseCase) Upload(
	ctx context.Context,
	scope domain.Scope,
	req domain.UploadRequest,
	onUpdate domain.SessionFunc,
) (*domain.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := uc.gate.Acquire(ctx, 1); err != nil {
		return nil, domain.WrapError(domain.ErrUploadAbandoned, "wait for upload slot", err)
	}
	defer uc.gate.Release(1)

	run := &uploadRun{
		session: domain.UploadSession{
			ID:       uuid.NewString(),
			Filename: req.File.Name,
			State:    domain.UploadIdle,
		},
		onUpdate: onUpdate,
	}
	logger := uc.logger.With("upload_id", run.session.ID, "org_id", scope.OrgID, "filename", req.File.Name)

	started := uc.now()
	if uc.observer != nil {
		uc.observer.UploadStarted()
	}

	doc, err := uc.pipeline(ctx, logger, scope, req, run)
	elapsed := uc.now().Sub(started)
	if err != nil {
		run.fail(err)
		if uc.observer != nil {
			uc.observer.UploadFinished(domain.UploadError, run.stage, elapsed)
		}
		logger.Warn("upload_failed",
			"stage", run.stage,
			"duration_ms", float64(elapsed.Microseconds())/1000.0,
			"error", err,
		)
		return nil, err
	}

	run.succeed(doc)
	if uc.observer != nil {
		uc.observer.UploadFinished(domain.UploadSuccess, run.stage, elapsed)
	}
	logger.Info("upload_committed",
		"document_id", doc.ID,
		"storage_key", doc.StorageKey,
		"bytes", doc.FileSizeBytes,
		"duration_ms", float64(elapsed.Microseconds())/1000.0,
	)
	return doc, nil
}

func (uc *UploadUseCase) pipeline(
	ctx context.Context,
	logger *slog.Logger,
	scope domain.Scope,
	req domain.UploadRequest,
	run *uploadRun,
) (*domain.Document, error) {
	run.setState(domain.UploadUploading)

	run.stage = "sign"
	dest, err := uc.sign(ctx, scope, req.File)
	if err != nil {
		return nil, err
	}
	run.setDestination(dest)

	run.stage = "transfer"
	if err := uc.transfer(ctx, dest, req.File, run.transferProgress); err != nil {
		return nil, err
	}

	run.setState(domain.UploadProcessing)

	run.stage = "extract"
	metadata, err := uc.deriveMetadata(ctx, req)
	if err != nil {
		return nil, err
	}

	run.stage = "placement"
	if err := checkPlacement(scope, req.Placement); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrUploadAbandoned, "upload", err)
	}

	run.stage = "folders"
	folderID, err := uc.materializeFolders(ctx, logger, scope, req.Placement)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrUploadAbandoned, "upload", err)
	}

	// Once the record is requested the upload is committed-in-flight:
	// dismissing the session must not leave an orphaned pending record.
	commitCtx := context.WithoutCancel(ctx)

	run.stage = "create_record"
	pending, err := uc.createRecord(commitCtx, scope, req, folderID, metadata)
	if err != nil {
		return nil, err
	}
	run.setDocument(pending.ID)
	uc.recordInFlight(commitCtx, logger, scope, pending.ID, dest, req.File)

	run.stage = "finalize"
	doc, err := uc.finalize(commitCtx, scope, pending.ID, dest, req.File)
	if err != nil {
		uc.markFinalizeFailed(commitCtx, logger, pending.ID, err)
		return nil, err
	}
	uc.markFinalized(commitCtx, logger, doc.ID)
	uc.publish(commitCtx, logger, domain.LifecycleEvent{
		Type:       domain.EventDocumentCommitted,
		OrgID:      scope.OrgID,
		DocumentID: doc.ID,
		Actor:      scope.ActorEmail,
		At:         uc.now().UTC(),
	})
	return doc, nil
}

func (uc *UploadUseCase) sign(ctx context.Context, scope domain.Scope, file domain.FileSource) (domain.SignedDestination, error) {
	if !scope.Valid() {
		return domain.SignedDestination{}, domain.WrapError(domain.ErrSigning, "sign upload", errors.New("no active organization"))
	}
	dest, err := uc.signer.SignUpload(ctx, scope, file.Name, file.MimeType)
	if err != nil {
		return domain.SignedDestination{}, domain.EnsureKind(domain.ErrSigning, "sign upload", err)
	}
	if strings.TrimSpace(dest.SignedURL) == "" || strings.TrimSpace(dest.StorageKey) == "" {
		return domain.SignedDestination{}, domain.WrapError(domain.ErrSigning, "sign upload", errors.New("destination without url or storage key"))
	}
	return dest, nil
}

func (uc *UploadUseCase) transfer(ctx context.Context, dest domain.SignedDestination, file domain.FileSource, onProgress domain.ProgressFunc) error {
	if err := uc.transport.Transfer(ctx, dest, file, onProgress); err != nil {
		return domain.EnsureKind(domain.ErrTransport, "transfer file", err)
	}
	return nil
}

// deriveMetadata runs OCR and structured extraction concurrently; both must succeed.
func (uc *UploadUseCase) deriveMetadata(ctx context.Context, req domain.UploadRequest) (domain.Metadata, error) {
	var (
		text   string
		fields domain.Metadata
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := uc.recognizer.Transcribe(gctx, req.File)
		if err != nil {
			return fmt.Errorf("ocr transcription: %w", err)
		}
		text = out
		return nil
	})
	g.Go(func() error {
		out, err := uc.extractor.ExtractFields(gctx, req.File, req.DeclaredType)
		if err != nil {
			return fmt.Errorf("structured extraction: %w", err)
		}
		fields = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.Metadata{}, domain.EnsureKind(domain.ErrExtraction, "derive metadata", err)
	}

	fields.ExtractedText = text
	if strings.TrimSpace(fields.Title) == "" {
		fields.Title = titleFromFilename(req.File.Name)
	}
	if fields.Tags == nil {
		fields.Tags = []string{}
	}
	return fields, nil
}

func checkPlacement(scope domain.Scope, placement domain.Placement) error {
	if !scope.Elevated || placement.HasDestination() {
		return nil
	}
	return domain.WrapError(domain.ErrPlacementRequired, "validate placement", errors.New("elevated upload without destination folder"))
}

func (uc *UploadUseCase) createRecord(
	ctx context.Context,
	scope domain.Scope,
	req domain.UploadRequest,
	folderID *string,
	metadata domain.Metadata,
) (*domain.Document, error) {
	pending, err := uc.documents.CreatePending(ctx, scope, domain.NewDocument{
		Filename:     req.File.Name,
		MimeType:     req.File.MimeType,
		DeclaredType: req.DeclaredType,
		FolderID:     folderID,
		Department:   strings.TrimSpace(req.Placement.Department),
		Category:     strings.TrimSpace(req.Placement.Category),
		Metadata:     metadata,
	})
	if err != nil {
		return nil, domain.EnsureKind(domain.ErrRecordCreation, "create document record", err)
	}
	if pending == nil || pending.ID == "" {
		return nil, domain.WrapError(domain.ErrRecordCreation, "create document record", errors.New("backend returned no document id"))
	}
	return pending, nil
}

func (uc *UploadUseCase) finalize(
	ctx context.Context,
	scope domain.Scope,
	documentID string,
	dest domain.SignedDestination,
	file domain.FileSource,
) (*domain.Document, error) {
	doc, err := uc.documents.Finalize(ctx, scope, domain.FinalizeRequest{
		DocumentID:    documentID,
		StorageKey:    dest.StorageKey,
		FileSizeBytes: file.Size,
		MimeType:      file.MimeType,
	})
	if err != nil {
		return nil, domain.EnsureKind(domain.ErrFinalize, "finalize upload", err)
	}
	if doc == nil || doc.ID == "" {
		return nil, domain.WrapError(domain.ErrFinalize, "finalize upload", errors.New("backend returned no document"))
	}
	if doc.StorageKey != dest.StorageKey {
		return nil, domain.WrapError(domain.ErrFinalize, "finalize upload",
			fmt.Errorf("storage reference mismatch: got %q, want %q", doc.StorageKey, dest.StorageKey))
	}
	return doc, nil
}

func (uc *UploadUseCase) recordInFlight(
	ctx context.Context,
	logger *slog.Logger,
	scope domain.Scope,
	documentID string,
	dest domain.SignedDestination,
	file domain.FileSource,
) {
	if uc.ledger == nil {
		return
	}
	now := uc.now().UTC()
	err := uc.ledger.RecordInFlight(ctx, domain.LedgerEntry{
		DocumentID: documentID,
		OrgID:      scope.OrgID,
		StorageKey: dest.StorageKey,
		Filename:   file.Name,
		State:      domain.LedgerInFlight,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		logger.Warn("ledger_write_failed", "document_id", documentID, "state", domain.LedgerInFlight, "error", err)
	}
}

func (uc *UploadUseCase) markFinalized(ctx context.Context, logger *slog.Logger, documentID string) {
	if uc.ledger == nil {
		return
	}
	if err := uc.ledger.MarkFinalized(ctx, documentID); err != nil {
		logger.Warn("ledger_write_failed", "document_id", documentID, "state", domain.LedgerFinalized, "error", err)
	}
}

func (uc *UploadUseCase) markFinalizeFailed(ctx context.Context, logger *slog.Logger, documentID string, cause error) {
	if uc.ledger == nil {
		return
	}
	if err := uc.ledger.MarkFinalizeFailed(ctx, documentID, cause.Error()); err != nil {
		logger.Warn("ledger_write_failed", "document_id", documentID, "state", domain.LedgerFinalizeFailed, "error", err)
	}
}

func (uc *UploadUseCase) publish(ctx context.Context, logger *slog.Logger, event domain.LifecycleEvent) {
	publishLifecycleEvent(ctx, uc.notifier, logger, event)
}

func titleFromFilename(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// uploadRun tracks the session snapshot reported to the caller. Progress may
// arrive from the transport's body-reading goroutine.
type uploadRun struct {
	mu       sync.Mutex
	session  domain.UploadSession
	onUpdate domain.SessionFunc
	stage    string
}

func (r *uploadRun) setState(state domain.UploadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.State = state
	r.emit()
}

func (r *uploadRun) setDestination(dest domain.SignedDestination) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.StorageKey = dest.StorageKey
	r.session.SignedURL = dest.SignedURL
}

func (r *uploadRun) setDocument(documentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.DocumentID = documentID
}

// transferProgress maps transfer percent onto the 0..90 band, never moving backwards.
func (r *uploadRun) transferProgress(percent float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session.State != domain.UploadUploading {
		return
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	scaled := percent * transferProgressCeiling / 100
	if scaled <= r.session.ProgressPercent {
		return
	}
	r.session.ProgressPercent = scaled
	r.emit()
}

func (r *uploadRun) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.State = domain.UploadError
	r.session.Message = domain.UserMessage(err)
	r.emit()
}

func (r *uploadRun) succeed(doc *domain.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.State = domain.UploadSuccess
	r.session.ProgressPercent = 100
	r.session.DocumentID = doc.ID
	r.session.Message = ""
	r.emit()
}

func (r *uploadRun) emit() {
	if r.onUpdate != nil {
		r.onUpdate(r.session)
	}
}
