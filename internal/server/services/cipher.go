package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/keyescrow/internal/common"
	"github.com/dmitrijs2005/keyescrow/internal/logging"
	"github.com/dmitrijs2005/keyescrow/internal/server/models"
	"github.com/dmitrijs2005/keyescrow/internal/server/storage"
)

// Stage is a step of a protect run.
type Stage int

const (
	StageValidating Stage = iota
	StagePacking
	StageEncrypting
	StagePersistingOwner
	StagePersistingCoRecipient
	StageCommitted
)

func (s Stage) String() string {
	switch s {
	case StageValidating:
		return "validating"
	case StagePacking:
		return "packing"
	case StageEncrypting:
		return "encrypting"
	case StagePersistingOwner:
		return "persisting_owner"
	case StagePersistingCoRecipient:
		return "persisting_co_recipient"
	case StageCommitted:
		return "committed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Outcome tells the caller what a failed run left behind.
type Outcome int

const (
	// OutcomeNoEffect: nothing was created.
	OutcomeNoEffect Outcome = iota
	// OutcomeRolledBack: artifacts were created and all of them were removed.
	OutcomeRolledBack
	// OutcomeRollbackFailed: something may remain; an operator has to reconcile.
	OutcomeRollbackFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoEffect:
		return "no_effect"
	case OutcomeRolledBack:
		return "rolled_back"
	case OutcomeRollbackFailed:
		return "rollback_failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ProtectError is returned for every failed ProtectRepository call.
// errors.Is matches both the primary error kind and, when a compensation
// failed, common.ErrCleanup.
type ProtectError struct {
	Alias   string
	Stage   Stage
	Outcome Outcome
	Err     error
	Cleanup error
}

func (e *ProtectError) Error() string {
	var b strings.Builder
	b.WriteString("protect")
	if e.Alias != "" {
		b.WriteString(" " + e.Alias)
	}
	fmt.Fprintf(&b, ": %s: %v", e.Stage, e.Err)
	if e.Outcome != OutcomeNoEffect {
		fmt.Fprintf(&b, " (%s)", e.Outcome)
	}
	if e.Cleanup != nil {
		fmt.Fprintf(&b, "; cleanup: %v", e.Cleanup)
	}
	return b.String()
}

func (e *ProtectError) Unwrap() []error {
	if e.Cleanup != nil {
		return []error{e.Err, e.Cleanup}
	}
	return []error{e.Err}
}

const cleanupTimeout = 30 * time.Second

// CipherService runs the escrow use case: gate, pack, encrypt, wrap the
// content key for both parties and persist the pair, undoing completed
// steps in reverse when a later one fails.
type CipherService struct {
	gate        *AuthorizationGate
	content     ContentStore
	objects     storage.ObjectStore
	keys        KeyStore
	envelope    Envelope
	locks       *keyedMutex
	workTimeout time.Duration
	logger      logging.Logger
}

func NewCipherService(gate *AuthorizationGate, content ContentStore, objects storage.ObjectStore, keys KeyStore,
	envelope Envelope, workTimeout time.Duration, logger logging.Logger) *CipherService {
	return &CipherService{
		gate:        gate,
		content:     content,
		objects:     objects,
		keys:        keys,
		envelope:    envelope,
		locks:       newKeyedMutex(),
		workTimeout: workTimeout,
		logger:      logger.With("module", "cipher"),
	}
}

// compensation undoes one completed step.
type compensation struct {
	what string
	undo func(ctx context.Context) error
}

// protectRun tracks what a single invocation has created so far.
type protectRun struct {
	alias  string
	stage  Stage
	undo   []compensation
	logger logging.Logger
}

func (r *protectRun) enter(ctx context.Context, stage Stage) {
	r.stage = stage
	r.logger.Info(ctx, "protect stage", "stage", stage.String())
}

func (r *protectRun) created(what string, undo func(ctx context.Context) error) {
	r.undo = append(r.undo, compensation{what: what, undo: undo})
}

// fail rolls back everything recorded so far, newest first, and builds the
// error for the caller. extraCleanup carries compensation failures that
// were already observed (e.g. the plaintext archive could not be removed).
func (r *protectRun) fail(ctx context.Context, err error, extraCleanup ...error) *ProtectError {
	pe := &ProtectError{Alias: r.alias, Stage: r.stage, Err: err}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	cleanupErrs := append([]error(nil), extraCleanup...)
	for i := len(r.undo) - 1; i >= 0; i-- {
		c := r.undo[i]
		r.logger.Warn(ctx, "rolling back", "stage", r.stage.String(), "artifact", c.what)
		if uerr := c.undo(cctx); uerr != nil {
			cleanupErrs = append(cleanupErrs, fmt.Errorf("%w: %s: %v", common.ErrCleanup, c.what, uerr))
			r.logger.Error(ctx, "rollback incomplete, operator reconciliation required",
				"stage", r.stage.String(), "artifact", c.what, "error", uerr.Error())
		}
	}
	r.undo = nil

	switch {
	case len(cleanupErrs) > 0 || errors.Is(err, common.ErrCleanup):
		pe.Outcome = OutcomeRollbackFailed
		pe.Cleanup = errors.Join(cleanupErrs...)
	case r.stage > StagePacking:
		pe.Outcome = OutcomeRolledBack
	}

	r.logger.Warn(ctx, "protect failed", "stage", r.stage.String(), "outcome", pe.Outcome.String(), "error", err.Error())
	return pe
}

// ProtectRepository escrows repository req.RepositoryName under alias
// "<name>_<tag>" for the requester and the co-recipient and returns the
// requester's wrapped key. Any failure is a *ProtectError.
func (s *CipherService) ProtectRepository(ctx context.Context, req ProtectRequest) (string, error) {
	run := &protectRun{stage: StageValidating}

	if err := common.ValidateRepositoryName(req.RepositoryName); err != nil {
		return "", &ProtectError{Stage: StageValidating, Err: err}
	}
	if err := common.ValidateTag(req.Tag); err != nil {
		return "", &ProtectError{Stage: StageValidating, Err: err}
	}

	run.alias = req.Alias()
	run.logger = s.logger.With("alias", run.alias)

	unlock, err := s.locks.Lock(ctx, run.alias)
	if err != nil {
		return "", &ProtectError{Alias: run.alias, Stage: StageValidating, Err: fmt.Errorf("%w: %v", common.ErrInternal, err)}
	}
	defer unlock()

	run.enter(ctx, StageValidating)
	parties, err := s.gate.AuthorizeEncryption(ctx, req)
	if err != nil {
		return "", run.fail(ctx, err)
	}

	workCtx, cancel := context.WithTimeout(ctx, s.workTimeout)
	defer cancel()

	run.enter(ctx, StagePacking)
	archivePath, err := s.content.ArchiveDirectory(workCtx, req.RepositoryName, req.Tag)
	if err != nil {
		return "", run.fail(ctx, err)
	}

	run.enter(ctx, StageEncrypting)
	key, objectKey, err := s.encrypt(ctx, workCtx, run, archivePath)
	if err != nil {
		return "", err
	}
	run.created("ciphertext object "+objectKey, func(ctx context.Context) error {
		return s.objects.Delete(ctx, objectKey)
	})

	run.enter(ctx, StagePersistingOwner)
	ownerWrapped, err := s.persist(ctx, run, key, parties.Requester, parties.Repository)
	if err != nil {
		return "", err
	}

	run.enter(ctx, StagePersistingCoRecipient)
	if _, err := s.persist(ctx, run, key, parties.CoRecipient, parties.Repository); err != nil {
		return "", err
	}

	run.enter(ctx, StageCommitted)
	return ownerWrapped, nil
}

// encrypt seals the archive into a staged file, removes the plaintext
// archive whatever the result, and moves the ciphertext into the object
// store. It returns the content key and the object key.
func (s *CipherService) encrypt(ctx, workCtx context.Context, run *protectRun, archivePath string) (string, string, error) {
	staged := s.content.StagingPath(run.alias)

	key, encErr := s.envelope.GenerateContentKey()
	if encErr == nil {
		encErr = s.envelope.EncryptFile(workCtx, archivePath, staged, key)
	}

	var cleanupErrs []error
	if err := s.content.DeleteFile(archivePath); err != nil {
		cleanupErrs = append(cleanupErrs, fmt.Errorf("%w: plaintext archive not removed: %v", common.ErrCleanup, err))
	}

	if encErr != nil || len(cleanupErrs) > 0 {
		if err := s.content.DeleteFile(staged); err != nil {
			cleanupErrs = append(cleanupErrs, fmt.Errorf("%w: staged ciphertext: %v", common.ErrCleanup, err))
		}
		if encErr != nil {
			return "", "", run.fail(ctx, encErr, cleanupErrs...)
		}
		return "", "", run.fail(ctx, cleanupErrs[0], cleanupErrs[1:]...)
	}

	objectKey := run.alias + common.CipherObjectSuffix
	putErr := s.objects.Put(ctx, objectKey, staged)
	if err := s.content.DeleteFile(staged); err != nil {
		if putErr != nil {
			return "", "", run.fail(ctx, putErr, fmt.Errorf("%w: staged ciphertext %s: %v", common.ErrCleanup, staged, err))
		}
		// the run still commits; the extra copy is reported
		run.logger.Error(ctx, "staged ciphertext not removed, operator reconciliation required",
			"stage", run.stage.String(), "artifact", staged, "error", err.Error())
	}
	if putErr != nil {
		return "", "", run.fail(ctx, putErr)
	}
	return key, objectKey, nil
}

// persist wraps key for recipient and stores the record, registering its
// deletion as the compensation for later failures.
func (s *CipherService) persist(ctx context.Context, run *protectRun, key string, recipient *models.Actor, repo *models.RepositoryRecord) (string, error) {
	wrapped, err := s.envelope.WrapKey(key, recipient.EncryptionPublicKey.String)
	if err != nil {
		return "", run.fail(ctx, err)
	}

	rec, err := s.keys.PersistWrappedKey(ctx, &models.WrappedKey{
		RecipientID:  recipient.ID,
		RepositoryID: repo.ID,
		WrappedKey:   wrapped,
		Alias:        run.alias,
	})
	if err != nil {
		if !errors.Is(err, common.ErrConflict) && !errors.Is(err, common.ErrPersistence) {
			err = fmt.Errorf("%w: %v", common.ErrPersistence, err)
		}
		return "", run.fail(ctx, err)
	}

	run.created("wrapped key "+rec.ID+" for recipient "+recipient.ID, func(ctx context.Context) error {
		return s.keys.DeleteWrappedKey(ctx, rec.ID)
	})
	return wrapped, nil
}
