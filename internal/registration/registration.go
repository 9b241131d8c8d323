// Package registration orchestrates a decoded submission through
// idempotency, quota, sequence allocation, artifact upload, and persistence
// inside explicit transaction boundaries, with compensation on every
// failure path.
package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/icct/registration/internal/apierrors"
	"github.com/icct/registration/internal/artifacts"
	"github.com/icct/registration/internal/canonical"
	"github.com/icct/registration/internal/decode"
	"github.com/icct/registration/internal/idempotency"
	"github.com/icct/registration/internal/logctx"
	"github.com/icct/registration/internal/notify"
	"github.com/icct/registration/internal/quota"
	"github.com/icct/registration/internal/sequence"
	"github.com/icct/registration/internal/store"
)

// Result is the success response body. teamId is intentionally withheld
// here; it is only surfaced through the admin read endpoints.
type Result struct {
	Success            bool   `json:"success"`
	TeamName           string `json:"teamName"`
	PlayerCount        int    `json:"playerCount"`
	RegistrationStatus string `json:"registrationStatus"`
	Message            string `json:"message"`
}

// Coordinator is the RegistrationCoordinator implementation.
type Coordinator struct {
	repo     *store.Repository
	seq      *sequence.Allocator
	quota    *quota.Guard
	uploader *artifacts.Uploader
	idem     *idempotency.Store
	notify   *notify.Sink

	maxInsertAttempts int
	endToEndDeadline  time.Duration
	log               *logrus.Logger
}

type Config struct {
	MaxInsertAttempts int
	EndToEndDeadline  time.Duration
}

func New(repo *store.Repository, seq *sequence.Allocator, guard *quota.Guard, uploader *artifacts.Uploader,
	idem *idempotency.Store, sink *notify.Sink, cfg Config, log *logrus.Logger) *Coordinator {
	if cfg.MaxInsertAttempts <= 0 {
		cfg.MaxInsertAttempts = 5
	}
	if cfg.EndToEndDeadline <= 0 {
		cfg.EndToEndDeadline = 60 * time.Second
	}
	return &Coordinator{
		repo: repo, seq: seq, quota: guard, uploader: uploader, idem: idem, notify: sink,
		maxInsertAttempts: cfg.MaxInsertAttempts,
		endToEndDeadline:  cfg.EndToEndDeadline,
		log:               log,
	}
}

// fingerprintInput is hashed instead of the raw submission so artifact bytes
// (which are many times larger than the fields) don't need to round-trip
// through canonical.Hash; their SHA-256 already uniquely identifies them.
type fingerprintInput struct {
	Submission     decode.Submission
	ArtifactHashes []string
}

// Register runs the full registration protocol: idempotency check, team id
// allocation, artifact upload, and insert, with compensation on failure.
func (c *Coordinator) Register(ctx context.Context, sub *decode.ValidatedSubmission, idemKey string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.endToEndDeadline)
	defer cancel()

	hash, err := c.fingerprint(sub)
	if err != nil {
		return nil, apierrors.ErrInternal.WithMessage("failed to fingerprint submission: " + err.Error())
	}

	begin, err := c.idem.Begin(ctx, idemKey, hash)
	if err != nil {
		return nil, err
	}
	switch begin.Outcome {
	case idempotency.Completed:
		var cached Result
		if err := json.Unmarshal(begin.ResponseBody, &cached); err != nil {
			return nil, apierrors.ErrInternal.WithMessage("corrupt cached idempotency response")
		}
		return &cached, nil
	case idempotency.DuplicateInFlight:
		return nil, apierrors.ErrDuplicateRequest.WithMessage("an identical request is already being processed")
	case idempotency.Conflict:
		return nil, apierrors.ErrIdempotencyConflict.WithMessage("idempotency key reused with a different payload")
	}

	result, err := c.registerNew(ctx, sub, idemKey)
	if err != nil {
		_ = c.idem.Abort(ctx, idemKey)
		return nil, err
	}
	return result, nil
}

func (c *Coordinator) registerNew(ctx context.Context, sub *decode.ValidatedSubmission, idemKey string) (*Result, error) {
	teamID, err := c.allocateTeamID(ctx, sub.Submission.ChurchName)
	if err != nil {
		return nil, err
	}

	uploadedURLs, uploadErr := c.uploader.UploadPending(ctx, teamID, sub.Artifacts)
	if uploadErr != nil {
		if delErr := c.uploader.DeleteAll(ctx, teamID, artifacts.NamespacePending); delErr != nil {
			logctx.Error(ctx, c.log, "cleanup after upload failure also failed", delErr, "team_id", teamID)
		}
		return nil, uploadErr
	}

	team, players := buildTeamAndPlayers(sub.Submission, teamID, uploadedURLs)

	for attempt := 1; attempt <= c.maxInsertAttempts; attempt++ {
		err := c.insertOnce(ctx, &team, players)
		if err == nil {
			break
		}

		switch classifyInsertError(err, attempt, c.maxInsertAttempts) {
		case insertRetryTeamID:
			newTeamID, allocErr := c.reallocateTeamID(ctx)
			if allocErr != nil {
				_ = c.uploader.DeleteAll(ctx, teamID, artifacts.NamespacePending)
				return nil, allocErr
			}
			renamed, renameErr := c.uploader.RenameTeam(ctx, teamID, newTeamID, artifacts.NamespacePending, uploadedURLs)
			if renameErr != nil {
				_ = c.uploader.DeleteAll(ctx, teamID, artifacts.NamespacePending)
				return nil, renameErr
			}
			uploadedURLs = renamed
			teamID = newTeamID
			team, players = buildTeamAndPlayers(sub.Submission, teamID, uploadedURLs)
			continue
		case insertDuplicateTeam:
			_ = c.uploader.DeleteAll(ctx, teamID, artifacts.NamespacePending)
			return nil, apierrors.ErrDuplicateTeam.WithMessage(
				fmt.Sprintf("a team named %q with this captain phone is already registered", sub.Submission.TeamName))
		default:
			_ = c.uploader.DeleteAll(ctx, teamID, artifacts.NamespacePending)
			return nil, apierrors.ErrDatabaseError.WithMessage("failed to persist team: " + err.Error())
		}
	}

	result := &Result{
		Success:            true,
		TeamName:           team.TeamName,
		PlayerCount:        len(players),
		RegistrationStatus: string(store.StatusPending),
		Message:            "Registration submitted successfully. Please wait for admin confirmation.",
	}

	c.notify.Send(ctx, teamID, team.TeamName, team.ChurchName, len(players))

	body, err := json.Marshal(result)
	if err != nil {
		return nil, apierrors.ErrInternal.WithMessage("failed to marshal response: " + err.Error())
	}
	if err := c.idem.Complete(ctx, idemKey, body); err != nil {
		logctx.Error(ctx, c.log, "idempotency complete failed after successful registration", err, "team_id", teamID)
	}
	return result, nil
}

// allocateTeamID runs quota check + sequence allocation in one short
// transaction, kept separate from the team insert so uploads never happen
// while the church's row lock is held.
func (c *Coordinator) allocateTeamID(ctx context.Context, churchName string) (string, error) {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return "", apierrors.ErrDatabaseError.WithMessage("failed to begin allocation transaction: " + err.Error())
	}
	defer tx.Rollback(ctx)

	if err := c.quota.Check(ctx, tx, churchName); err != nil {
		return "", err
	}
	teamID, err := c.seq.NextTeamID(ctx, tx)
	if err != nil {
		return "", apierrors.ErrDatabaseError.WithMessage("failed to allocate team id: " + err.Error())
	}
	if err := tx.Commit(ctx); err != nil {
		return "", apierrors.ErrDatabaseError.WithMessage("failed to commit allocation: " + err.Error())
	}
	return teamID, nil
}

// reallocateTeamID advances the sequence again without re-checking quota:
// the church lock already serialized this submission against its peers in
// allocateTeamID, and this path only runs because of a teamId collision, not
// a quota re-evaluation.
func (c *Coordinator) reallocateTeamID(ctx context.Context) (string, error) {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return "", apierrors.ErrDatabaseError.WithMessage("failed to begin reallocation: " + err.Error())
	}
	defer tx.Rollback(ctx)

	teamID, err := c.seq.NextTeamID(ctx, tx)
	if err != nil {
		return "", apierrors.ErrDatabaseError.WithMessage("failed to reallocate team id: " + err.Error())
	}
	if err := tx.Commit(ctx); err != nil {
		return "", apierrors.ErrDatabaseError.WithMessage("failed to commit reallocation: " + err.Error())
	}
	return teamID, nil
}

// insertOutcome classifies the error from insertOnce so the attempt loop in
// registerNew knows whether to retry with a fresh team id, fail with a 409,
// or surface the raw database error.
type insertOutcome int

const (
	insertFatal insertOutcome = iota
	insertRetryTeamID
	insertDuplicateTeam
)

// classifyInsertError inspects the unique-constraint violation mapInsertError
// produced and decides the next step. A teamId collision is only retried
// while attempts remain; a (teamName, captainPhone) collision is always a
// genuine duplicate, never a retry.
func classifyInsertError(err error, attempt, maxAttempts int) insertOutcome {
	if store.IsUniqueViolation(err, "teams_team_id_key") && attempt < maxAttempts {
		return insertRetryTeamID
	}
	if store.IsUniqueViolation(err, "teams_team_name_captain_phone_key") {
		return insertDuplicateTeam
	}
	return insertFatal
}

func (c *Coordinator) insertOnce(ctx context.Context, team *store.Team, players []store.Player) error {
	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin insert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := c.repo.InsertTeamWithPlayers(ctx, tx, team, players); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (c *Coordinator) fingerprint(sub *decode.ValidatedSubmission) (string, error) {
	hashes := make([]string, len(sub.Artifacts))
	for i, a := range sub.Artifacts {
		hashes[i] = a.SHA256
	}
	return canonical.Hash(fingerprintInput{Submission: sub.Submission, ArtifactHashes: hashes})
}

func buildTeamAndPlayers(sub decode.Submission, teamID string, urls map[string]string) (store.Team, []store.Player) {
	team := store.Team{
		TeamID:     teamID,
		TeamName:   sub.TeamName,
		ChurchName: sub.ChurchName,
		Captain: store.Person{
			Name: sub.Captain.Name, Phone: sub.Captain.Phone,
			Whatsapp: sub.Captain.Whatsapp, Email: sub.Captain.Email,
		},
		ViceCaptain: store.Person{
			Name: sub.ViceCaptain.Name, Phone: sub.ViceCaptain.Phone,
			Whatsapp: sub.ViceCaptain.Whatsapp, Email: sub.ViceCaptain.Email,
		},
		PastorLetter:   urls[string(decode.SlotPastorLetter)],
		PaymentReceipt: urls[string(decode.SlotPaymentReceipt)],
		GroupPhoto:     urls[string(decode.SlotGroupPhoto)],
	}

	players := make([]store.Player, len(sub.Players))
	for i, p := range sub.Players {
		pos := i + 1
		players[i] = store.Player{
			PlayerID: fmt.Sprintf("%s-P%02d", teamID, pos),
			Name:     p.Name,
			Role:     p.Role,
			Position: pos,
		}
		if p.AadharFile != "" {
			players[i].AadharFile = urls[fmt.Sprintf("%s#%d", decode.SlotPlayerAadhar, pos)]
		}
		if p.SubscriptionFile != "" {
			players[i].SubscriptionFile = urls[fmt.Sprintf("%s#%d", decode.SlotPlayerSubscription, pos)]
		}
	}
	return team, players
}
