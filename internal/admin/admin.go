// Package admin implements the read surface and the confirm/reject status
// transitions for submitted teams. Both transitions are forward-idempotent.
package admin

import (
	"context"
	"fmt"

	"github.com/icct/registration/internal/apierrors"
	"github.com/icct/registration/internal/artifacts"
	"github.com/icct/registration/internal/store"
)

// TeamView is the full team + players shape returned to admins.
type TeamView struct {
	TeamID             string        `json:"teamId"`
	TeamName           string        `json:"teamName"`
	ChurchName         string        `json:"churchName"`
	Captain            store.Person  `json:"captain"`
	ViceCaptain        store.Person  `json:"viceCaptain"`
	PastorLetter       string        `json:"pastorLetterUrl,omitempty"`
	PaymentReceipt     string        `json:"paymentReceiptUrl,omitempty"`
	GroupPhoto         string        `json:"groupPhotoUrl,omitempty"`
	RegistrationStatus store.Status  `json:"registrationStatus"`
	Players            []store.Player `json:"players"`
}

// TransitionResult is the response to a confirm/reject call.
type TransitionResult struct {
	Success          bool              `json:"success"`
	TeamID           string            `json:"teamId"`
	Status           store.Status      `json:"status"`
	URLs             map[string]string `json:"urls,omitempty"`
	AlreadyConfirmed bool              `json:"alreadyConfirmed,omitempty"`
	AlreadyRejected  bool              `json:"alreadyRejected,omitempty"`
}

// Controller is the AdminController implementation.
type Controller struct {
	repo     *store.Repository
	uploader *artifacts.Uploader
}

func New(repo *store.Repository, uploader *artifacts.Uploader) *Controller {
	return &Controller{repo: repo, uploader: uploader}
}

// ListTeams is a pure read.
func (c *Controller) ListTeams(ctx context.Context, status store.Status, skip, limit int) (int, []store.TeamSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	return c.repo.ListTeams(ctx, status, skip, limit)
}

// GetTeam returns a full team snapshot, including player URLs.
func (c *Controller) GetTeam(ctx context.Context, teamID string) (*TeamView, error) {
	team, err := c.repo.GetByTeamID(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return toView(team), nil
}

func toView(team *store.Team) *TeamView {
	return &TeamView{
		TeamID: team.TeamID, TeamName: team.TeamName, ChurchName: team.ChurchName,
		Captain: team.Captain, ViceCaptain: team.ViceCaptain,
		PastorLetter: team.PastorLetter, PaymentReceipt: team.PaymentReceipt, GroupPhoto: team.GroupPhoto,
		RegistrationStatus: team.RegistrationStatus, Players: team.Players,
	}
}

// GetPlayer returns one player and its parent team's id.
func (c *Controller) GetPlayer(ctx context.Context, playerID string) (*store.Player, string, error) {
	return c.repo.GetPlayerByID(ctx, playerID)
}

// ListChurchAvailability backs GET /churches/availability.
func (c *Controller) ListChurchAvailability(ctx context.Context, maxPerChurch int) ([]store.ChurchAvailability, error) {
	return c.repo.ListChurchAvailability(ctx, maxPerChurch)
}

// ConfirmTeam moves a pending team's artifacts into the confirmed namespace
// and flips its status. Safe to retry after a crash between the move and the
// status write: Move is idempotent and a retry re-observes the team pending.
func (c *Controller) ConfirmTeam(ctx context.Context, teamID string) (*TransitionResult, error) {
	team, err := c.repo.GetByTeamID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	switch team.RegistrationStatus {
	case store.StatusConfirmed:
		return &TransitionResult{Success: true, TeamID: teamID, Status: store.StatusConfirmed, AlreadyConfirmed: true}, nil
	case store.StatusRejected:
		return nil, apierrors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("team %s was already rejected and cannot be confirmed", teamID))
	}

	currentURLs := currentArtifactURLs(team)
	moveResult, moveErr := c.uploader.Move(ctx, teamID, currentURLs, artifacts.NamespacePending, artifacts.NamespaceConfirmed)
	// moveErr (if any) names partial failures; status still advances using
	// whichever URLs succeeded, since the DB row is the system of record.
	_ = moveErr

	urls := urlsFromMoveResult(team, moveResult.URLs)

	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return nil, apierrors.ErrDatabaseError.WithMessage("failed to begin confirm transaction: " + err.Error())
	}
	defer tx.Rollback(ctx)

	if err := c.repo.UpdateStatus(ctx, tx, teamID, store.StatusConfirmed, urls); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apierrors.ErrDatabaseError.WithMessage("failed to commit confirm: " + err.Error())
	}

	return &TransitionResult{Success: true, TeamID: teamID, Status: store.StatusConfirmed, URLs: moveResult.URLs}, nil
}

// RejectTeam runs the symmetric reject transition: artifacts move to
// rejected/<teamId>/... rather than being deleted, so a rejection stays
// auditable.
func (c *Controller) RejectTeam(ctx context.Context, teamID string) (*TransitionResult, error) {
	team, err := c.repo.GetByTeamID(ctx, teamID)
	if err != nil {
		return nil, err
	}

	switch team.RegistrationStatus {
	case store.StatusRejected:
		return &TransitionResult{Success: true, TeamID: teamID, Status: store.StatusRejected, AlreadyRejected: true}, nil
	case store.StatusConfirmed:
		return nil, apierrors.ErrInvalidTransition.WithMessage(
			fmt.Sprintf("team %s was already confirmed and cannot be rejected", teamID))
	}

	currentURLs := currentArtifactURLs(team)
	namespace := artifacts.NamespacePending
	if team.RegistrationStatus == store.StatusConfirmed {
		namespace = artifacts.NamespaceConfirmed
	}
	moveResult, moveErr := c.uploader.Move(ctx, teamID, currentURLs, namespace, artifacts.NamespaceRejected)
	_ = moveErr

	urls := urlsFromMoveResult(team, moveResult.URLs)

	tx, err := c.repo.BeginTx(ctx)
	if err != nil {
		return nil, apierrors.ErrDatabaseError.WithMessage("failed to begin reject transaction: " + err.Error())
	}
	defer tx.Rollback(ctx)

	if err := c.repo.UpdateStatus(ctx, tx, teamID, store.StatusRejected, urls); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apierrors.ErrDatabaseError.WithMessage("failed to commit reject: " + err.Error())
	}

	return &TransitionResult{Success: true, TeamID: teamID, Status: store.StatusRejected, URLs: moveResult.URLs}, nil
}

// currentArtifactURLs collects every populated artifact URL on team, keyed
// the same way artifacts.Uploader.UploadPending keys its result, so Move can
// recover each object's key directly from the stored URL.
func currentArtifactURLs(team *store.Team) map[string]string {
	urls := make(map[string]string)
	if team.PastorLetter != "" {
		urls["pastor_letter"] = team.PastorLetter
	}
	if team.PaymentReceipt != "" {
		urls["payment_receipt"] = team.PaymentReceipt
	}
	if team.GroupPhoto != "" {
		urls["group_photo"] = team.GroupPhoto
	}
	for _, p := range team.Players {
		if p.AadharFile != "" {
			urls[fmt.Sprintf("aadhar#%d", p.Position)] = p.AadharFile
		}
		if p.SubscriptionFile != "" {
			urls[fmt.Sprintf("subscription#%d", p.Position)] = p.SubscriptionFile
		}
	}
	return urls
}

func urlsFromMoveResult(team *store.Team, moved map[string]string) *store.ArtifactURLs {
	urls := &store.ArtifactURLs{
		PlayerAadhar:       map[int]string{},
		PlayerSubscription: map[int]string{},
	}
	if v, ok := moved["pastor_letter"]; ok {
		urls.PastorLetter = v
	}
	if v, ok := moved["payment_receipt"]; ok {
		urls.PaymentReceipt = v
	}
	if v, ok := moved["group_photo"]; ok {
		urls.GroupPhoto = v
	}
	for _, p := range team.Players {
		if v, ok := moved[fmt.Sprintf("aadhar#%d", p.Position)]; ok {
			urls.PlayerAadhar[p.Position] = v
		}
		if v, ok := moved[fmt.Sprintf("subscription#%d", p.Position)]; ok {
			urls.PlayerSubscription[p.Position] = v
		}
	}
	return urls
}
