// Package store implements persistence for teams and players, with
// explicit, non-lazy-loading operations over pgx.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/icct/registration/internal/apierrors"
	"github.com/icct/registration/internal/quota"
)

// Status is the registration status enumeration.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusRejected  Status = "rejected"
)

// Person mirrors decode.Person but at the persistence boundary, where captain
// and vice-captain are flattened into column pairs.
type Person struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Whatsapp string `json:"whatsapp"`
	Email    string `json:"email"`
}

// Team is a complete snapshot of one team row.
type Team struct {
	ID                 int64     `json:"-"`
	TeamID             string    `json:"teamId"`
	TeamName           string    `json:"teamName"`
	ChurchName         string    `json:"churchName"`
	Captain            Person    `json:"captain"`
	ViceCaptain        Person    `json:"viceCaptain"`
	PastorLetter       string    `json:"pastorLetterUrl,omitempty"`
	PaymentReceipt     string    `json:"paymentReceiptUrl,omitempty"`
	GroupPhoto         string    `json:"groupPhotoUrl,omitempty"`
	RegistrationStatus Status    `json:"registrationStatus"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	Players            []Player  `json:"players,omitempty"`
}

// Player is one roster row.
type Player struct {
	ID               int64  `json:"-"`
	TeamFK           int64  `json:"-"`
	PlayerID         string `json:"playerId"`
	Name             string `json:"name"`
	Role             string `json:"role,omitempty"`
	AadharFile       string `json:"aadharFileUrl,omitempty"`
	SubscriptionFile string `json:"subscriptionFileUrl,omitempty"`
	Position         int    `json:"position"`
}

// ArtifactURLs carries the URL for every named slot, used by both the
// coordinator (after upload) and the admin controller (after a move).
type ArtifactURLs struct {
	PastorLetter   string
	PaymentReceipt string
	GroupPhoto     string
	// PlayerAadhar/PlayerSubscription are keyed by player position (1-based).
	PlayerAadhar       map[int]string
	PlayerSubscription map[int]string
}

// Repository is the TeamRepository implementation.
type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Pool exposes the underlying pool. The coordinator and admin controller
// open their transactions through BeginTx instead.
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// InsertTeamWithPlayers inserts team and its players atomically, within tx.
// Players are persisted in submission order (position 1..N) and their
// playerIds are derived from the team's teamId.
func (r *Repository) InsertTeamWithPlayers(ctx context.Context, tx pgx.Tx, team *Team, players []Player) error {
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO teams (
			team_id, team_name, church_name, church_key,
			captain_name, captain_phone, captain_whatsapp, captain_email,
			vice_captain_name, vice_captain_phone, vice_captain_whatsapp, vice_captain_email,
			pastor_letter, payment_receipt, group_photo, registration_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,'pending')
		RETURNING id, created_at, updated_at`,
		team.TeamID, team.TeamName, team.ChurchName, quota.Normalize(team.ChurchName),
		team.Captain.Name, team.Captain.Phone, team.Captain.Whatsapp, team.Captain.Email,
		team.ViceCaptain.Name, team.ViceCaptain.Phone, team.ViceCaptain.Whatsapp, team.ViceCaptain.Email,
		nullable(team.PastorLetter), nullable(team.PaymentReceipt), nullable(team.GroupPhoto),
	).Scan(&id, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return mapInsertError(err)
	}
	team.ID = id
	team.RegistrationStatus = StatusPending

	for i := range players {
		players[i].TeamFK = id
		err := tx.QueryRow(ctx, `
			INSERT INTO players (team_fk, player_id, name, role, aadhar_file, subscription_file, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			RETURNING id`,
			id, players[i].PlayerID, players[i].Name, nullable(players[i].Role),
			nullable(players[i].AadharFile), nullable(players[i].SubscriptionFile), players[i].Position,
		).Scan(&players[i].ID)
		if err != nil {
			return mapInsertError(err)
		}
	}
	team.Players = players
	return nil
}

// GetByTeamID returns a complete snapshot of one team and its players, or
// apierrors.ErrTeamNotFound.
func (r *Repository) GetByTeamID(ctx context.Context, teamID string) (*Team, error) {
	return r.getByTeamID(ctx, r.pool, teamID)
}

func (r *Repository) getByTeamID(ctx context.Context, q queryer, teamID string) (*Team, error) {
	t := &Team{}
	err := q.QueryRow(ctx, `
		SELECT id, team_id, team_name, church_name,
			captain_name, captain_phone, captain_whatsapp, captain_email,
			vice_captain_name, vice_captain_phone, vice_captain_whatsapp, vice_captain_email,
			coalesce(pastor_letter, ''), coalesce(payment_receipt, ''), coalesce(group_photo, ''),
			registration_status, created_at, updated_at
		FROM teams WHERE team_id = $1`, teamID).Scan(
		&t.ID, &t.TeamID, &t.TeamName, &t.ChurchName,
		&t.Captain.Name, &t.Captain.Phone, &t.Captain.Whatsapp, &t.Captain.Email,
		&t.ViceCaptain.Name, &t.ViceCaptain.Phone, &t.ViceCaptain.Whatsapp, &t.ViceCaptain.Email,
		&t.PastorLetter, &t.PaymentReceipt, &t.GroupPhoto,
		&t.RegistrationStatus, &t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apierrors.ErrTeamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get team: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT id, team_fk, player_id, name, coalesce(role,''), coalesce(aadhar_file,''), coalesce(subscription_file,''), position
		FROM players WHERE team_fk = $1 ORDER BY position`, t.ID)
	if err != nil {
		return nil, fmt.Errorf("store: get players: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.TeamFK, &p.PlayerID, &p.Name, &p.Role, &p.AadharFile, &p.SubscriptionFile, &p.Position); err != nil {
			return nil, fmt.Errorf("store: scan player: %w", err)
		}
		t.Players = append(t.Players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: player rows: %w", err)
	}

	return t, nil
}

// GetPlayerByID returns the player and its parent team's teamId, or
// apierrors.ErrPlayerNotFound.
func (r *Repository) GetPlayerByID(ctx context.Context, playerID string) (*Player, string, error) {
	var p Player
	var teamID string
	err := r.pool.QueryRow(ctx, `
		SELECT p.id, p.team_fk, p.player_id, p.name, coalesce(p.role,''),
			coalesce(p.aadhar_file,''), coalesce(p.subscription_file,''), p.position, t.team_id
		FROM players p JOIN teams t ON t.id = p.team_fk
		WHERE p.player_id = $1`, playerID).Scan(
		&p.ID, &p.TeamFK, &p.PlayerID, &p.Name, &p.Role, &p.AadharFile, &p.SubscriptionFile, &p.Position, &teamID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", apierrors.ErrPlayerNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("store: get player: %w", err)
	}
	return &p, teamID, nil
}

// TeamSummary is the list-view shape returned by the admin list endpoint.
type TeamSummary struct {
	TeamID             string    `json:"teamId"`
	TeamName           string    `json:"teamName"`
	ChurchName         string    `json:"churchName"`
	PlayerCount        int       `json:"playerCount"`
	RegistrationStatus Status    `json:"registrationStatus"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ListTeams returns a page of team summaries, optionally filtered by status.
func (r *Repository) ListTeams(ctx context.Context, status Status, skip, limit int) (int, []TeamSummary, error) {
	var total int
	var rows pgx.Rows
	var err error

	if status == "" {
		if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM teams`).Scan(&total); err != nil {
			return 0, nil, fmt.Errorf("store: count teams: %w", err)
		}
		rows, err = r.pool.Query(ctx, `
			SELECT t.team_id, t.team_name, t.church_name, t.registration_status, t.created_at,
				(SELECT count(*) FROM players p WHERE p.team_fk = t.id)
			FROM teams t ORDER BY t.created_at ASC OFFSET $1 LIMIT $2`, skip, limit)
	} else {
		if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM teams WHERE registration_status = $1`, status).Scan(&total); err != nil {
			return 0, nil, fmt.Errorf("store: count teams: %w", err)
		}
		rows, err = r.pool.Query(ctx, `
			SELECT t.team_id, t.team_name, t.church_name, t.registration_status, t.created_at,
				(SELECT count(*) FROM players p WHERE p.team_fk = t.id)
			FROM teams t WHERE t.registration_status = $1 ORDER BY t.created_at ASC OFFSET $2 LIMIT $3`, status, skip, limit)
	}
	if err != nil {
		return 0, nil, fmt.Errorf("store: list teams: %w", err)
	}
	defer rows.Close()

	summaries := make([]TeamSummary, 0, limit)
	for rows.Next() {
		var s TeamSummary
		if err := rows.Scan(&s.TeamID, &s.TeamName, &s.ChurchName, &s.RegistrationStatus, &s.CreatedAt, &s.PlayerCount); err != nil {
			return 0, nil, fmt.Errorf("store: scan team summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("store: team summary rows: %w", err)
	}
	return total, summaries, nil
}

// ChurchAvailability is one row of the churches/availability endpoint.
type ChurchAvailability struct {
	ChurchName string `json:"churchName"`
	TeamCount  int    `json:"teamCount"`
	Locked     bool   `json:"locked"`
}

// ListChurchAvailability reports every church with at least one non-rejected
// team and whether it has hit maxPerChurch.
func (r *Repository) ListChurchAvailability(ctx context.Context, maxPerChurch int) ([]ChurchAvailability, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT church_name, count(*)
		FROM teams WHERE registration_status != 'rejected'
		GROUP BY church_key, church_name
		ORDER BY church_name`)
	if err != nil {
		return nil, fmt.Errorf("store: church availability: %w", err)
	}
	defer rows.Close()

	var out []ChurchAvailability
	for rows.Next() {
		var a ChurchAvailability
		if err := rows.Scan(&a.ChurchName, &a.TeamCount); err != nil {
			return nil, fmt.Errorf("store: scan church availability: %w", err)
		}
		a.Locked = a.TeamCount >= maxPerChurch
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateStatus transitions a team's status and, if urls is non-nil, writes
// every non-empty team-level URL in urls and every player URL listed by
// position, within tx; columns with no new URL keep their value. updated_at is bumped by
// this call only; a pure artifact move without a status write must not
// call this, since it shouldn't bump updated_at on its own.
func (r *Repository) UpdateStatus(ctx context.Context, tx pgx.Tx, teamID string, newStatus Status, urls *ArtifactURLs) error {
	var err error
	if urls == nil {
		_, err = tx.Exec(ctx, `UPDATE teams SET registration_status = $1, updated_at = now() WHERE team_id = $2`,
			newStatus, teamID)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE teams SET registration_status = $1, updated_at = now(),
				pastor_letter = coalesce(nullif($2, ''), pastor_letter),
				payment_receipt = coalesce(nullif($3, ''), payment_receipt),
				group_photo = coalesce(nullif($4, ''), group_photo)
			WHERE team_id = $5`,
			newStatus, urls.PastorLetter, urls.PaymentReceipt, urls.GroupPhoto, teamID)
		if err == nil && (len(urls.PlayerAadhar) > 0 || len(urls.PlayerSubscription) > 0) {
			err = r.updatePlayerURLs(ctx, tx, teamID, urls)
		}
	}
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	return nil
}

func (r *Repository) updatePlayerURLs(ctx context.Context, tx pgx.Tx, teamID string, urls *ArtifactURLs) error {
	for pos, url := range urls.PlayerAadhar {
		if _, err := tx.Exec(ctx, `
			UPDATE players SET aadhar_file = $1
			WHERE team_fk = (SELECT id FROM teams WHERE team_id = $2) AND position = $3`, url, teamID, pos); err != nil {
			return err
		}
	}
	for pos, url := range urls.PlayerSubscription {
		if _, err := tx.Exec(ctx, `
			UPDATE players SET subscription_file = $1
			WHERE team_fk = (SELECT id FROM teams WHERE team_id = $2) AND position = $3`, url, teamID, pos); err != nil {
			return err
		}
	}
	return nil
}

// BeginTx starts a transaction on the repository's pool, used by callers
// (the coordinator, the admin controller) that need to span this repository
// and the sequence/quota packages within one atomic section.
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ChurchKey exposes the normalized comparison key the quota guard uses. It is
// computed here too (rather than imported only in the insert path) so any
// future direct SQL against church_key stays consistent with quota.Normalize.
func (t *Team) ChurchKey() string {
	return quota.Normalize(t.ChurchName)
}

func mapInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "teams_team_id_key":
			return apierrors.ErrInternal.WithMessage("team id collision: " + pgErr.ConstraintName).WithCause(pgErr)
		case "teams_team_name_captain_phone_key":
			return apierrors.ErrDuplicateTeam.WithMessage("a team with this name and captain phone is already registered").WithCause(pgErr)
		}
		return apierrors.ErrDuplicateTeam.WithMessage(pgErr.ConstraintName).WithCause(pgErr)
	}
	return fmt.Errorf("store: insert: %w", err)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation on constraintName, used by the coordinator to distinguish a
// teamId race (retry) from a (teamName, captainPhone) duplicate (409).
func IsUniqueViolation(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName == constraintName
	}
	return false
}
