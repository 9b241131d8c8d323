package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/icct/registration/internal/apierrors"
)

func TestNullable(t *testing.T) {
	assert.Nil(t, nullable(""))
	assert.Equal(t, "value", nullable("value"))
}

func TestChurchKeyNormalizes(t *testing.T) {
	team := &Team{ChurchName: "  Grace   Church  "}
	assert.Equal(t, "grace church", team.ChurchKey())
}

func TestChurchKeyMatchesAcrossCaseAndSpacing(t *testing.T) {
	a := &Team{ChurchName: "Grace Church"}
	b := &Team{ChurchName: "GRACE  CHURCH"}
	assert.Equal(t, a.ChurchKey(), b.ChurchKey())
}

func TestIsUniqueViolationMatchesConstraint(t *testing.T) {
	err := &pgconn.PgError{Code: "23505", ConstraintName: "teams_team_id_key"}
	assert.True(t, IsUniqueViolation(err, "teams_team_id_key"))
	assert.False(t, IsUniqueViolation(err, "teams_team_name_captain_phone_key"))
}

func TestIsUniqueViolationFalseForOtherErrors(t *testing.T) {
	assert.False(t, IsUniqueViolation(errors.New("boom"), "teams_team_id_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, "teams_team_id_key"))
}

func TestMapInsertErrorTeamIDCollision(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "teams_team_id_key"}
	err := mapInsertError(pgErr)
	apiErr, ok := apierrors.As(err)
	assert.True(t, ok)
	assert.Equal(t, apierrors.CodeInternal, apiErr.Code)

	// The original pgErr must still be reachable so store.IsUniqueViolation
	// (and any other errors.As caller) can inspect the constraint name.
	var gotPgErr *pgconn.PgError
	assert.True(t, errors.As(err, &gotPgErr))
	assert.Equal(t, "teams_team_id_key", gotPgErr.ConstraintName)
	assert.True(t, IsUniqueViolation(err, "teams_team_id_key"))
}

func TestMapInsertErrorDuplicateTeam(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "teams_team_name_captain_phone_key"}
	err := mapInsertError(pgErr)
	apiErr, ok := apierrors.As(err)
	assert.True(t, ok)
	assert.Equal(t, apierrors.CodeDuplicateTeam, apiErr.Code)
	assert.True(t, IsUniqueViolation(err, "teams_team_name_captain_phone_key"))
}

func TestMapInsertErrorUnknownConstraintStillDuplicate(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "some_other_key"}
	err := mapInsertError(pgErr)
	apiErr, ok := apierrors.As(err)
	assert.True(t, ok)
	assert.Equal(t, apierrors.CodeDuplicateTeam, apiErr.Code)
}

func TestMapInsertErrorWrapsNonPgError(t *testing.T) {
	err := mapInsertError(errors.New("connection reset"))
	assert.ErrorContains(t, err, "connection reset")
}
