package registration

import (
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icct/registration/internal/apierrors"
	"github.com/icct/registration/internal/decode"
)

func sampleSubmission() decode.Submission {
	return decode.Submission{
		ChurchName: "Grace Church",
		TeamName:   "Warriors",
		Captain:    decode.Person{Name: "Jane Doe", Phone: "+1111", Whatsapp: "+1111", Email: "jane@example.com"},
		ViceCaptain: decode.Person{Name: "John Doe", Phone: "+2222", Whatsapp: "+2222", Email: "john@example.com"},
		Players: []decode.PlayerInput{
			{Name: "Player One", AadharFile: "data"},
			{Name: "Player Two", SubscriptionFile: "data"},
		},
	}
}

func TestBuildTeamAndPlayersMapsTopLevelArtifacts(t *testing.T) {
	sub := sampleSubmission()
	urls := map[string]string{
		string(decode.SlotPastorLetter):   "https://cdn/pending/ICCT-001/pastor_letter.pdf",
		string(decode.SlotPaymentReceipt): "https://cdn/pending/ICCT-001/payment_receipt.pdf",
	}

	team, players := buildTeamAndPlayers(sub, "ICCT-001", urls)

	assert.Equal(t, "ICCT-001", team.TeamID)
	assert.Equal(t, "Warriors", team.TeamName)
	assert.Equal(t, "Grace Church", team.ChurchName)
	assert.Equal(t, "https://cdn/pending/ICCT-001/pastor_letter.pdf", team.PastorLetter)
	assert.Equal(t, "https://cdn/pending/ICCT-001/payment_receipt.pdf", team.PaymentReceipt)
	assert.Empty(t, team.GroupPhoto)
	require.Len(t, players, 2)
}

func TestBuildTeamAndPlayersDerivesPlayerIDsAndArtifacts(t *testing.T) {
	sub := sampleSubmission()
	urls := map[string]string{
		"aadhar#1":       "https://cdn/pending/ICCT-001/ICCT-001-P01_aadhar.pdf",
		"subscription#2": "https://cdn/pending/ICCT-001/ICCT-001-P02_subscription.pdf",
	}

	_, players := buildTeamAndPlayers(sub, "ICCT-001", urls)

	assert.Equal(t, "ICCT-001-P01", players[0].PlayerID)
	assert.Equal(t, 1, players[0].Position)
	assert.Equal(t, "https://cdn/pending/ICCT-001/ICCT-001-P01_aadhar.pdf", players[0].AadharFile)
	assert.Empty(t, players[0].SubscriptionFile)

	assert.Equal(t, "ICCT-001-P02", players[1].PlayerID)
	assert.Equal(t, 2, players[1].Position)
	assert.Equal(t, "https://cdn/pending/ICCT-001/ICCT-001-P02_subscription.pdf", players[1].SubscriptionFile)
	assert.Empty(t, players[1].AadharFile)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	c := &Coordinator{}
	sub := &decode.ValidatedSubmission{
		Submission: sampleSubmission(),
		Artifacts: []decode.Artifact{
			{Slot: decode.SlotPastorLetter, SHA256: "aaaa"},
			{Slot: decode.SlotPaymentReceipt, SHA256: "bbbb"},
		},
	}

	h1, err := c.fingerprint(sub)
	require.NoError(t, err)
	h2, err := c.fingerprint(sub)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestFingerprintDiffersOnDifferentArtifacts(t *testing.T) {
	c := &Coordinator{}
	base := sampleSubmission()

	subA := &decode.ValidatedSubmission{Submission: base, Artifacts: []decode.Artifact{{SHA256: "aaaa"}}}
	subB := &decode.ValidatedSubmission{Submission: base, Artifacts: []decode.Artifact{{SHA256: "bbbb"}}}

	hA, err := c.fingerprint(subA)
	require.NoError(t, err)
	hB, err := c.fingerprint(subB)
	require.NoError(t, err)
	assert.NotEqual(t, hA, hB)
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(nil, nil, nil, nil, nil, nil, Config{}, nil)
	assert.Equal(t, 5, c.maxInsertAttempts)
	assert.NotZero(t, c.endToEndDeadline)
}

// mappedUniqueViolation builds the error shape store.mapInsertError produces
// for a unique-constraint violation: an *apierrors.APIError wrapping the
// originating *pgconn.PgError so store.IsUniqueViolation can still find it.
func mappedUniqueViolation(constraintName string) error {
	return apierrors.ErrDuplicateTeam.WithCause(&pgconn.PgError{Code: "23505", ConstraintName: constraintName})
}

func TestClassifyInsertErrorRetriesTeamIDCollisionWhileAttemptsRemain(t *testing.T) {
	err := mappedUniqueViolation("teams_team_id_key")
	assert.Equal(t, insertRetryTeamID, classifyInsertError(err, 1, 5))
	assert.Equal(t, insertRetryTeamID, classifyInsertError(err, 4, 5))
}

func TestClassifyInsertErrorStopsRetryingOnLastAttempt(t *testing.T) {
	err := mappedUniqueViolation("teams_team_id_key")
	assert.Equal(t, insertFatal, classifyInsertError(err, 5, 5))
}

func TestClassifyInsertErrorDuplicateTeamIsNeverRetried(t *testing.T) {
	err := mappedUniqueViolation("teams_team_name_captain_phone_key")
	assert.Equal(t, insertDuplicateTeam, classifyInsertError(err, 1, 5))
	assert.Equal(t, insertDuplicateTeam, classifyInsertError(err, 5, 5))
}

func TestClassifyInsertErrorUnknownViolationIsFatal(t *testing.T) {
	err := mappedUniqueViolation("some_other_constraint")
	assert.Equal(t, insertFatal, classifyInsertError(err, 1, 5))
}
