package decode

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icct/registration/internal/apierrors"
)

func validPerson() map[string]any {
	return map[string]any{
		"name":     "Jane Doe",
		"phone":    "+919876543210",
		"whatsapp": "+919876543210",
		"email":    "jane@example.com",
	}
}

func validPlayers(n int) []map[string]any {
	players := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		players = append(players, map[string]any{"name": "Player"})
	}
	return players
}

func basePayload(n int) map[string]any {
	return map[string]any{
		"churchName":  "Grace Church",
		"teamName":    "Warriors",
		"captain":     validPerson(),
		"viceCaptain": validPerson(),
		"players":     validPlayers(n),
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecode_HappyPath(t *testing.T) {
	sub, err := Decode(mustJSON(t, basePayload(11)))
	require.NoError(t, err)
	assert.Equal(t, "Grace Church", sub.Submission.ChurchName)
	assert.Len(t, sub.Submission.Players, 11)
	assert.Empty(t, sub.Artifacts)
}

func TestDecode_SnakeCaseAliases(t *testing.T) {
	payload := map[string]any{
		"church_name":  "Grace Church",
		"team_name":    "Warriors",
		"captain":      validPerson(),
		"vice_captain": validPerson(),
		"players":      validPlayers(11),
	}
	sub, err := Decode(mustJSON(t, payload))
	require.NoError(t, err)
	assert.Equal(t, "Warriors", sub.Submission.TeamName)
}

func TestDecode_PlayerCountBoundaries(t *testing.T) {
	_, err := Decode(mustJSON(t, basePayload(10)))
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeValidationFailed, apiErr.Code)

	_, err = Decode(mustJSON(t, basePayload(16)))
	require.Error(t, err)

	_, err = Decode(mustJSON(t, basePayload(11)))
	require.NoError(t, err)

	_, err = Decode(mustJSON(t, basePayload(15)))
	require.NoError(t, err)
}

func pdfDataURI() string {
	return "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 fake"))
}

func pngDataURI() string {
	pngMagic := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngMagic)
}

func TestDecode_ArtifactAccepted(t *testing.T) {
	payload := basePayload(11)
	payload["groupPhoto"] = pngDataURI()
	sub, err := Decode(mustJSON(t, payload))
	require.NoError(t, err)
	require.Len(t, sub.Artifacts, 1)
	assert.Equal(t, SlotGroupPhoto, sub.Artifacts[0].Slot)
	assert.Equal(t, MIMEPNG, sub.Artifacts[0].MIME)
}

func TestDecode_DeclaredMimeMismatchRejected(t *testing.T) {
	payload := basePayload(11)
	// Declares PDF but the bytes are PNG magic.
	pngMagic := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	payload["pastorLetter"] = "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pngMagic)
	_, err := Decode(mustJSON(t, payload))
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "pastorLetter", apiErr.Field)
}

func TestDecode_GroupPhotoRejectsPDF(t *testing.T) {
	payload := basePayload(11)
	payload["groupPhoto"] = pdfDataURI()
	_, err := Decode(mustJSON(t, payload))
	require.Error(t, err)
}

func TestDecode_OversizeArtifactRejected(t *testing.T) {
	payload := basePayload(11)
	big := make([]byte, maxFileBytes+1)
	copy(big, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	payload["groupPhoto"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(big)
	_, err := Decode(mustJSON(t, payload))
	require.Error(t, err)
}

func TestDecode_ExactSizeBoundaryAccepted(t *testing.T) {
	payload := basePayload(11)
	exact := make([]byte, maxFileBytes)
	copy(exact, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A})
	payload["groupPhoto"] = "data:image/png;base64," + base64.StdEncoding.EncodeToString(exact)
	_, err := Decode(mustJSON(t, payload))
	require.NoError(t, err)
}

func TestDecode_NonNumericCaptainPhoneRejected(t *testing.T) {
	payload := basePayload(11)
	captain := validPerson()
	captain["phone"] = "call-me-maybe"
	payload["captain"] = captain
	_, err := Decode(mustJSON(t, payload))
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apierrors.CodeValidationFailed, apiErr.Code)
	assert.Equal(t, "captain.phone", apiErr.Field)
}

func TestDecode_LeadingPlusPhoneAccepted(t *testing.T) {
	payload := basePayload(11)
	captain := validPerson()
	captain["phone"] = "+14155550123"
	payload["captain"] = captain
	_, err := Decode(mustJSON(t, payload))
	require.NoError(t, err)
}

func TestDecode_MissingChurchName(t *testing.T) {
	payload := basePayload(11)
	delete(payload, "churchName")
	_, err := Decode(mustJSON(t, payload))
	require.Error(t, err)
	apiErr, ok := apierrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "churchName", apiErr.Field)
}
