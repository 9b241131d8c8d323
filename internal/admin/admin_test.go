package admin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/icct/registration/internal/store"
)

func sampleTeam() *store.Team {
	return &store.Team{
		TeamID:         "ICCT-001",
		TeamName:       "Warriors",
		ChurchName:     "Grace Church",
		PastorLetter:   "https://cdn.example.com/teams/pending/ICCT-001/pastor_letter.pdf",
		PaymentReceipt: "https://cdn.example.com/teams/pending/ICCT-001/payment_receipt.pdf",
		GroupPhoto:     "",
		Players: []store.Player{
			{Position: 1, AadharFile: "https://cdn.example.com/teams/pending/ICCT-001/ICCT-001-P01_aadhar.pdf"},
			{Position: 2, SubscriptionFile: "https://cdn.example.com/teams/pending/ICCT-001/ICCT-001-P02_subscription.pdf"},
			{Position: 3},
		},
	}
}

func TestCurrentArtifactURLsCollectsOnlyPopulated(t *testing.T) {
	urls := currentArtifactURLs(sampleTeam())

	assert.Equal(t, "https://cdn.example.com/teams/pending/ICCT-001/pastor_letter.pdf", urls["pastor_letter"])
	assert.Equal(t, "https://cdn.example.com/teams/pending/ICCT-001/payment_receipt.pdf", urls["payment_receipt"])
	_, hasGroupPhoto := urls["group_photo"]
	assert.False(t, hasGroupPhoto)

	assert.Equal(t, "https://cdn.example.com/teams/pending/ICCT-001/ICCT-001-P01_aadhar.pdf", urls["aadhar#1"])
	assert.Equal(t, "https://cdn.example.com/teams/pending/ICCT-001/ICCT-001-P02_subscription.pdf", urls["subscription#2"])
	_, hasPlayer3 := urls["aadhar#3"]
	assert.False(t, hasPlayer3)
}

func TestUrlsFromMoveResultMapsBackToArtifactURLs(t *testing.T) {
	team := sampleTeam()
	moved := map[string]string{
		"pastor_letter":   "https://cdn.example.com/teams/confirmed/ICCT-001/pastor_letter.pdf",
		"aadhar#1":        "https://cdn.example.com/teams/confirmed/ICCT-001/ICCT-001-P01_aadhar.pdf",
		"subscription#2":  "https://cdn.example.com/teams/confirmed/ICCT-001/ICCT-001-P02_subscription.pdf",
	}

	urls := urlsFromMoveResult(team, moved)

	assert.Equal(t, "https://cdn.example.com/teams/confirmed/ICCT-001/pastor_letter.pdf", urls.PastorLetter)
	assert.Empty(t, urls.PaymentReceipt) // not present in moved map
	assert.Equal(t, "https://cdn.example.com/teams/confirmed/ICCT-001/ICCT-001-P01_aadhar.pdf", urls.PlayerAadhar[1])
	assert.Equal(t, "https://cdn.example.com/teams/confirmed/ICCT-001/ICCT-001-P02_subscription.pdf", urls.PlayerSubscription[2])
	_, hasPlayer3Aadhar := urls.PlayerAadhar[3]
	assert.False(t, hasPlayer3Aadhar)
}

func TestToView(t *testing.T) {
	team := sampleTeam()
	team.RegistrationStatus = store.StatusPending

	view := toView(team)

	assert.Equal(t, "ICCT-001", view.TeamID)
	assert.Equal(t, "Warriors", view.TeamName)
	assert.Equal(t, store.StatusPending, view.RegistrationStatus)
	assert.Len(t, view.Players, 3)
}
