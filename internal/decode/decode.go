// Package decode parses and validates a registration submission, decoding
// embedded base64 artifacts and enforcing size/MIME policy, without
// performing any I/O beyond the input buffer.
package decode

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/icct/registration/internal/apierrors"
)

const maxFileBytes = 5 * 1024 * 1024 // 5 MiB per artifact

var validate = validator.New(validator.WithRequiredStructEnabled())

var phonePattern = regexp.MustCompile(`^\+?[0-9]+$`)

func init() {
	_ = validate.RegisterValidation("phonedigits", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
}

// fieldError builds a VALIDATION_FAILED APIError rooted at the given dotted
// field path, the shape every decoder failure carries.
func fieldError(field, message string) error {
	return apierrors.ErrValidationFailed.WithField(field).WithMessage(message)
}

// Decode parses raw into a ValidatedSubmission, decoding and validating every
// embedded artifact. It never performs I/O beyond reading raw.
func Decode(raw []byte) (*ValidatedSubmission, error) {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fieldError("", "malformed JSON body: "+err.Error())
	}

	sub := Submission{}

	churchRaw, ok := pick(generic, "churchName", "church_name")
	if !ok {
		return nil, fieldError("churchName", "churchName is required")
	}
	if err := json.Unmarshal(churchRaw, &sub.ChurchName); err != nil {
		return nil, fieldError("churchName", "churchName must be a string")
	}

	teamRaw, ok := pick(generic, "teamName", "team_name")
	if !ok {
		return nil, fieldError("teamName", "teamName is required")
	}
	if err := json.Unmarshal(teamRaw, &sub.TeamName); err != nil {
		return nil, fieldError("teamName", "teamName must be a string")
	}

	captain, err := decodePerson(generic, "captain")
	if err != nil {
		return nil, err
	}
	sub.Captain = captain

	viceCaptainRaw, ok := pick(generic, "viceCaptain", "vice_captain")
	if !ok {
		return nil, fieldError("viceCaptain", "viceCaptain is required")
	}
	var viceGeneric map[string]json.RawMessage
	if err := json.Unmarshal(viceCaptainRaw, &viceGeneric); err != nil {
		return nil, fieldError("viceCaptain", "viceCaptain must be an object")
	}
	viceCaptain, err := decodePersonFields(viceGeneric, "viceCaptain")
	if err != nil {
		return nil, err
	}
	sub.ViceCaptain = viceCaptain

	playersRaw, ok := pick(generic, "players")
	if !ok {
		return nil, fieldError("players", "players is required")
	}
	var rawPlayers []map[string]json.RawMessage
	if err := json.Unmarshal(playersRaw, &rawPlayers); err != nil {
		return nil, fieldError("players", "players must be an array of objects")
	}
	if len(rawPlayers) < 11 || len(rawPlayers) > 15 {
		return nil, fieldError("players", fmt.Sprintf("expected 11-15 players, got %d", len(rawPlayers)))
	}

	players := make([]PlayerInput, len(rawPlayers))
	for i, rp := range rawPlayers {
		p, err := decodePlayer(rp, i)
		if err != nil {
			return nil, err
		}
		players[i] = p
	}
	sub.Players = players

	if v, ok := pickString(generic, "pastorLetter", "pastor_letter"); ok {
		sub.PastorLetter = v
	}
	if v, ok := pickString(generic, "paymentReceipt", "payment_receipt"); ok {
		sub.PaymentReceipt = v
	}
	if v, ok := pickString(generic, "groupPhoto", "group_photo"); ok {
		sub.GroupPhoto = v
	}

	if err := validate.Struct(sub.Captain); err != nil {
		return nil, validationErr("captain", err)
	}
	if err := validate.Struct(sub.ViceCaptain); err != nil {
		return nil, validationErr("viceCaptain", err)
	}
	if err := validate.Var(sub.ChurchName, "required,min=1,max=200"); err != nil {
		return nil, fieldError("churchName", "must be 1-200 characters")
	}
	if err := validate.Var(sub.TeamName, "required,min=1,max=200"); err != nil {
		return nil, fieldError("teamName", "must be 1-200 characters")
	}

	artifacts := make([]Artifact, 0, 5+2*len(players))

	if sub.PastorLetter != "" {
		a, err := decodeArtifact("pastorLetter", SlotPastorLetter, 0, sub.PastorLetter)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if sub.PaymentReceipt != "" {
		a, err := decodeArtifact("paymentReceipt", SlotPaymentReceipt, 0, sub.PaymentReceipt)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	if sub.GroupPhoto != "" {
		a, err := decodeArtifact("groupPhoto", SlotGroupPhoto, 0, sub.GroupPhoto)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	for i, p := range players {
		pos := i + 1
		if p.AadharFile != "" {
			a, err := decodeArtifact(fmt.Sprintf("players[%d].aadharFile", i), SlotPlayerAadhar, pos, p.AadharFile)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, a)
		}
		if p.SubscriptionFile != "" {
			a, err := decodeArtifact(fmt.Sprintf("players[%d].subscriptionFile", i), SlotPlayerSubscription, pos, p.SubscriptionFile)
			if err != nil {
				return nil, err
			}
			artifacts = append(artifacts, a)
		}
	}

	return &ValidatedSubmission{Submission: sub, Artifacts: artifacts}, nil
}

func decodePerson(generic map[string]json.RawMessage, key string) (Person, error) {
	raw, ok := pick(generic, key)
	if !ok {
		return Person{}, fieldError(key, key+" is required")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Person{}, fieldError(key, key+" must be an object")
	}
	return decodePersonFields(fields, key)
}

func decodePersonFields(fields map[string]json.RawMessage, key string) (Person, error) {
	var p Person
	if v, ok := pickString(fields, "name"); ok {
		p.Name = v
	}
	if v, ok := pickString(fields, "phone"); ok {
		p.Phone = v
	}
	if v, ok := pickString(fields, "whatsapp"); ok {
		p.Whatsapp = v
	}
	if v, ok := pickString(fields, "email"); ok {
		p.Email = v
	}
	if p.Name == "" {
		return p, fieldError(key+".name", "name is required")
	}
	return p, nil
}

func decodePlayer(fields map[string]json.RawMessage, idx int) (PlayerInput, error) {
	var p PlayerInput
	path := fmt.Sprintf("players[%d]", idx)
	if v, ok := pickString(fields, "name"); ok {
		p.Name = v
	}
	if p.Name == "" {
		return p, fieldError(path+".name", "name is required")
	}
	if v, ok := pickString(fields, "role"); ok {
		p.Role = v
	}
	if v, ok := pickString(fields, "aadharFile", "aadhar_file"); ok {
		p.AadharFile = v
	}
	if v, ok := pickString(fields, "subscriptionFile", "subscription_file"); ok {
		p.SubscriptionFile = v
	}
	if err := validate.Struct(p); err != nil {
		return p, validationErr(path, err)
	}
	return p, nil
}

// pick returns the first matching raw value among the candidate keys.
func pick(m map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func pickString(m map[string]json.RawMessage, keys ...string) (string, bool) {
	raw, ok := pick(m, keys...)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func validationErr(prefix string, err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		field := prefix + "." + strings.ToLower(fe.Field())
		return fieldError(field, fe.Tag()+" constraint violated")
	}
	return fieldError(prefix, err.Error())
}

// decodeArtifact decodes, size-checks, and MIME-validates one artifact.
func decodeArtifact(fieldPath string, slot Slot, playerIndex int, raw string) (Artifact, error) {
	declaredMIME, payload := splitDataURI(raw)

	data, err := decodeBase64(payload)
	if err != nil {
		return Artifact{}, fieldError(fieldPath, "invalid base64 payload")
	}

	if len(data) == 0 {
		return Artifact{}, fieldError(fieldPath, "artifact is empty")
	}
	if len(data) > maxFileBytes {
		return Artifact{}, fieldError(fieldPath, "artifact exceeds 5 MiB limit")
	}

	detected, ok := detectMIME(data)
	if !ok {
		return Artifact{}, fieldError(fieldPath, "could not determine artifact type from content")
	}

	if declaredMIME != "" {
		canon, known := canonicalMIME(declaredMIME)
		if !known {
			return Artifact{}, fieldError(fieldPath, "unsupported declared MIME type: "+declaredMIME)
		}
		if canon != detected {
			return Artifact{}, fieldError(fieldPath, "declared MIME type does not match file content")
		}
	}

	if !allowedForSlot(slot, detected) {
		return Artifact{}, fieldError(fieldPath, "file type not permitted for this field")
	}

	sum := sha256.Sum256(data)
	return Artifact{
		Slot:        slot,
		PlayerIndex: playerIndex,
		Bytes:       data,
		MIME:        detected,
		SHA256:      hex.EncodeToString(sum[:]),
	}, nil
}

// splitDataURI splits "data:<mime>;base64,<payload>" into its parts. If raw
// is not a data URI, it is treated as bare base64 with no declared MIME.
func splitDataURI(raw string) (declaredMIME, payload string) {
	if !strings.HasPrefix(raw, "data:") {
		return "", raw
	}
	comma := strings.IndexByte(raw, ',')
	if comma < 0 {
		return "", raw
	}
	header := raw[len("data:"):comma]
	payload = raw[comma+1:]
	header = strings.TrimSuffix(header, ";base64")
	return header, payload
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
