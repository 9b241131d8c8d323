package decode

// Person is the shared captain / vice-captain shape.
type Person struct {
	Name     string `validate:"required,min=1,max=150"`
	Phone    string `validate:"required,min=7,max=20,phonedigits"`
	Whatsapp string `validate:"required,min=10,max=20"`
	Email    string `validate:"required,email"`
}

// PlayerInput is one roster entry before artifact decoding.
type PlayerInput struct {
	Name             string `validate:"required,min=1,max=150"`
	Role             string `validate:"omitempty,max=20"`
	AadharFile       string
	SubscriptionFile string
}

// Submission is the fully parsed, field-validated request body, before
// artifact bytes are decoded.
type Submission struct {
	ChurchName  string `validate:"required,min=1,max=200"`
	TeamName    string `validate:"required,min=1,max=200"`
	Captain     Person
	ViceCaptain Person
	Players     []PlayerInput

	PastorLetter   string
	PaymentReceipt string
	GroupPhoto     string
}

// Slot names artifact storage locations.
type Slot string

const (
	SlotPastorLetter   Slot = "pastor_letter"
	SlotPaymentReceipt Slot = "payment_receipt"
	SlotGroupPhoto     Slot = "group_photo"
	SlotPlayerAadhar   Slot = "aadhar"
	SlotPlayerSubscription Slot = "subscription"
)

// Artifact is a decoded, validated binary artifact awaiting upload.
type Artifact struct {
	Slot        Slot
	PlayerIndex int // 1-based position; 0 for team-level slots
	Bytes       []byte
	MIME        string
	SHA256      string
}

// ValidatedSubmission pairs the decoded fields with their extracted
// artifacts, ready for upload and persistence.
type ValidatedSubmission struct {
	Submission Submission
	Artifacts  []Artifact
}
