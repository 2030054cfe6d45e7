package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MotionType classifies a motion
type MotionType string

const (
	MotionStandard  MotionType = "standard"
	MotionProcedure MotionType = "procedure" // labeled as needing 2/3, not enforced
	MotionSpecial   MotionType = "special"
)

func (t MotionType) Valid() bool {
	return t == MotionStandard || t == MotionProcedure || t == MotionSpecial
}

// Variant marks a motion derived from a parent motion. The empty value means none.
type Variant string

const (
	VariantNone      Variant = ""
	VariantRevision  Variant = "revision"
	VariantAmendment Variant = "amendment"
	VariantPostpone  Variant = "postpone"
	VariantOverturn  Variant = "overturn"
)

func (v Variant) Valid() bool {
	switch v {
	case VariantNone, VariantRevision, VariantAmendment, VariantPostpone, VariantOverturn:
		return true
	default:
		return false
	}
}

// MotionStatus is the lifecycle state of a motion
type MotionStatus string

const (
	StatusPending   MotionStatus = "pending"
	StatusPassed    MotionStatus = "passed"
	StatusFailed    MotionStatus = "failed"
	StatusPostponed MotionStatus = "postponed"
)

// Terminal reports whether the status is an acceptable decision outcome
func (s MotionStatus) Terminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusPostponed
}

// VoteChoice is a single ballot value
type VoteChoice string

const (
	ChoiceSupport VoteChoice = "support"
	ChoiceAgainst VoteChoice = "against"
	ChoiceAbstain VoteChoice = "abstain"
)

func (c VoteChoice) Valid() bool {
	return c == ChoiceSupport || c == ChoiceAgainst || c == ChoiceAbstain
}

// Motion is a proposal raised in a committee
type Motion struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	CommitteeID    primitive.ObjectID  `bson:"committee" json:"committeeId"`
	ParentMotionID *primitive.ObjectID `bson:"parentMotion,omitempty" json:"parentMotionId,omitempty"`
	VariantOf      Variant             `bson:"variantOf,omitempty" json:"variantOf,omitempty"`
	Type           MotionType          `bson:"type" json:"type"`
	Title          string              `bson:"title" json:"title"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	Status         MotionStatus        `bson:"status" json:"status"`
	CreatedBy      primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	CreatedByName  string              `bson:"createdByName" json:"createdByName"`
	Discussion     []DiscussionEntry   `bson:"discussion" json:"discussion"`
	Votes          []Vote              `bson:"votes" json:"votes"`
	DecisionRecord *DecisionRecord     `bson:"decisionRecord,omitempty" json:"decisionRecord,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// VoteBy returns the ballot cast by the given user, if any
func (m *Motion) VoteBy(userID primitive.ObjectID) (Vote, bool) {
	for _, v := range m.Votes {
		if v.VoterID == userID {
			return v, true
		}
	}
	return Vote{}, false
}

// DiscussionEntry is one append-only contribution to a motion's debate
type DiscussionEntry struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	Stance     Stance             `bson:"stance" json:"stance"`
	Content    string             `bson:"content" json:"content"`
	AuthorID   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	AuthorName string             `bson:"createdByName" json:"createdByName"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// Vote is the current ballot of one voter on one motion
type Vote struct {
	Choice     VoteChoice         `bson:"choice" json:"choice"`
	VoterID    primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	VoterName  string             `bson:"createdByName,omitempty" json:"createdByName,omitempty"`
	VoterEmail string             `bson:"createdByEmail,omitempty" json:"createdByEmail,omitempty"`
	CastAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// DecisionRecord is the latest recorded outcome of a motion
type DecisionRecord struct {
	Outcome        MotionStatus       `bson:"outcome" json:"outcome"`
	Summary        string             `bson:"summary" json:"summary"`
	Pros           string             `bson:"pros" json:"pros"`
	Cons           string             `bson:"cons" json:"cons"`
	RecordedAt     time.Time          `bson:"recordedAt" json:"recordedAt"`
	RecordedBy     primitive.ObjectID `bson:"recordedBy" json:"recordedBy"`
	RecordedByName string             `bson:"recordedByName" json:"recordedByName"`
}

// MarshalJSON customizes JSON serialization for Motion so that clients always
// see parentMotionId (null when absent) and empty lists instead of null.
func (m Motion) MarshalJSON() ([]byte, error) {
	type Alias Motion
	var parentHex *string
	if m.ParentMotionID != nil {
		hex := m.ParentMotionID.Hex()
		parentHex = &hex
	}
	if m.Discussion == nil {
		m.Discussion = []DiscussionEntry{}
	}
	if m.Votes == nil {
		m.Votes = []Vote{}
	}
	return json.Marshal(&struct {
		ID             string  `json:"id,omitempty"`
		CommitteeID    string  `json:"committeeId"`
		ParentMotionID *string `json:"parentMotionId"`
		*Alias
	}{
		ID:             m.ID.Hex(),
		CommitteeID:    m.CommitteeID.Hex(),
		ParentMotionID: parentHex,
		Alias:          (*Alias)(&m),
	})
}
