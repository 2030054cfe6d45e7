package models

import (
	"encoding/json"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a member's standing inside a committee
type Role string

const (
	RoleOwner    Role = "owner"
	RoleChair    Role = "chair"
	RoleMember   Role = "member"
	RoleObserver Role = "observer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleChair, RoleMember, RoleObserver:
		return true
	default:
		return false
	}
}

// Permission is a granular capability a member can hold
type Permission string

const (
	PermCreateMotion   Permission = "createMotion"
	PermDiscussion     Permission = "discussion"
	PermMoveToVote     Permission = "moveToVote"
	PermVote           Permission = "vote"
	PermRecordDecision Permission = "recordDecision"
)

// AllPermissions lists every motion action in a stable order
var AllPermissions = []Permission{
	PermCreateMotion,
	PermDiscussion,
	PermMoveToVote,
	PermVote,
	PermRecordDecision,
}

func (p Permission) Valid() bool {
	for _, known := range AllPermissions {
		if p == known {
			return true
		}
	}
	return false
}

// Stance tags discussion entries and hand raises
type Stance string

const (
	StancePro     Stance = "pro"
	StanceCon     Stance = "con"
	StanceNeutral Stance = "neutral"
)

func (s Stance) Valid() bool {
	return s == StancePro || s == StanceCon || s == StanceNeutral
}

// CommitteeSettings holds the committee-level switches that affect motions
type CommitteeSettings struct {
	OfflineMode           bool `bson:"offlineMode" json:"offlineMode"`
	MinSpeakersBeforeVote int  `bson:"minSpeakersBeforeVote" json:"minSpeakersBeforeVote"`
	RecordNamesInVotes    bool `bson:"recordNamesInVotes" json:"recordNamesInVotes"`
	AllowSpecialMotions   bool `bson:"allowSpecialMotions" json:"allowSpecialMotions"`
}

// DefaultSettings returns the settings a new committee starts with
func DefaultSettings() CommitteeSettings {
	return CommitteeSettings{
		OfflineMode:           true,
		MinSpeakersBeforeVote: 2,
		RecordNamesInVotes:    false,
		AllowSpecialMotions:   true,
	}
}

// Committee is the root document for membership, settings and the speaker queue
type Committee struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Settings    *CommitteeSettings `bson:"settings,omitempty" json:"settings,omitempty"`
	Members     []Member           `bson:"members" json:"members"`
	HandRaises  []HandRaise        `bson:"handRaises" json:"handRaises"`
	CreatedBy   primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	Version     int64              `bson:"version" json:"version"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EffectiveSettings returns the stored settings or the defaults for legacy documents
func (c *Committee) EffectiveSettings() CommitteeSettings {
	if c.Settings == nil {
		return DefaultSettings()
	}
	return *c.Settings
}

// VisibleTo reports whether the committee passes the membership visibility
// filter: creator, member by user reference, or member by email.
func (c *Committee) VisibleTo(who Identity) bool {
	if !who.Authenticated() {
		return false
	}
	if c.CreatedBy == who.ID {
		return true
	}
	for _, m := range c.Members {
		if m.UserID != nil && *m.UserID == who.ID {
			return true
		}
		if m.Email != "" && who.Email != "" && strings.EqualFold(m.Email, who.Email) {
			return true
		}
	}
	return false
}

// Member is a committee seat. UserID is nil for invitees who have not registered.
type Member struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	UserID      *primitive.ObjectID `bson:"user,omitempty" json:"userId,omitempty"`
	Name        string              `bson:"name" json:"name"`
	Email       string              `bson:"email,omitempty" json:"email,omitempty"`
	Role        Role                `bson:"role" json:"role"`
	Permissions []Permission        `bson:"permissions" json:"permissions"`
}

// HandRaise is a speaker queue entry
type HandRaise struct {
	ID        primitive.ObjectID  `bson:"_id" json:"id"`
	UserID    *primitive.ObjectID `bson:"user,omitempty" json:"userId,omitempty"`
	Name      string              `bson:"createdByName" json:"createdByName"`
	Email     string              `bson:"createdByEmail,omitempty" json:"createdByEmail,omitempty"`
	Stance    Stance              `bson:"stance" json:"stance"`
	Note      string              `bson:"note" json:"note"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// MarshalJSON keeps empty collections as [] instead of null
func (c Committee) MarshalJSON() ([]byte, error) {
	type Alias Committee
	if c.Members == nil {
		c.Members = []Member{}
	}
	if c.HandRaises == nil {
		c.HandRaises = []HandRaise{}
	}
	return json.Marshal(&struct {
		ID        string `json:"id,omitempty"`
		CreatedBy string `json:"createdBy"`
		*Alias
	}{
		ID:        c.ID.Hex(),
		CreatedBy: c.CreatedBy.Hex(),
		Alias:     (*Alias)(&c),
	})
}
