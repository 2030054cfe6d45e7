// Package storage declares the persistence contracts the committee services
// depend on. The Mongo implementation lives in db, the in-memory one in
// internal/memstore.
package storage

import (
	"context"
	"errors"

	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a document does not exist or is not visible
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when an optimistic write lost a race
	ErrVersionConflict = errors.New("document version conflict")
	// ErrDuplicate is returned when a unique key already exists
	ErrDuplicate = errors.New("duplicate document")
)

// CommitteeStore persists committees and their embedded members and hand raises.
type CommitteeStore interface {
	InsertCommittee(ctx context.Context, committee *models.Committee) error
	// FindVisibleCommittee returns the committee only if who passes the
	// visibility filter (creator, member by reference, member by email).
	FindVisibleCommittee(ctx context.Context, id primitive.ObjectID, who models.Identity) (*models.Committee, error)
	// ListVisibleCommittees returns visible committees, most recently updated first.
	ListVisibleCommittees(ctx context.Context, who models.Identity) ([]models.Committee, error)
	// ReplaceMembers writes the member list if the stored version still equals
	// version, incrementing it. Otherwise it returns ErrVersionConflict.
	ReplaceMembers(ctx context.Context, id primitive.ObjectID, version int64, members []models.Member) (*models.Committee, error)
	SetSettings(ctx context.Context, id primitive.ObjectID, settings models.CommitteeSettings) (*models.Committee, error)
	// UpsertHandRaise replaces the caller's existing entry or appends a new one.
	UpsertHandRaise(ctx context.Context, id primitive.ObjectID, raise models.HandRaise) (*models.Committee, error)
	RemoveHandRaise(ctx context.Context, id, handID primitive.ObjectID) (*models.Committee, error)
	DeleteCommittee(ctx context.Context, id primitive.ObjectID) error
	// RenameMemberRecords rewrites the display name on member records and
	// hand raises that belong to who.
	RenameMemberRecords(ctx context.Context, who models.Identity, name string) error
}

// MotionStore persists motions. Sub-document writes are atomic per motion.
type MotionStore interface {
	InsertMotion(ctx context.Context, motion *models.Motion) error
	FindMotion(ctx context.Context, id primitive.ObjectID) (*models.Motion, error)
	// ListMotions returns the committee's motions, newest first.
	ListMotions(ctx context.Context, committeeID primitive.ObjectID) ([]models.Motion, error)
	PushDiscussion(ctx context.Context, id primitive.ObjectID, entry models.DiscussionEntry) (*models.Motion, error)
	// UpsertVote replaces the voter's existing ballot in place or appends it.
	UpsertVote(ctx context.Context, id primitive.ObjectID, vote models.Vote) (*models.Motion, error)
	// SetDecision writes the record and sets status to record.Outcome in one update.
	SetDecision(ctx context.Context, id primitive.ObjectID, record models.DecisionRecord) (*models.Motion, error)
	DeleteCommitteeMotions(ctx context.Context, committeeID primitive.ObjectID) (int64, error)
	// RenameAuthor rewrites authorship names for motions, discussion
	// entries, votes and decision records created by userID.
	RenameAuthor(ctx context.Context, userID primitive.ObjectID, name string) error
}

// UserStore persists registered accounts. Emails are stored lowercased.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserName(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error)
}
