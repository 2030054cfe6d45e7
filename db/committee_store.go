package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"committeehub/internal/storage"
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// handRaiseAttempts bounds the update-then-push loop for speaker queue entries
const handRaiseAttempts = 3

// CommitteeStore keeps committees as single documents with embedded members
// and hand raises.
type CommitteeStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ storage.CommitteeStore = (*CommitteeStore)(nil)

func NewCommitteeStore(database *mongo.Database) *CommitteeStore {
	return &CommitteeStore{collection: database.Collection(CommitteesCollection), now: time.Now}
}

// visibilityFilter matches committees the caller created or sits on, by
// account reference or by email.
func visibilityFilter(who models.Identity) bson.M {
	or := bson.A{
		bson.M{"createdBy": who.ID},
		bson.M{"members.user": who.ID},
	}
	if who.Email != "" {
		or = append(or, bson.M{"members.email": primitive.Regex{
			Pattern: "^" + regexp.QuoteMeta(who.Email) + "$",
			Options: "i",
		}})
	}
	return bson.M{"$or": or}
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

func (s *CommitteeStore) InsertCommittee(ctx context.Context, committee *models.Committee) error {
	if committee.ID.IsZero() {
		committee.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, committee); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert committee: %w", err)
	}
	return nil
}

func (s *CommitteeStore) FindVisibleCommittee(ctx context.Context, id primitive.ObjectID, who models.Identity) (*models.Committee, error) {
	if !who.Authenticated() {
		return nil, storage.ErrNotFound
	}
	filter := bson.M{"$and": bson.A{bson.M{"_id": id}, visibilityFilter(who)}}
	var committee models.Committee
	if err := s.collection.FindOne(ctx, filter).Decode(&committee); err != nil {
		return nil, translate(err)
	}
	return &committee, nil
}

func (s *CommitteeStore) ListVisibleCommittees(ctx context.Context, who models.Identity) ([]models.Committee, error) {
	if !who.Authenticated() {
		return []models.Committee{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cursor, err := s.collection.Find(ctx, visibilityFilter(who), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list committees: %w", err)
	}
	defer cursor.Close(ctx)

	committees := make([]models.Committee, 0)
	if err := cursor.All(ctx, &committees); err != nil {
		return nil, fmt.Errorf("failed to decode committees: %w", err)
	}
	return committees, nil
}

// ReplaceMembers is a compare-and-set on version. Documents written before
// versioning existed have no version field and count as version 0.
func (s *CommitteeStore) ReplaceMembers(ctx context.Context, id primitive.ObjectID, version int64, members []models.Member) (*models.Committee, error) {
	filter := bson.M{"_id": id, "version": version}
	if version == 0 {
		filter = bson.M{"_id": id, "$or": bson.A{
			bson.M{"version": 0},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}
	update := bson.M{
		"$set": bson.M{"members": members, "updatedAt": s.now()},
		"$inc": bson.M{"version": 1},
	}

	var committee models.Committee
	err := s.collection.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&committee)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := s.collection.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return nil, fmt.Errorf("failed to check committee: %w", countErr)
		}
		if n == 0 {
			return nil, storage.ErrNotFound
		}
		return nil, storage.ErrVersionConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update members: %w", err)
	}
	return &committee, nil
}

func (s *CommitteeStore) SetSettings(ctx context.Context, id primitive.ObjectID, settings models.CommitteeSettings) (*models.Committee, error) {
	update := bson.M{"$set": bson.M{"settings": settings, "updatedAt": s.now()}}
	var committee models.Committee
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&committee); err != nil {
		return nil, translate(err)
	}
	return &committee, nil
}

// UpsertHandRaise replaces the caller's entry in place when there is one and
// otherwise pushes, guarded so two racing pushes cannot both land.
func (s *CommitteeStore) UpsertHandRaise(ctx context.Context, id primitive.ObjectID, raise models.HandRaise) (*models.Committee, error) {
	var committee models.Committee
	if raise.UserID == nil {
		update := bson.M{"$push": bson.M{"handRaises": raise}, "$set": bson.M{"updatedAt": s.now()}}
		if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&committee); err != nil {
			return nil, translate(err)
		}
		return &committee, nil
	}

	for attempt := 0; attempt < handRaiseAttempts; attempt++ {
		replace := bson.M{"$set": bson.M{"handRaises.$": raise, "updatedAt": s.now()}}
		err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "handRaises.user": raise.UserID}, replace, afterUpdate()).Decode(&committee)
		if err == nil {
			return &committee, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to update hand raise: %w", err)
		}

		push := bson.M{"$push": bson.M{"handRaises": raise}, "$set": bson.M{"updatedAt": s.now()}}
		filter := bson.M{"_id": id, "handRaises.user": bson.M{"$ne": raise.UserID}}
		err = s.collection.FindOneAndUpdate(ctx, filter, push, afterUpdate()).Decode(&committee)
		if err == nil {
			return &committee, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to push hand raise: %w", err)
		}
		if n, err := s.collection.CountDocuments(ctx, bson.M{"_id": id}); err != nil {
			return nil, fmt.Errorf("failed to check committee: %w", err)
		} else if n == 0 {
			return nil, storage.ErrNotFound
		}
	}
	return nil, storage.ErrVersionConflict
}

func (s *CommitteeStore) RemoveHandRaise(ctx context.Context, id, handID primitive.ObjectID) (*models.Committee, error) {
	update := bson.M{
		"$pull": bson.M{"handRaises": bson.M{"_id": handID}},
		"$set":  bson.M{"updatedAt": s.now()},
	}
	var committee models.Committee
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&committee); err != nil {
		return nil, translate(err)
	}
	return &committee, nil
}

func (s *CommitteeStore) DeleteCommittee(ctx context.Context, id primitive.ObjectID) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete committee: %w", err)
	}
	if result.DeletedCount == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// RenameMemberRecords rewrites the copied display name on seats and queue
// entries. Seats are matched by account and, for invitees, by email.
func (s *CommitteeStore) RenameMemberRecords(ctx context.Context, who models.Identity, name string) error {
	type rename struct {
		filter      bson.M
		field       string
		arrayFilter bson.M
	}
	renames := []rename{
		{bson.M{"members.user": who.ID}, "members.$[m].name", bson.M{"m.user": who.ID}},
		{bson.M{"handRaises.user": who.ID}, "handRaises.$[h].createdByName", bson.M{"h.user": who.ID}},
	}
	if who.Email != "" {
		renames = append(renames, rename{bson.M{"members.email": who.Email}, "members.$[m].name", bson.M{"m.email": who.Email}})
	}

	for _, r := range renames {
		opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: []interface{}{r.arrayFilter}})
		if _, err := s.collection.UpdateMany(ctx, r.filter, bson.M{"$set": bson.M{r.field: name}}, opts); err != nil {
			return fmt.Errorf("failed to rename %s: %w", r.field, err)
		}
	}
	return nil
}

// translate maps driver misses onto the storage error
func translate(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return storage.ErrNotFound
	}
	return err
}
