package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"committeehub/internal/storage"
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// voteAttempts bounds the replace-then-push loop for a single ballot
const voteAttempts = 5

type MotionStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ storage.MotionStore = (*MotionStore)(nil)

func NewMotionStore(database *mongo.Database) *MotionStore {
	return &MotionStore{collection: database.Collection(MotionsCollection), now: time.Now}
}

func (s *MotionStore) InsertMotion(ctx context.Context, motion *models.Motion) error {
	if motion.ID.IsZero() {
		motion.ID = primitive.NewObjectID()
	}
	if _, err := s.collection.InsertOne(ctx, motion); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert motion: %w", err)
	}
	return nil
}

func (s *MotionStore) FindMotion(ctx context.Context, id primitive.ObjectID) (*models.Motion, error) {
	var motion models.Motion
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&motion); err != nil {
		return nil, translate(err)
	}
	return &motion, nil
}

func (s *MotionStore) ListMotions(ctx context.Context, committeeID primitive.ObjectID) ([]models.Motion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.collection.Find(ctx, bson.M{"committee": committeeID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list motions: %w", err)
	}
	defer cursor.Close(ctx)

	motions := make([]models.Motion, 0)
	if err := cursor.All(ctx, &motions); err != nil {
		return nil, fmt.Errorf("failed to decode motions: %w", err)
	}
	return motions, nil
}

func (s *MotionStore) update(ctx context.Context, filter, update bson.M) (*models.Motion, error) {
	var motion models.Motion
	if err := s.collection.FindOneAndUpdate(ctx, filter, update, afterUpdate()).Decode(&motion); err != nil {
		return nil, err
	}
	return &motion, nil
}

func (s *MotionStore) PushDiscussion(ctx context.Context, id primitive.ObjectID, entry models.DiscussionEntry) (*models.Motion, error) {
	motion, err := s.update(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"discussion": entry},
		"$set":  bson.M{"updatedAt": s.now()},
	})
	if err != nil {
		return nil, translate(err)
	}
	return motion, nil
}

// UpsertVote overwrites the voter's ballot through the positional operator,
// or pushes a new one guarded by $ne so concurrent first votes from the same
// voter cannot both be appended.
func (s *MotionStore) UpsertVote(ctx context.Context, id primitive.ObjectID, vote models.Vote) (*models.Motion, error) {
	for attempt := 0; attempt < voteAttempts; attempt++ {
		motion, err := s.update(ctx, bson.M{"_id": id, "votes.createdBy": vote.VoterID}, bson.M{
			"$set": bson.M{"votes.$": vote, "updatedAt": s.now()},
		})
		if err == nil {
			return motion, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to replace vote: %w", err)
		}

		motion, err = s.update(ctx, bson.M{"_id": id, "votes.createdBy": bson.M{"$ne": vote.VoterID}}, bson.M{
			"$push": bson.M{"votes": vote},
			"$set":  bson.M{"updatedAt": s.now()},
		})
		if err == nil {
			return motion, nil
		}
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to append vote: %w", err)
		}

		n, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return nil, fmt.Errorf("failed to check motion: %w", err)
		}
		if n == 0 {
			return nil, storage.ErrNotFound
		}
	}
	return nil, storage.ErrVersionConflict
}

func (s *MotionStore) SetDecision(ctx context.Context, id primitive.ObjectID, record models.DecisionRecord) (*models.Motion, error) {
	motion, err := s.update(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"decisionRecord": record,
			"status":         record.Outcome,
			"updatedAt":      s.now(),
		},
	})
	if err != nil {
		return nil, translate(err)
	}
	return motion, nil
}

func (s *MotionStore) DeleteCommitteeMotions(ctx context.Context, committeeID primitive.ObjectID) (int64, error) {
	result, err := s.collection.DeleteMany(ctx, bson.M{"committee": committeeID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete motions: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MotionStore) RenameAuthor(ctx context.Context, userID primitive.ObjectID, name string) error {
	if _, err := s.collection.UpdateMany(ctx,
		bson.M{"createdBy": userID},
		bson.M{"$set": bson.M{"createdByName": name}},
	); err != nil {
		return fmt.Errorf("failed to rename motion authors: %w", err)
	}
	if _, err := s.collection.UpdateMany(ctx,
		bson.M{"decisionRecord.recordedBy": userID},
		bson.M{"$set": bson.M{"decisionRecord.recordedByName": name}},
	); err != nil {
		return fmt.Errorf("failed to rename decision recorders: %w", err)
	}

	for _, field := range []string{"discussion", "votes"} {
		opts := options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{bson.M{"e.createdBy": userID}},
		})
		if _, err := s.collection.UpdateMany(ctx,
			bson.M{field + ".createdBy": userID},
			bson.M{"$set": bson.M{field + ".$[e].createdByName": name}},
			opts,
		); err != nil {
			return fmt.Errorf("failed to rename %s authors: %w", field, err)
		}
	}
	return nil
}
