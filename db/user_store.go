package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"committeehub/internal/storage"
	"committeehub/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type UserStore struct {
	collection *mongo.Collection
	now        func() time.Time
}

var _ storage.UserStore = (*UserStore)(nil)

func NewUserStore(database *mongo.Database) *UserStore {
	return &UserStore{collection: database.Collection(UsersCollection), now: time.Now}
}

func (s *UserStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *UserStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *UserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *UserStore) UpdateUserName(ctx context.Context, id primitive.ObjectID, name string) (*models.User, error) {
	update := bson.M{"$set": bson.M{"name": name, "updatedAt": s.now()}}
	var user models.User
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, afterUpdate()).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}
