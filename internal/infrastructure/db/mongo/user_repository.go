package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/carelink/portal-auth/internal/core/domain"
	"github.com/carelink/portal-auth/internal/core/ports"
)

const collectionUsers = "users"

// UserRepository implements ports.UserRepository using MongoDB.
type UserRepository struct {
	col *mongo.Collection
	now func() time.Time
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		col: db.Collection(collectionUsers),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type mongoUser struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Email         string             `bson:"email"`
	PasswordHash  string             `bson:"password_hash,omitempty"`
	EmailVerified bool               `bson:"email_verified"`
	AppMetadata   bson.M             `bson:"app_metadata,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

// Create inserts user and returns the stored record with its generated ID.
func (r *UserRepository) Create(ctx context.Context, user *ports.StoredUser) (*ports.StoredUser, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	now := r.now()
	doc := mongoUser{
		ID:            primitive.NewObjectID(),
		Email:         user.Email,
		PasswordHash:  user.PasswordHash,
		EmailVerified: user.EmailVerified,
		AppMetadata:   bson.M(user.AppMetadata),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return doc.toStored(), nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*ports.StoredUser, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*ports.StoredUser, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// UpdateMetadata merges patch into app_metadata in a single atomic update.
// Keys with nil values are unset. The unlessSet guard is part of the update
// filter, so concurrent writers cannot both pass it.
func (r *UserRepository) UpdateMetadata(ctx context.Context, id string, patch map[string]any, unlessSet string) (*ports.StoredUser, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := metadataUpdate(patch, r.now())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var mu mongoUser
	err = r.col.FindOneAndUpdate(ctx, metadataFilter(oid, unlessSet), update, opts).Decode(&mu)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments) && unlessSet != "":
		n, cerr := r.col.CountDocuments(ctx, bson.M{"_id": oid})
		if cerr != nil {
			return nil, fmt.Errorf("update user metadata: %w", cerr)
		}
		if n > 0 {
			return nil, domain.ErrMetadataConflict
		}
		return nil, domain.ErrUserNotFound
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, domain.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("update user metadata: %w", err)
	}
	return mu.toStored(), nil
}

func metadataFilter(oid primitive.ObjectID, unlessSet string) bson.M {
	filter := bson.M{"_id": oid}
	if unlessSet != "" {
		filter["app_metadata."+unlessSet] = bson.M{"$exists": false}
	}
	return filter
}

func (r *UserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrUserNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"email_verified": true, "updated_at": r.now()},
	})
	if err != nil {
		return fmt.Errorf("verify user email: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// EnsureIndexes creates the unique email index on the users collection.
func (r *UserRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*ports.StoredUser, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var mu mongoUser
	if err := r.col.FindOne(ctx, filter).Decode(&mu); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return mu.toStored(), nil
}

// metadataUpdate turns a metadata patch into dotted $set/$unset operators so
// that unrelated app_metadata keys survive the write.
func metadataUpdate(patch map[string]any, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	unset := bson.M{}
	for k, v := range patch {
		path := "app_metadata." + k
		if v == nil {
			unset[path] = ""
			continue
		}
		set[path] = v
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

func (mu *mongoUser) toStored() *ports.StoredUser {
	md := make(map[string]any, len(mu.AppMetadata))
	for k, v := range mu.AppMetadata {
		md[k] = v
	}
	return &ports.StoredUser{
		ID:            mu.ID.Hex(),
		Email:         mu.Email,
		PasswordHash:  mu.PasswordHash,
		EmailVerified: mu.EmailVerified,
		AppMetadata:   md,
		CreatedAt:     mu.CreatedAt.UTC(),
		UpdatedAt:     mu.UpdatedAt.UTC(),
	}
}
