package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
	logx "github.com/hermitai/server/pkg/logger"
)

const DefaultUsersCollection = "users"

type userDocument struct {
	ID              any      `bson:"_id"`
	Username        string   `bson:"username"`
	Email           string   `bson:"email"`
	Roles           []string `bson:"roles"`
	IsEmailVerified bool     `bson:"isEmailVerified"`
	Credits         int      `bson:"credits"`
}

func (d userDocument) toUser() *model.User {
	u := &model.User{
		Username:        d.Username,
		Email:           d.Email,
		Roles:           d.Roles,
		IsEmailVerified: d.IsEmailVerified,
		Credits:         d.Credits,
	}
	switch id := d.ID.(type) {
	case primitive.ObjectID:
		u.ID = id.Hex()
	case string:
		u.ID = id
	default:
		u.ID = fmt.Sprint(id)
	}
	return u
}

// MongoUserRepository is the credit ledger backed by the users collection.
type MongoUserRepository struct {
	users collection
}

func NewMongoUserRepository(db *mongodriver.Database, collectionName string) *MongoUserRepository {
	if collectionName == "" {
		collectionName = DefaultUsersCollection
	}
	return newMongoUserRepository(mongoCollection{coll: db.Collection(collectionName)})
}

func newMongoUserRepository(c collection) *MongoUserRepository {
	return &MongoUserRepository{users: c}
}

// idFilter matches ObjectID keys and falls back to string keys.
func idFilter(userID string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(userID); err == nil {
		return bson.M{"_id": oid}
	}
	return bson.M{"_id": userID}
}

// TryDeduct subtracts cost in a single conditional update so concurrent
// requests can never drive the balance negative.
func (r *MongoUserRepository) TryDeduct(ctx context.Context, userID string, cost int) (bool, error) {
	filter := idFilter(userID)
	filter["credits"] = bson.M{"$gte": cost}
	update := bson.M{"$inc": bson.M{"credits": -cost}}

	res, err := r.users.UpdateOne(ctx, filter, update)
	if err != nil {
		logx.Error().Err(err).Str("user_id", userID).Int("cost", cost).Msg("failed to deduct credits")
		return false, errx.WrapMongo(err)
	}
	ok := res != nil && res.ModifiedCount == 1
	if !ok {
		logx.Warn().Str("user_id", userID).Int("cost", cost).Msg("credit deduction matched no document")
	}
	return ok, nil
}

func (r *MongoUserRepository) FindUser(ctx context.Context, userID string) (*model.User, error) {
	var doc userDocument
	opts := options.FindOne().SetProjection(bson.M{"password": 0})
	if err := r.users.FindOne(ctx, idFilter(userID), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, model.ErrUserNotFound
		}
		logx.Error().Err(err).Str("user_id", userID).Msg("failed to load user from mongo")
		return nil, errx.WrapMongo(err)
	}
	return doc.toUser(), nil
}

func (r *MongoUserRepository) ReadBalance(ctx context.Context, userID string) (int, error) {
	var doc struct {
		Credits int `bson:"credits"`
	}
	opts := options.FindOne().SetProjection(bson.M{"credits": 1})
	if err := r.users.FindOne(ctx, idFilter(userID), opts).Decode(&doc); err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return 0, model.ErrUserNotFound
		}
		logx.Error().Err(err).Str("user_id", userID).Msg("failed to read credit balance")
		return 0, errx.WrapMongo(err)
	}
	return doc.Credits, nil
}

var _ model.CreditLedger = (*MongoUserRepository)(nil)

type collection interface {
	FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult
	UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error)
}

type singleResult interface {
	Decode(val any) error
}

type mongoCollection struct {
	coll *mongodriver.Collection
}

func (c mongoCollection) FindOne(ctx context.Context, filter any, opts ...*options.FindOneOptions) singleResult {
	return c.coll.FindOne(ctx, filter, opts...)
}

func (c mongoCollection) UpdateOne(ctx context.Context, filter any, update any, opts ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return c.coll.UpdateOne(ctx, filter, update, opts...)
}
