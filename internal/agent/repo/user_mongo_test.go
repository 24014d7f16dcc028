package repo

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hermitai/server/internal/agent/model"
	errx "github.com/hermitai/server/internal/core/error"
)

type fakeCollection struct {
	mu      sync.Mutex
	docs    map[any]bson.M
	failErr error
}

func newFakeCollection() *fakeCollection {
	return &fakeCollection{docs: map[any]bson.M{}}
}

func (f *fakeCollection) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) singleResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return fakeSingleResult{err: f.failErr}
	}
	doc, ok := f.docs[filter.(bson.M)["_id"]]
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	return fakeSingleResult{doc: doc}
}

func (f *fakeCollection) UpdateOne(_ context.Context, filter any, update any, _ ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	fm := filter.(bson.M)
	doc, ok := f.docs[fm["_id"]]
	if !ok {
		return &mongodriver.UpdateResult{}, nil
	}
	min := fm["credits"].(bson.M)["$gte"].(int)
	if doc["credits"].(int) < min {
		return &mongodriver.UpdateResult{MatchedCount: 0}, nil
	}
	inc := update.(bson.M)["$inc"].(bson.M)["credits"].(int)
	doc["credits"] = doc["credits"].(int) + inc
	return &mongodriver.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

type fakeSingleResult struct {
	doc bson.M
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	raw, err := bson.Marshal(r.doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, val)
}

func seedUser(fc *fakeCollection, credits int) string {
	oid := primitive.NewObjectID()
	fc.docs[oid] = bson.M{
		"_id":             oid,
		"username":        "ada",
		"email":           "ada@example.com",
		"roles":           bson.A{"user"},
		"isEmailVerified": true,
		"credits":         credits,
	}
	return oid.Hex()
}

func TestFindUserAndBalance(t *testing.T) {
	fc := newFakeCollection()
	id := seedUser(fc, 7)
	repo := newMongoUserRepository(fc)

	u, err := repo.FindUser(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, "ada", u.Username)
	require.Equal(t, []string{"user"}, u.Roles)
	require.True(t, u.IsEmailVerified)
	require.Equal(t, 7, u.Credits)

	bal, err := repo.ReadBalance(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, 7, bal)
}

func TestFindUserNotFound(t *testing.T) {
	repo := newMongoUserRepository(newFakeCollection())
	_, err := repo.FindUser(context.Background(), primitive.NewObjectID().Hex())
	require.ErrorIs(t, err, model.ErrUserNotFound)

	_, err = repo.ReadBalance(context.Background(), "not-an-object-id")
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestTryDeductIsConditional(t *testing.T) {
	fc := newFakeCollection()
	id := seedUser(fc, 1)
	repo := newMongoUserRepository(fc)

	ok, err := repo.TryDeduct(context.Background(), id, 1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.TryDeduct(context.Background(), id, 1)
	require.NoError(t, err)
	require.False(t, ok)

	bal, err := repo.ReadBalance(context.Background(), id)
	require.NoError(t, err)
	require.Zero(t, bal)
}

func TestTryDeductConcurrentNeverOverdraws(t *testing.T) {
	fc := newFakeCollection()
	id := seedUser(fc, 5)
	repo := newMongoUserRepository(fc)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.TryDeduct(context.Background(), id, 1)
			if err == nil && ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, succeeded)
	bal, err := repo.ReadBalance(context.Background(), id)
	require.NoError(t, err)
	require.Zero(t, bal)
}

func TestMongoErrorsAreWrapped(t *testing.T) {
	fc := newFakeCollection()
	fc.failErr = errors.New("connection reset")
	repo := newMongoUserRepository(fc)

	_, err := repo.TryDeduct(context.Background(), primitive.NewObjectID().Hex(), 1)
	require.Error(t, err)
	require.Equal(t, 502, errx.StatusOf(err))

	_, err = repo.FindUser(context.Background(), primitive.NewObjectID().Hex())
	require.Equal(t, 502, errx.StatusOf(err))
}
