package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestAppErrorClassification(t *testing.T) {
	cause := fmt.Errorf("%w: bad json", ErrDecisionParse)
	err := NewCoded(cause, http.StatusInternalServerError, CodeDecisionInvalid, "sorry")

	require.ErrorIs(t, err, ErrDecisionParse)
	require.NotErrorIs(t, err, ErrSynthesisBackend)
	require.Equal(t, http.StatusInternalServerError, StatusOf(err))
	require.Equal(t, CodeDecisionInvalid, CodeOf(err))
	require.Equal(t, "sorry: tool decision parse failed: bad json", err.Error())

	wrapped := fmt.Errorf("graph: %w", err)
	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	require.Equal(t, CodeDecisionInvalid, appErr.Code)
}

func TestStatusOfPlainError(t *testing.T) {
	require.Equal(t, http.StatusOK, StatusOf(nil))
	require.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom")))
	require.Empty(t, CodeOf(errors.New("boom")))
}

func TestWrapStores(t *testing.T) {
	require.NoError(t, WrapRedis(nil))
	require.NoError(t, WrapMongo(nil))

	require.Equal(t, http.StatusNotFound, StatusOf(WrapRedis(redis.Nil)))
	require.Equal(t, http.StatusBadGateway, StatusOf(WrapRedis(errors.New("conn refused"))))
	require.ErrorIs(t, WrapRedis(redis.Nil), redis.Nil)

	require.Equal(t, http.StatusNotFound, StatusOf(WrapMongo(mongo.ErrNoDocuments)))
	require.Equal(t, http.StatusBadGateway, StatusOf(WrapMongo(errors.New("timeout"))))
}
