package players

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craftmart/craftmart-backend/pkg/db/dbtest"
	pkgerrors "github.com/craftmart/craftmart-backend/pkg/errors"
)

func TestEnsureCreatesOnceCaseInsensitive(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	first, err := repo.Ensure(ctx, "Notch")
	require.NoError(t, err)
	second, err := repo.Ensure(ctx, "notch")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Notch", second.Username)
}

func TestEnsureRejectsInvalidNames(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	for _, name := range []string{"", "ab", "this_name_is_far_too_long", "bad-name"} {
		_, err := repo.Ensure(context.Background(), name)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}
