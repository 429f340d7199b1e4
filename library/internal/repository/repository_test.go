package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/config"
)

func TestNewRepository_UnknownDriver(t *testing.T) {
	t.Parallel()
	repo, err := NewRepository(context.Background(), config.Storage{Driver: "sqlite"}, zap.NewNop())
	require.Nil(t, repo)
	require.EqualError(t, err, `unknown storage driver "sqlite"`)
}
