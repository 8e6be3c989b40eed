package repository

import (
	"context"
	"testing"

	"flight-alert-service/internal/domain/entity"
	"flight-alert-service/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationRepository(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormLocationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, []*entity.Location{
		{Code: "szx", Name: "Shenzhen", Domestic: true},
		{Code: "BJS", Name: "Beijing", Domestic: true},
		{Code: "TYO", Name: "Tokyo", Domestic: false},
	}))

	loc, err := repo.GetByCode(ctx, "SZX")
	require.NoError(t, err)
	assert.Equal(t, "Shenzhen", loc.Name)
	assert.True(t, loc.Domestic)

	_, err = repo.GetByCode(ctx, "XXX")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "BJS", all[0].Code)

	eligible, err := repo.EligibleDestinations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BJS", "SZX"}, eligible)

	names := entity.NewLocationNames(all)
	assert.Equal(t, "Tokyo", names.Name("TYO"))
	assert.Equal(t, "HKG", names.Name("HKG"))
}

func TestLocationRepository_ReplaceAllSwapsContents(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormLocationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, []*entity.Location{{Code: "SZX", Name: "Shenzhen", Domestic: true}}))
	require.NoError(t, repo.ReplaceAll(ctx, []*entity.Location{{Code: "CAN", Name: "Guangzhou", Domestic: true}}))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "CAN", all[0].Code)
}

func TestLocationRepository_ReplaceAllRejectsBadInput(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewGormLocationRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.ReplaceAll(ctx, []*entity.Location{{Code: "SZX", Name: "Shenzhen"}}))

	err := repo.ReplaceAll(ctx, []*entity.Location{{Code: "SZX"}, {Code: "szx"}})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	err = repo.ReplaceAll(ctx, []*entity.Location{{Code: "SHENZHEN"}})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "rejected input must leave the table untouched")
}
