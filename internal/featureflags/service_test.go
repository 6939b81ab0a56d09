package featureflags_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwise/tripwise/internal/featureflags"
)

// countingRepo counts reads and can be switched into a failing mode.
type countingRepo struct {
	*featureflags.InMemoryRepository
	reads atomic.Int32
	fail  error
}

func (r *countingRepo) GetFlag(ctx context.Context, key string) (*featureflags.Flag, error) {
	r.reads.Add(1)
	if r.fail != nil {
		return nil, r.fail
	}
	return r.InMemoryRepository.GetFlag(ctx, key)
}

func (r *countingRepo) GetAllFlags(ctx context.Context) (map[string]*featureflags.Flag, error) {
	r.reads.Add(1)
	if r.fail != nil {
		return nil, r.fail
	}
	return r.InMemoryRepository.GetAllFlags(ctx)
}

func (r *countingRepo) SetFlags(ctx context.Context, flags []*featureflags.Flag) error {
	if r.fail != nil {
		return r.fail
	}
	return r.InMemoryRepository.SetFlags(ctx, flags)
}

func newService(repo featureflags.Repository) *featureflags.Service {
	return featureflags.NewService(featureflags.ServiceConfig{
		Repository: repo,
		Logger:     zerolog.Nop(),
	})
}

func TestService_Defaults(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewInMemoryRepository())

	assert.False(t, svc.IsDistanceMatrixDisabled(ctx))
	assert.False(t, svc.IsTransportOptionsDisabled(ctx))
	assert.False(t, svc.IsWeatherForecastDisabled(ctx))
	assert.Equal(t, featureflags.DefaultMaxTransportLegs, svc.MaxTransportLegs(ctx))
	assert.Empty(t, svc.ActiveDegradations(ctx))

	assert.Nil(t, svc.GetFlag(ctx, "no_such_flag"))
	assert.False(t, svc.IsEnabled(ctx, "no_such_flag"))
}

func TestService_SetFlagsOverridesDefaults(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewInMemoryRepository())

	require.NoError(t, svc.SetFlags(ctx, []*featureflags.Flag{
		{Key: featureflags.FlagDisableWeatherForecast, Value: true},
		{Key: featureflags.FlagDisableDistanceMatrix, Value: true},
		{Key: featureflags.FlagMaxTransportLegs, Value: float64(0)},
	}))

	assert.True(t, svc.IsWeatherForecastDisabled(ctx))
	assert.True(t, svc.IsDistanceMatrixDisabled(ctx))
	assert.False(t, svc.IsTransportOptionsDisabled(ctx))
	assert.Equal(t, 0, svc.MaxTransportLegs(ctx))
	assert.Equal(t, []string{
		featureflags.FlagDisableDistanceMatrix,
		featureflags.FlagDisableWeatherForecast,
	}, svc.ActiveDegradations(ctx))

	flag := svc.GetFlag(ctx, featureflags.FlagDisableWeatherForecast)
	require.NotNil(t, flag)
	assert.False(t, flag.UpdatedAt.IsZero())
}

func TestService_MaxTransportLegsNegativeFallsBack(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagMaxTransportLegs: {Key: featureflags.FlagMaxTransportLegs, Value: float64(-2)},
	}))

	assert.Equal(t, featureflags.DefaultMaxTransportLegs, svc.MaxTransportLegs(ctx))
}

func TestService_CachesResolvedFlags(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{InMemoryRepository: featureflags.NewInMemoryRepository()}
	svc := newService(repo)

	svc.IsTransportOptionsDisabled(ctx)
	svc.IsTransportOptionsDisabled(ctx)
	assert.Equal(t, int32(1), repo.reads.Load(), "defaults are cached too")

	// A write behind the service's back stays invisible until invalidation.
	require.NoError(t, repo.InMemoryRepository.SetFlag(ctx, &featureflags.Flag{
		Key:   featureflags.FlagDisableTransportOptions,
		Value: true,
	}))
	assert.False(t, svc.IsTransportOptionsDisabled(ctx))

	svc.InvalidateCache()
	assert.True(t, svc.IsTransportOptionsDisabled(ctx))
	assert.Equal(t, int32(2), repo.reads.Load())
}

func TestService_ReturnedFlagsAreCopies(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewInMemoryRepository())

	flag := svc.GetFlag(ctx, featureflags.FlagDisableDistanceMatrix)
	require.NotNil(t, flag)
	flag.Value = true

	assert.False(t, svc.IsDistanceMatrixDisabled(ctx))
}

func TestService_StoreFailureUsesDefaults(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{
		InMemoryRepository: featureflags.NewInMemoryRepository(),
		fail:               errors.New("connection refused"),
	}
	svc := newService(repo)

	assert.False(t, svc.IsWeatherForecastDisabled(ctx))
	assert.False(t, svc.IsWeatherForecastDisabled(ctx))
	assert.Equal(t, int32(2), repo.reads.Load(), "failed lookups are not cached")

	all := svc.GetAllFlags(ctx)
	assert.Len(t, all, len(featureflags.Definitions()))

	err := svc.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDisableWeatherForecast, Value: true})
	require.ErrorIs(t, err, repo.fail)
}

func TestService_GetAllFlagsMergesOverrides(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewInMemoryRepositoryWithFlags(map[string]*featureflags.Flag{
		featureflags.FlagDisableTransportOptions: {Key: featureflags.FlagDisableTransportOptions, Value: true},
	}))

	all := svc.GetAllFlags(ctx)
	require.Len(t, all, 4)
	assert.Equal(t, true, all[featureflags.FlagDisableTransportOptions].Value)
	assert.Equal(t, false, all[featureflags.FlagDisableDistanceMatrix].Value)
	assert.Equal(t, float64(featureflags.DefaultMaxTransportLegs), all[featureflags.FlagMaxTransportLegs].Value)
}

func TestService_ResetFlag(t *testing.T) {
	ctx := context.Background()
	svc := newService(featureflags.NewInMemoryRepository())

	require.NoError(t, svc.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDisableDistanceMatrix, Value: true}))
	require.True(t, svc.IsDistanceMatrixDisabled(ctx))

	require.NoError(t, svc.ResetFlag(ctx, featureflags.FlagDisableDistanceMatrix))
	assert.False(t, svc.IsDistanceMatrixDisabled(ctx))

	// Resetting a flag that was never overridden is a no-op.
	require.NoError(t, svc.ResetFlag(ctx, featureflags.FlagMaxTransportLegs))

	err := svc.ResetFlag(ctx, "no_such_flag")
	assert.ErrorIs(t, err, featureflags.ErrUnknownFlag)
}

func TestFlagUpdate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		update  featureflags.FlagUpdate
		wantErr error
	}{
		{"bool flag", featureflags.FlagUpdate{Key: featureflags.FlagDisableDistanceMatrix, Value: true}, nil},
		{"bool flag given string", featureflags.FlagUpdate{Key: featureflags.FlagDisableWeatherForecast, Value: "yes"}, featureflags.ErrInvalidFlagValue},
		{"count", featureflags.FlagUpdate{Key: featureflags.FlagMaxTransportLegs, Value: float64(5)}, nil},
		{"count zero", featureflags.FlagUpdate{Key: featureflags.FlagMaxTransportLegs, Value: float64(0)}, nil},
		{"count negative", featureflags.FlagUpdate{Key: featureflags.FlagMaxTransportLegs, Value: float64(-1)}, featureflags.ErrInvalidFlagValue},
		{"count fractional", featureflags.FlagUpdate{Key: featureflags.FlagMaxTransportLegs, Value: 2.5}, featureflags.ErrInvalidFlagValue},
		{"count given bool", featureflags.FlagUpdate{Key: featureflags.FlagMaxTransportLegs, Value: true}, featureflags.ErrInvalidFlagValue},
		{"unknown key", featureflags.FlagUpdate{Key: "enable_teleport", Value: true}, featureflags.ErrUnknownFlag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.update.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFlag_Values(t *testing.T) {
	var nilFlag *featureflags.Flag
	assert.True(t, nilFlag.BoolValue(true))
	assert.Equal(t, 7, nilFlag.IntValue(7))

	assert.True(t, (&featureflags.Flag{Value: float64(1)}).BoolValue(false))
	assert.False(t, (&featureflags.Flag{Value: float64(0)}).BoolValue(true))
	assert.True(t, (&featureflags.Flag{Value: "on"}).BoolValue(true), "non-bool keeps the default")

	assert.Equal(t, 4, (&featureflags.Flag{Value: float64(4)}).IntValue(0))
	assert.Equal(t, 2, (&featureflags.Flag{Value: 2}).IntValue(0))
	assert.Equal(t, 9, (&featureflags.Flag{Value: "4"}).IntValue(9))
}

func TestDefinitions_MatchDefaultFlags(t *testing.T) {
	defaults := featureflags.DefaultFlags()
	defs := featureflags.Definitions()
	require.Len(t, defaults, len(defs))

	for _, d := range defs {
		flag, ok := defaults[d.Key]
		require.True(t, ok, d.Key)
		assert.Equal(t, d.Default, flag.Value, d.Key)
		assert.NoError(t, featureflags.FlagUpdate{Key: d.Key, Value: d.Default}.Validate(), "default of %s validates", d.Key)
		assert.NotEmpty(t, d.Description, d.Key)
	}
}

func TestInMemoryRepository_DeleteFlag(t *testing.T) {
	ctx := context.Background()
	repo := featureflags.NewInMemoryRepository()

	err := repo.DeleteFlag(ctx, featureflags.FlagDisableDistanceMatrix)
	assert.ErrorIs(t, err, featureflags.ErrFlagNotFound)

	require.NoError(t, repo.SetFlag(ctx, &featureflags.Flag{Key: featureflags.FlagDisableDistanceMatrix, Value: true}))
	require.NoError(t, repo.DeleteFlag(ctx, featureflags.FlagDisableDistanceMatrix))

	_, err = repo.GetFlag(ctx, featureflags.FlagDisableDistanceMatrix)
	assert.ErrorIs(t, err, featureflags.ErrFlagNotFound)
}
