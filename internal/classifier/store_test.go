package classifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insureguard/risk-api/internal/classifier"
)

func trainedArtifact(t *testing.T, at time.Time) *classifier.Artifact {
	t.Helper()
	cfg := classifier.DefaultTrainingConfig()
	cfg.Now = func() time.Time { return at }
	cfg.Strategies = []classifier.Strategy{classifier.NewLogisticRegression()}
	a, err := classifier.Train(context.Background(), syntheticDataset(80, 0.25, 4), cfg)
	require.NoError(t, err)
	return a
}

func assertSameArtifact(t *testing.T, want, got *classifier.Artifact) {
	t.Helper()
	assert.Equal(t, want.Version, got.Version)
	assert.Equal(t, want.Cutoff, got.Cutoff)
	assert.Equal(t, want.ModelKind, got.ModelKind)
	assert.True(t, want.TrainedAt.Equal(got.TrainedAt))
	assert.Equal(t, want.Model.PredictProba(fraudLike()), got.Model.PredictProba(fraudLike()))
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s, err := classifier.NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Latest(ctx)
	assert.ErrorIs(t, err, classifier.ErrNoArtifact)

	first := trainedArtifact(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	second := trainedArtifact(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, first))
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assertSameArtifact(t, second, got)

	versions, err := s.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Version, second.Version}, versions)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	s := classifier.NewRedisStore(client, "")

	_, err = s.Latest(ctx)
	assert.ErrorIs(t, err, classifier.ErrNoArtifact)

	first := trainedArtifact(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	second := trainedArtifact(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Save(ctx, second))
	require.NoError(t, s.Save(ctx, first))

	// The latest pointer follows the most recent save.
	got, err := s.Latest(ctx)
	require.NoError(t, err)
	assertSameArtifact(t, first, got)

	versions, err := s.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Version, second.Version}, versions)

	assert.True(t, mr.Exists("insureguard:model:latest"))
	assert.True(t, mr.Exists("insureguard:model:artifact:"+second.Version))
}
