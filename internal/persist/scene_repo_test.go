package persist

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/esengine/microes-sub003/internal/config"
	"github.com/esengine/microes-sub003/internal/scene"
)

const doc = `
name: repo-test
entities:
  - id: 1
    name: root
  - id: 2
    parent: 1
`

func TestDigest(t *testing.T) {
	a := Digest([]byte("name: a\n"))
	require.Len(t, a, 32)
	require.Equal(t, a, Digest([]byte("name: a\n")))
	require.NotEqual(t, a, Digest([]byte("name: b\n")))
}

// openTestDB connects to ESRT_TEST_DSN and skips when it is unset.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("ESRT_TEST_DSN")
	if dsn == "" {
		t.Skip("ESRT_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := NewDB(ctx, config.DatabaseConfig{DSN: dsn, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute}, nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	_, err = RunMigrations(ctx, db.Pool, nil)
	require.NoError(t, err)
	return db
}

func TestSceneRepo(t *testing.T) {
	db := openTestDB(t)
	repo := NewSceneRepo(db)
	ctx := context.Background()

	d, err := scene.Load(strings.NewReader(doc))
	require.NoError(t, err)
	_ = repo.Delete(ctx, d.Name)
	t.Cleanup(func() { _ = repo.Delete(ctx, d.Name) })

	saved, err := repo.Save(ctx, d)
	require.NoError(t, err)
	require.True(t, saved)

	saved, err = repo.Save(ctx, d)
	require.NoError(t, err)
	require.False(t, saved, "identical body is not rewritten")

	d.Entities[1].Name = "child"
	saved, err = repo.Save(ctx, d)
	require.NoError(t, err)
	require.True(t, saved)

	got, err := repo.Load(ctx, d.Name)
	require.NoError(t, err)
	require.Equal(t, "child", got.Entities[1].Name)

	rows, err := repo.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)

	_, err = repo.Load(ctx, "missing-scene")
	require.ErrorIs(t, err, ErrSceneNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "missing-scene"), ErrSceneNotFound)
}
