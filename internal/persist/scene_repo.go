package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/esengine/microes-sub003/internal/core/app"
	"github.com/esengine/microes-sub003/internal/scene"
)

var ErrSceneNotFound = errors.New("scene not found")

// SceneRow is a stored scene without its body.
type SceneRow struct {
	Name      string
	Digest    []byte
	Entities  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type SceneRepo struct {
	db *DB
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db}
}

// Digest is the BLAKE2b-256 sum of a marshaled scene.
func Digest(body []byte) []byte {
	sum := blake2b.Sum256(body)
	return sum[:]
}

// Save upserts doc under its name. It reports false when the stored body
// already has the same digest and nothing was written.
func (r *SceneRepo) Save(ctx context.Context, doc *scene.Document) (bool, error) {
	if doc.Name == "" {
		return false, errors.New("save scene: empty name")
	}
	body, err := doc.Marshal()
	if err != nil {
		return false, err
	}
	digest := Digest(body)

	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO scenes (name, digest, body, entities)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE
		 SET digest = EXCLUDED.digest, body = EXCLUDED.body,
		     entities = EXCLUDED.entities, updated_at = now()
		 WHERE scenes.digest <> EXCLUDED.digest`,
		doc.Name, digest, string(body), len(doc.Entities),
	)
	if err != nil {
		return false, fmt.Errorf("save scene %s: %w", doc.Name, err)
	}
	saved := tag.RowsAffected() > 0
	r.db.log.Debug("scene save",
		zap.String("name", doc.Name), zap.Bool("written", saved), zap.Int("entities", len(doc.Entities)))
	return saved, nil
}

func (r *SceneRepo) Load(ctx context.Context, name string) (*scene.Document, error) {
	var body string
	var digest []byte
	err := r.db.Pool.QueryRow(ctx,
		`SELECT body, digest FROM scenes WHERE name = $1`, name,
	).Scan(&body, &digest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load scene %s: %w", name, ErrSceneNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", name, err)
	}
	if !bytes.Equal(Digest([]byte(body)), digest) {
		return nil, fmt.Errorf("load scene %s: digest mismatch", name)
	}
	return scene.Load(bytes.NewReader([]byte(body)))
}

func (r *SceneRepo) List(ctx context.Context) ([]SceneRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT name, digest, entities, created_at, updated_at
		 FROM scenes ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var out []SceneRow
	for rows.Next() {
		var row SceneRow
		if err := rows.Scan(&row.Name, &row.Digest, &row.Entities, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *SceneRepo) Delete(ctx context.Context, name string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM scenes WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete scene %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete scene %s: %w", name, ErrSceneNotFound)
	}
	return nil
}

// Loader fetches a stored scene off the loop goroutine and spawns it when
// the App applies preload results.
func (r *SceneRepo) Loader(name string) app.Loader {
	return func(ctx context.Context) (func(*app.App) error, error) {
		doc, err := r.Load(ctx, name)
		if err != nil {
			return nil, err
		}
		return func(a *app.App) error {
			_, err := doc.Spawn(a.World())
			return err
		}, nil
	}
}
