package llm

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Cache persists Assessments keyed by (description_hash, prompt_version)
// so re-running risk on an unchanged listing never re-invokes the LLM
// (§4.6, §8 idempotence law).
type Cache struct {
	db *pgxpool.Pool
}

func NewCache(db *pgxpool.Pool) *Cache {
	return &Cache{db: db}
}

// Get returns the cached assessment, or ok=false on a cache miss.
func (c *Cache) Get(ctx context.Context, descriptionHash, promptVersion string) (Assessment, bool, error) {
	var raw []byte
	err := c.db.QueryRow(ctx, `
		SELECT assessment FROM llm_cache WHERE description_hash = $1 AND prompt_version = $2
	`, descriptionHash, promptVersion).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assessment{}, false, nil
	}
	if err != nil {
		return Assessment{}, false, err
	}

	var a Assessment
	if err := json.Unmarshal(raw, &a); err != nil {
		return Assessment{}, false, err
	}
	return a, true, nil
}

// Put stores an assessment, tolerating a racing writer for the same key.
func (c *Cache) Put(ctx context.Context, descriptionHash, promptVersion string, a Assessment) error {
	raw, err := json.Marshal(a)
	if err != nil {
		return err
	}

	_, err = c.db.Exec(ctx, `
		INSERT INTO llm_cache (description_hash, prompt_version, assessment)
		VALUES ($1, $2, $3)
		ON CONFLICT (description_hash, prompt_version) DO NOTHING
	`, descriptionHash, promptVersion, raw)
	return err
}
