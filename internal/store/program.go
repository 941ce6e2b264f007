package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ProgramStore persists the opaque per-program JSON configuration blob.
type ProgramStore struct {
	q Querier
}

func NewProgramStore(q Querier) *ProgramStore {
	return &ProgramStore{q: q}
}

// GetConfig returns the raw config JSON for a program, or nil if none has
// been set — plugins treat an absent config as "should not handle".
func (s *ProgramStore) GetConfig(ctx context.Context, tenant, programID string) ([]byte, error) {
	var raw []byte
	err := s.q.QueryRow(ctx, `SELECT config FROM program_configs WHERE tenant = $1 AND program_id = $2`,
		tenant, programID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get program config: %w", err)
	}
	return raw, nil
}

// PutConfig replaces the config JSON for a program wholesale, the write
// path for PUT /v1/programs/{program_id}/config.
func (s *ProgramStore) PutConfig(ctx context.Context, tenant, programID string, config []byte) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO program_configs (tenant, program_id, config, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant, program_id) DO UPDATE SET config = EXCLUDED.config, updated_at = now()`,
		tenant, programID, config)
	if err != nil {
		return fmt.Errorf("put program config: %w", err)
	}
	return nil
}
