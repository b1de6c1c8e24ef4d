package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fedormatantsev/candlerunner/internal/domain"
)

// WriteStrategyInstance upserts a strategy instance definition under its
// (caller-computed) deterministic id.
func (s *Store) WriteStrategyInstance(ctx context.Context, id domain.StrategyInstanceID, def domain.StrategyInstanceDefinition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("postgres: marshal strategy instance %s: %w", id, err)
	}

	const query = `
		INSERT INTO strategy_instances (id, definition)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET definition = EXCLUDED.definition`

	if _, err := s.pool.Exec(ctx, query, id, payload); err != nil {
		return fmt.Errorf("postgres: upsert strategy instance %s: %w", id, err)
	}
	return nil
}

// ReadStrategyInstances returns every durable strategy instance definition.
func (s *Store) ReadStrategyInstances(ctx context.Context) (map[domain.StrategyInstanceID]domain.StrategyInstanceDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, definition FROM strategy_instances`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read strategy instances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.StrategyInstanceID]domain.StrategyInstanceDefinition)
	for rows.Next() {
		var id domain.StrategyInstanceID
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan strategy instance: %w", err)
		}

		var def domain.StrategyInstanceDefinition
		if err := json.Unmarshal(payload, &def); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal strategy instance %s: %w", id, err)
		}
		out[id] = def
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read strategy instances rows: %w", err)
	}
	return out, nil
}

// WritePositionManagerInstance upserts a PM instance definition under its
// (caller-computed) deterministic id.
func (s *Store) WritePositionManagerInstance(ctx context.Context, id domain.PositionManagerInstanceID, def domain.PositionManagerInstanceDefinition) error {
	payload, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("postgres: marshal position manager instance %s: %w", id, err)
	}

	const query = `
		INSERT INTO position_manager_instances (id, definition)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET definition = EXCLUDED.definition`

	if _, err := s.pool.Exec(ctx, query, id, payload); err != nil {
		return fmt.Errorf("postgres: upsert position manager instance %s: %w", id, err)
	}
	return nil
}

// ReadPositionManagerInstances returns every durable PM instance definition.
func (s *Store) ReadPositionManagerInstances(ctx context.Context) (map[domain.PositionManagerInstanceID]domain.PositionManagerInstanceDefinition, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, definition FROM position_manager_instances`)
	if err != nil {
		return nil, fmt.Errorf("postgres: read position manager instances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.PositionManagerInstanceID]domain.PositionManagerInstanceDefinition)
	for rows.Next() {
		var id domain.PositionManagerInstanceID
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan position manager instance: %w", err)
		}

		var def domain.PositionManagerInstanceDefinition
		if err := json.Unmarshal(payload, &def); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal position manager instance %s: %w", id, err)
		}
		out[id] = def
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: read position manager instances rows: %w", err)
	}
	return out, nil
}
