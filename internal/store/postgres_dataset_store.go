package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/model"
	"github.com/quarry-io/quarry/internal/qerrors"
)

// PostgresDatasetStore implements DatasetStore for PostgreSQL
type PostgresDatasetStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDatasetStore creates a new PostgreSQL dataset store
func NewPostgresDatasetStore(
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (DatasetStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDatasetStore{
		pool:   pool,
		logger: logger,
	}, nil
}

// CreateDataset inserts a dataset registry row
func (s *PostgresDatasetStore) CreateDataset(ctx context.Context, dataset *model.Dataset) error {
	query := `
		INSERT INTO datasets (id, name, tenant, repo_url, remote_url, file_count, total_size, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		dataset.ID,
		dataset.Name,
		dataset.Tenant,
		dataset.RepoURL,
		dataset.RemoteURL,
		dataset.FileCount,
		dataset.TotalSize,
		dataset.CreatedAt,
		dataset.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return qerrors.New("store.CreateDataset", qerrors.KindConflict, "dataset already exists")
	}

	return err
}

// GetDataset retrieves a dataset by ID
func (s *PostgresDatasetStore) GetDataset(ctx context.Context, id string) (*model.Dataset, error) {
	query := `
		SELECT id, name, tenant, repo_url, remote_url, file_count, total_size, created_at, updated_at
		FROM datasets
		WHERE id = $1
	`

	var dataset model.Dataset
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&dataset.ID,
		&dataset.Name,
		&dataset.Tenant,
		&dataset.RepoURL,
		&dataset.RemoteURL,
		&dataset.FileCount,
		&dataset.TotalSize,
		&dataset.CreatedAt,
		&dataset.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}

	return &dataset, nil
}

// DeleteDataset removes a dataset and its version rows
func (s *PostgresDatasetStore) DeleteDataset(ctx context.Context, id string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM dataset_versions WHERE dataset_id = $1`, id); err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return tx.Commit(ctx)
}

// RecordVersion inserts a version row and refreshes the dataset totals
func (s *PostgresDatasetStore) RecordVersion(ctx context.Context, version *model.Version) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO dataset_versions (id, dataset_id, tag, commit_hash, file_count, total_size, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = tx.Exec(ctx, query,
		version.ID,
		version.DatasetID,
		version.Tag,
		version.CommitHash,
		version.FileCount,
		version.TotalSize,
		version.Message,
		version.CreatedAt,
	)
	if isUniqueViolation(err) {
		return qerrors.New("store.RecordVersion", qerrors.KindConflict,
			"version %s already recorded", version.Tag)
	}
	if err != nil {
		return err
	}

	update := `
		UPDATE datasets
		SET file_count = $2, total_size = $3, updated_at = $4
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update,
		version.DatasetID,
		version.FileCount,
		version.TotalSize,
		version.CreatedAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListVersions retrieves all versions of a dataset, newest first
func (s *PostgresDatasetStore) ListVersions(ctx context.Context, datasetID string) ([]*model.Version, error) {
	query := `
		SELECT id, dataset_id, tag, commit_hash, file_count, total_size, message, created_at
		FROM dataset_versions
		WHERE dataset_id = $1
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, datasetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make([]*model.Version, 0)
	for rows.Next() {
		var v model.Version
		if err := rows.Scan(&v.ID, &v.DatasetID, &v.Tag, &v.CommitHash, &v.FileCount, &v.TotalSize, &v.Message, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, &v)
	}

	return versions, rows.Err()
}

// Ping checks the database connection
func (s *PostgresDatasetStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresDatasetStore) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
