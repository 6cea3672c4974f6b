// Package repository is the Postgres persistence layer for stacks,
// organizations, and projects.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stackwatch-systems/stackwatch/internal/admission"
	"github.com/stackwatch-systems/stackwatch/internal/identity"
	"github.com/stackwatch-systems/stackwatch/internal/models"
	"github.com/stackwatch-systems/stackwatch/internal/stacks"
	"github.com/stackwatch-systems/stackwatch/internal/usage"
)

const queryTimeout = 5 * time.Second

// PostgresRepository implements the stack store, the plan source, and the
// organization resolver over one connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository connects to Postgres and verifies the connection.
func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

// FindBySignature returns the stack for (projectID, hash), or nil.
func (r *PostgresRepository) FindBySignature(ctx context.Context, projectID, hash string) (*models.Stack, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := `
		SELECT id, organization_id, project_id, type, title, signature_hash,
		       signature_info, tags, first_occurrence, last_occurrence,
		       total_occurrences, date_fixed, is_regressed, is_hidden,
		       disable_notifications
		FROM stacks
		WHERE project_id = $1 AND signature_hash = $2
	`

	var (
		s       models.Stack
		sigInfo []byte
		tags    []byte
	)
	err := r.pool.QueryRow(ctx, query, projectID, hash).Scan(
		&s.ID, &s.OrganizationID, &s.ProjectID, &s.Type, &s.Title,
		&s.SignatureHash, &sigInfo, &tags, &s.FirstOccurrence,
		&s.LastOccurrence, &s.TotalOccurrences, &s.DateFixed,
		&s.IsRegressed, &s.IsHidden, &s.DisableNotifications,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find stack: %w", err)
	}

	if err := json.Unmarshal(sigInfo, &s.SignatureInfo); err != nil {
		return nil, fmt.Errorf("failed to decode signature info: %w", err)
	}
	if err := json.Unmarshal(tags, &s.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return &s, nil
}

// Insert creates a stack row. The unique index on (project_id,
// signature_hash) turns concurrent creators into ErrStackExists.
func (r *PostgresRepository) Insert(ctx context.Context, stack *models.Stack) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	sigInfo, err := json.Marshal(stack.SignatureInfo)
	if err != nil {
		return fmt.Errorf("failed to encode signature info: %w", err)
	}
	tags, err := json.Marshal(stack.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		INSERT INTO stacks (
			id, organization_id, project_id, type, title, signature_hash,
			signature_info, tags, first_occurrence, last_occurrence,
			total_occurrences, date_fixed, is_regressed, is_hidden,
			disable_notifications
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err = r.pool.Exec(ctx, query,
		stack.ID, stack.OrganizationID, stack.ProjectID, stack.Type,
		stack.Title, stack.SignatureHash, sigInfo, tags,
		stack.FirstOccurrence, stack.LastOccurrence, stack.TotalOccurrences,
		stack.DateFixed, stack.IsRegressed, stack.IsHidden,
		stack.DisableNotifications,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return stacks.ErrStackExists
		}
		return fmt.Errorf("failed to insert stack: %w", err)
	}
	return nil
}

// AddOccurrence applies an occurrence under a row lock so concurrent
// submitters never lose counts or tag unions.
func (r *PostgresRepository) AddOccurrence(ctx context.Context, stackID string, date time.Time, eventTags models.TagSet) (*models.Stack, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var rawTags []byte
	err = tx.QueryRow(ctx, `SELECT tags FROM stacks WHERE id = $1 FOR UPDATE`, stackID).Scan(&rawTags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stacks.ErrStackNotFound
		}
		return nil, fmt.Errorf("failed to lock stack: %w", err)
	}

	var stackTags models.TagSet
	if err := json.Unmarshal(rawTags, &stackTags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	stackTags.Add(eventTags...)
	mergedTags, err := json.Marshal(stackTags)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}

	query := `
		UPDATE stacks
		SET total_occurrences = total_occurrences + 1,
		    last_occurrence = GREATEST(last_occurrence, $2),
		    first_occurrence = LEAST(first_occurrence, $2),
		    tags = $3
		WHERE id = $1
		RETURNING id, organization_id, project_id, type, title,
		          signature_hash, signature_info, tags, first_occurrence,
		          last_occurrence, total_occurrences, date_fixed,
		          is_regressed, is_hidden, disable_notifications
	`

	var (
		s       models.Stack
		sigInfo []byte
		tags    []byte
	)
	err = tx.QueryRow(ctx, query, stackID, date, mergedTags).Scan(
		&s.ID, &s.OrganizationID, &s.ProjectID, &s.Type, &s.Title,
		&s.SignatureHash, &sigInfo, &tags, &s.FirstOccurrence,
		&s.LastOccurrence, &s.TotalOccurrences, &s.DateFixed,
		&s.IsRegressed, &s.IsHidden, &s.DisableNotifications,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record occurrence: %w", err)
	}
	if err := json.Unmarshal(sigInfo, &s.SignatureInfo); err != nil {
		return nil, fmt.Errorf("failed to decode signature info: %w", err)
	}
	if err := json.Unmarshal(tags, &s.Tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit occurrence: %w", err)
	}
	return &s, nil
}

// MarkRegressed clears date_fixed and flags the stack as regressed.
func (r *PostgresRepository) MarkRegressed(ctx context.Context, stackID string) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx,
		`UPDATE stacks SET date_fixed = NULL, is_regressed = TRUE WHERE id = $1`,
		stackID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark stack regressed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stacks.ErrStackNotFound
	}
	return nil
}

// GetPlanLimits returns the quota-relevant limits for an organization.
func (r *PostgresRepository) GetPlanLimits(ctx context.Context, orgID string) (usage.PlanLimits, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var limits usage.PlanLimits
	err := r.pool.QueryRow(ctx,
		`SELECT plan_monthly_event_limit, plan_max_requests FROM organizations WHERE id = $1`,
		orgID,
	).Scan(&limits.MonthlyEventLimit, &limits.MaxRequestsPerWindow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return usage.PlanLimits{}, admission.ErrUnknownOrganization
		}
		return usage.PlanLimits{}, fmt.Errorf("failed to get plan limits: %w", err)
	}
	return limits, nil
}

// ResolveOrganization maps caller identity to its organization and
// default project.
func (r *PostgresRepository) ResolveOrganization(ctx context.Context, id identity.Identity) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	switch {
	case id.ProjectID != "":
		var orgID string
		err := r.pool.QueryRow(ctx,
			`SELECT organization_id FROM projects WHERE id = $1`,
			id.ProjectID,
		).Scan(&orgID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", "", admission.ErrUnknownOrganization
			}
			return "", "", fmt.Errorf("failed to resolve project: %w", err)
		}
		return orgID, id.ProjectID, nil

	case id.OrganizationID != "":
		var projectID string
		err := r.pool.QueryRow(ctx,
			`SELECT id FROM projects WHERE organization_id = $1 ORDER BY created_at LIMIT 1`,
			id.OrganizationID,
		).Scan(&projectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", "", admission.ErrUnknownOrganization
			}
			return "", "", fmt.Errorf("failed to resolve default project: %w", err)
		}
		return id.OrganizationID, projectID, nil

	case id.UserID != "":
		var orgID, projectID string
		err := r.pool.QueryRow(ctx, `
			SELECT m.organization_id, p.id
			FROM organization_members m
			JOIN projects p ON p.organization_id = m.organization_id
			WHERE m.user_id = $1
			ORDER BY p.created_at
			LIMIT 1
		`, id.UserID).Scan(&orgID, &projectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", "", admission.ErrUnknownOrganization
			}
			return "", "", fmt.Errorf("failed to resolve membership: %w", err)
		}
		return orgID, projectID, nil

	default:
		return "", "", admission.ErrUnknownOrganization
	}
}
