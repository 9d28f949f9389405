package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateProject opens a new attendance book for an admin account.
func (r *Repository) CreateProject(ctx context.Context, ownerID, name string) (Project, error) {
	p := Project{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`, p.ID, p.OwnerID, p.Name, p.CreatedAt)
	if err != nil {
		return Project{}, err
	}
	return p, nil
}

// ProjectByID returns a project regardless of owner; used by the public
// check-in page to show the book's name.
func (r *Repository) ProjectByID(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE id = $1`, id)
	var p Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ProjectForOwner returns the project only if ownerID owns it.
func (r *Repository) ProjectForOwner(ctx context.Context, id, ownerID string) (*Project, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE id = $1 AND user_id = $2`, id, ownerID)
	var p Project
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// ListProjects returns an owner's projects, newest first.
func (r *Repository) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, created_at FROM projects
		WHERE user_id = $1 ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// RenameProject updates the name of a project the owner controls.
func (r *Repository) RenameProject(ctx context.Context, id, ownerID, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE projects SET name = $3 WHERE id = $1 AND user_id = $2`, id, ownerID, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CreateProject opens a new attendance book.
func (s *Service) CreateProject(ctx context.Context, ownerID, name string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, fmt.Errorf("%w: project name required", ErrInvalidArgument)
	}
	return s.repo.CreateProject(ctx, ownerID, name)
}

// RenameProject renames an owned project.
func (s *Service) RenameProject(ctx context.Context, id, ownerID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: project name required", ErrInvalidArgument)
	}
	ok, err := s.repo.RenameProject(ctx, id, ownerID, name)
	if err != nil {
		return fmt.Errorf("rename project: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// ListProjects returns the caller's attendance books.
func (s *Service) ListProjects(ctx context.Context, ownerID string) ([]Project, error) {
	return s.repo.ListProjects(ctx, ownerID)
}

// ProjectScope authorizes projectID for ownerID and returns its scope.
// Projects the caller does not own are indistinguishable from missing ones.
func (s *Service) ProjectScope(ctx context.Context, projectID, ownerID string) (Scope, error) {
	p, err := s.repo.ProjectForOwner(ctx, projectID, ownerID)
	if err != nil {
		return Scope{}, fmt.Errorf("lookup project: %w", err)
	}
	if p == nil {
		return Scope{}, ErrNotFound
	}
	return In(p.ID), nil
}

// ProjectName returns the display name for the public check-in page.
func (s *Service) ProjectName(ctx context.Context, projectID string) (string, error) {
	p, err := s.repo.ProjectByID(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("lookup project: %w", err)
	}
	if p == nil {
		return "", ErrNotFound
	}
	return p.Name, nil
}
