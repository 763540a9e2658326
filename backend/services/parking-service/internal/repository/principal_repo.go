package repository

import (
	"context"
	"strings"

	apperrors "sparkpark/backend/services/parking-service/internal/errors"
	"sparkpark/backend/services/parking-service/internal/gateway"
	"sparkpark/backend/services/parking-service/internal/models"
)

// PrincipalRepository stores sign-in identities.
type PrincipalRepository struct {
	gw gateway.Gateway
}

// NewPrincipalRepository returns repository.
func NewPrincipalRepository(gw gateway.Gateway) *PrincipalRepository {
	return &PrincipalRepository{gw: gw}
}

// Create inserts a registered principal. A taken e-mail is a ConflictError.
func (r *PrincipalRepository) Create(ctx context.Context, email, passwordHash string) (*models.Principal, error) {
	row, err := r.gw.Insert(ctx, gateway.TablePrincipals, gateway.Record{
		"email":         normalizeEmail(email),
		"password_hash": passwordHash,
		"anonymous":     false,
	})
	if err != nil {
		if apperrors.IsConflict(err) {
			return nil, apperrors.Wrap(apperrors.CodeConflict, "email already registered", err)
		}
		return nil, err
	}
	p := principalFromRecord(row)
	return &p, nil
}

// CreateAnonymous inserts an anonymous principal and binds it to ctx's identity.
func (r *PrincipalRepository) CreateAnonymous(ctx context.Context) (*models.Principal, error) {
	id, err := r.gw.CreateAnonymousPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Get returns a principal by id.
func (r *PrincipalRepository) Get(ctx context.Context, id string) (*models.Principal, error) {
	row, err := r.gw.GetByID(ctx, gateway.TablePrincipals, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apperrors.NotFound("principal")
	}
	p := principalFromRecord(row)
	return &p, nil
}

// GetByEmail returns the registered principal with email.
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	rows, err := r.gw.Query(ctx, gateway.TablePrincipals, gateway.Query{
		Filters: []gateway.Filter{gateway.Eq("email", normalizeEmail(email))},
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.NotFound("principal")
	}
	p := principalFromRecord(rows[0])
	return &p, nil
}

// UpdatePasswordHash replaces the stored hash of a registered principal.
func (r *PrincipalRepository) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	_, err := r.gw.Update(ctx, gateway.TablePrincipals, id, gateway.Record{"password_hash": passwordHash},
		gateway.Eq("anonymous", false))
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func principalFromRecord(row gateway.Record) models.Principal {
	return models.Principal{
		ID:           row.String("id"),
		Email:        row.String("email"),
		PasswordHash: row.String("password_hash"),
		Anonymous:    row.Bool("anonymous"),
		CreatedAt:    row.Time("created_at"),
	}
}
