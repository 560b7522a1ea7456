package domain

import "context"

// AuthorizationRepository is the persistence boundary for per-origin
// authorizations.
type AuthorizationRepository interface {
	GetAuthorization(ctx context.Context, origin string) (*OriginAuthorization, error)
	GetAllAuthorizations(ctx context.Context) ([]OriginAuthorization, error)
	SaveAuthorization(ctx context.Context, auth *OriginAuthorization) error
	DeleteAuthorization(ctx context.Context, origin string) error
	DeleteAllAuthorizations(ctx context.Context) error
}
