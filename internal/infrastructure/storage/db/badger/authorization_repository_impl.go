package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/dappward/walletd/internal/core/domain"
)

type authorizationRepositoryImpl struct {
	store *badgerhold.Store
}

func newAuthorizationRepository(
	store *badgerhold.Store,
) domain.AuthorizationRepository {
	return authorizationRepositoryImpl{store}
}

// GetAuthorization returns nil without error when the origin holds no
// authorization, absence is an ordinary answer here.
func (r authorizationRepositoryImpl) GetAuthorization(
	_ context.Context, origin string,
) (*domain.OriginAuthorization, error) {
	var auth domain.OriginAuthorization
	if err := r.store.Get(origin, &auth); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &auth, nil
}

func (r authorizationRepositoryImpl) GetAllAuthorizations(
	_ context.Context,
) ([]domain.OriginAuthorization, error) {
	var auths []domain.OriginAuthorization
	if err := r.store.Find(&auths, nil); err != nil {
		return nil, err
	}
	return auths, nil
}

func (r authorizationRepositoryImpl) SaveAuthorization(
	_ context.Context, auth *domain.OriginAuthorization,
) error {
	return r.store.Upsert(auth.Origin, *auth)
}

func (r authorizationRepositoryImpl) DeleteAuthorization(
	_ context.Context, origin string,
) error {
	if err := r.store.Delete(origin, domain.OriginAuthorization{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (r authorizationRepositoryImpl) DeleteAllAuthorizations(
	_ context.Context,
) error {
	return r.store.DeleteMatching(domain.OriginAuthorization{}, nil)
}
