package inmemory

import (
	"context"

	"github.com/dappward/walletd/internal/core/domain"
)

type authorizationRepositoryImpl struct {
	locker
	authorizations map[string]domain.OriginAuthorization
}

func newAuthorizationRepository() domain.AuthorizationRepository {
	return &authorizationRepositoryImpl{
		locker:         newLocker(),
		authorizations: make(map[string]domain.OriginAuthorization),
	}
}

func (r *authorizationRepositoryImpl) GetAuthorization(
	_ context.Context, origin string,
) (*domain.OriginAuthorization, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	auth, ok := r.authorizations[origin]
	if !ok {
		return nil, nil
	}
	return &auth, nil
}

func (r *authorizationRepositoryImpl) GetAllAuthorizations(
	_ context.Context,
) ([]domain.OriginAuthorization, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	auths := make([]domain.OriginAuthorization, 0, len(r.authorizations))
	for _, auth := range r.authorizations {
		auths = append(auths, auth)
	}
	return auths, nil
}

func (r *authorizationRepositoryImpl) SaveAuthorization(
	_ context.Context, auth *domain.OriginAuthorization,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.authorizations[auth.Origin] = *auth
	return nil
}

func (r *authorizationRepositoryImpl) DeleteAuthorization(
	_ context.Context, origin string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.authorizations, origin)
	return nil
}

func (r *authorizationRepositoryImpl) DeleteAllAuthorizations(
	_ context.Context,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.authorizations = make(map[string]domain.OriginAuthorization)
	return nil
}
