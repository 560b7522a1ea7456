package ports

import "context"

// TabGateway answers questions about browser tabs. A background tab must not
// be able to silently trigger a credential prompt, and dead tabs must be
// swept from the connection registry.
type TabGateway interface {
	IsActive(ctx context.Context, tabID int) (bool, error)
	Exists(ctx context.Context, tabID int) (bool, error)
}
