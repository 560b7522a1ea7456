package router

import (
	"errors"

	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/pkg/provider"
)

// ToRPCError maps an internal error onto the numeric error surface DApps
// branch on. Unknown errors collapse to a generic internal error so no
// internal detail leaks to pages.
func ToRPCError(err error) *provider.RPCError {
	var rpcErr *provider.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	switch {
	case errors.Is(err, domain.ErrUserRejected):
		return provider.NewRPCError(
			provider.CodeUserRejected, "user rejected the request",
		)
	case errors.Is(err, domain.ErrRequestTimeout):
		// a request nobody decided on counts as rejected
		return provider.NewRPCError(
			provider.CodeUserRejected, "request timed out",
		)
	case errors.Is(err, domain.ErrWindowNotOpened):
		return provider.NewRPCError(
			provider.CodeUserRejected, "approval window could not be opened",
		)
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrWalletLocked):
		return provider.NewRPCError(
			provider.CodeUnauthorized, "origin is not authorized",
		)
	case errors.Is(err, domain.ErrAlreadyPending):
		return provider.NewRPCError(
			provider.CodeResourceUnavailable,
			"a request is already pending, check the wallet window",
		)
	case errors.Is(err, domain.ErrUnrecognizedChain):
		return provider.NewRPCError(
			provider.CodeUnrecognizedChain, "chain is not recognized",
		)
	case errors.Is(err, domain.ErrInvalidParams),
		errors.Is(err, domain.ErrInvalidChainID):
		return provider.NewRPCError(
			provider.CodeInvalidParams, "invalid params",
		)
	case errors.Is(err, domain.ErrNetworkFailure):
		return provider.NewRPCError(
			provider.CodeInternalError, "network request failed",
		)
	default:
		return provider.NewRPCError(
			provider.CodeInternalError, "internal error",
		)
	}
}
