package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/application/approval"
	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/router"
	"github.com/dappward/walletd/internal/core/application/wallet"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/internal/infrastructure/popup"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the two websocket endpoints of the daemon: /dapp for page
// channels and /ui for the extension's own surface.
type Server struct {
	srv *http.Server
}

type ServerOpts struct {
	Address     string
	Router      *router.Router
	Connections *conn.Registry
	WalletSvc   *wallet.Service
	Approver    *approval.Controller
	Bridge      *popup.Bridge
	RepoManager ports.RepoManager
	ChainState  *domain.ChainState
}

func (o ServerOpts) validate() error {
	if o.Address == "" {
		return fmt.Errorf("missing listen address")
	}
	if o.Router == nil {
		return fmt.Errorf("missing request router")
	}
	if o.Connections == nil {
		return fmt.Errorf("missing connection registry")
	}
	if o.WalletSvc == nil {
		return fmt.Errorf("missing wallet service")
	}
	if o.Approver == nil {
		return fmt.Errorf("missing approval controller")
	}
	if o.Bridge == nil {
		return fmt.Errorf("missing popup bridge")
	}
	if o.RepoManager == nil {
		return fmt.Errorf("missing repo manager")
	}
	if o.ChainState == nil {
		return fmt.Errorf("missing chain state")
	}
	return nil
}

func NewServer(opts ServerOpts) (*Server, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/dapp", newDappHandler(opts.Router, opts.Connections))
	mux.Handle("/ui", newUIHandler(
		opts.WalletSvc, opts.Approver, opts.Bridge, opts.Connections,
		opts.RepoManager, opts.ChainState,
	))

	return &Server{
		srv: &http.Server{Addr: opts.Address, Handler: mux},
	}, nil
}

// Start blocks serving until Stop is called.
func (s *Server) Start() error {
	log.Infof("listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight exchanges.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("server shutdown failed")
	}
}
