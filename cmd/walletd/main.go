package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/config"
	"github.com/dappward/walletd/internal/core/application/approval"
	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/keyring"
	"github.com/dappward/walletd/internal/core/application/router"
	"github.com/dappward/walletd/internal/core/application/vault"
	"github.com/dappward/walletd/internal/core/application/wallet"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/internal/infrastructure/popup"
	"github.com/dappward/walletd/internal/infrastructure/rpc"
	dbbadger "github.com/dappward/walletd/internal/infrastructure/storage/db/badger"
	"github.com/dappward/walletd/internal/infrastructure/storage/db/inmemory"
	"github.com/dappward/walletd/internal/interfaces/ws"
	"github.com/dappward/walletd/pkg/provider"
)

func main() {
	if err := config.InitConfig(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	repoManager, err := openRepoManager()
	if err != nil {
		log.WithError(err).Fatal("could not open the storage layer")
	}
	defer repoManager.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chainState, err := initChainState(ctx, repoManager)
	if err != nil {
		log.WithError(err).Fatal("could not initialize chain state")
	}

	pwdCache := keyring.NewPasswordCache(config.GetSeconds(config.PasswordCacheTTLKey))
	session := keyring.NewSession(config.GetSeconds(config.AutolockTimeoutKey), pwdCache)

	bridge := popup.NewBridge()
	registry := approval.NewRegistry()
	approver, err := approval.NewController(
		bridge, registry, session,
		config.GetSeconds(config.RequestTimeoutKey),
		config.GetSeconds(config.UnlockTimeoutKey),
	)
	if err != nil {
		log.WithError(err).Fatal("could not create the approval controller")
	}
	approver.SetUINotifier(bridge)

	connections, err := conn.NewRegistry(
		repoManager.AuthorizationRepository(), session, chainState, bridge,
		config.GetSeconds(config.SweepIntervalKey),
	)
	if err != nil {
		log.WithError(err).Fatal("could not create the connection registry")
	}
	session.SetOnLocked(func() {
		connections.Broadcast(provider.EventAccountsChanged, []string{})
	})

	forwarder, err := rpc.NewForwarder(rpc.ForwarderOpts{ChainState: chainState})
	if err != nil {
		log.WithError(err).Fatal("could not create the rpc forwarder")
	}

	rtr, err := router.NewRouter(router.RouterOpts{
		RepoManager:       repoManager,
		Session:           session,
		Registry:          registry,
		Approver:          approver,
		Connections:       connections,
		Forwarder:         forwarder,
		Tabs:              bridge,
		ChainState:        chainState,
		RequestsPerSecond: config.GetInt(config.RequestsPerSecondKey),
	})
	if err != nil {
		log.WithError(err).Fatal("could not create the request router")
	}

	vaultSvc, err := vault.NewService(repoManager)
	if err != nil {
		log.WithError(err).Fatal("could not create the vault service")
	}
	walletSvc, err := wallet.NewService(repoManager, vaultSvc, session, connections)
	if err != nil {
		log.WithError(err).Fatal("could not create the wallet service")
	}

	autoUnlock(ctx, walletSvc)

	server, err := ws.NewServer(ws.ServerOpts{
		Address:     config.GetString(config.ListenAddrKey),
		Router:      rtr,
		Connections: connections,
		WalletSvc:   walletSvc,
		Approver:    approver,
		Bridge:      bridge,
		RepoManager: repoManager,
		ChainState:  chainState,
	})
	if err != nil {
		log.WithError(err).Fatal("could not create the server")
	}

	go connections.StartSweeper(ctx)
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("server exited with error")
		}
	}()

	log.Debug("daemon started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan

	log.Debug("exiting")
	session.Lock()
	server.Stop()
}

func openRepoManager() (ports.RepoManager, error) {
	if config.GetString(config.DBTypeKey) == config.DBInMemory {
		return inmemory.NewRepoManager(config.GetInt(config.MaxStoredTxsKey)), nil
	}
	dbDir := filepath.Join(config.GetDatadir(), config.DbLocation)
	return dbbadger.NewRepoManager(
		dbDir, log.New(), config.GetInt(config.MaxStoredTxsKey),
	)
}

// initChainState makes sure the default network exists and points the chain
// state at it.
func initChainState(
	ctx context.Context, repoManager ports.RepoManager,
) (*domain.ChainState, error) {
	chainID := config.GetString(config.DefaultChainIDKey)
	network, err := repoManager.NetworkRepository().GetNetwork(ctx, chainID)
	if err != nil {
		if !errors.Is(err, domain.ErrUnrecognizedChain) {
			return nil, err
		}
		network, err = domain.NewNetwork(
			chainID, "default", config.GetString(config.DefaultRPCURLKey),
		)
		if err != nil {
			return nil, err
		}
		if err := repoManager.NetworkRepository().SaveNetwork(
			ctx, network,
		); err != nil {
			return nil, err
		}
	}
	return domain.NewChainState(network), nil
}

// autoUnlock unlocks the wallet at startup when a password file is
// configured, mirroring unattended deployments.
func autoUnlock(ctx context.Context, walletSvc *wallet.Service) {
	passwordFile := config.GetString(config.WalletUnlockPasswordFile)
	if passwordFile == "" {
		return
	}

	buf, err := os.ReadFile(passwordFile)
	if err != nil {
		log.WithError(err).Warn("could not read the unlock password file")
		return
	}
	password := strings.TrimSpace(string(buf))
	if err := walletSvc.Unlock(ctx, "", password); err != nil {
		log.WithError(err).Warn("could not auto unlock the wallet")
		return
	}
	log.Info("wallet auto unlocked")
}
