package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/dappward/walletd/internal/core/application/approval"
	"github.com/dappward/walletd/internal/core/application/conn"
	"github.com/dappward/walletd/internal/core/application/wallet"
	"github.com/dappward/walletd/internal/core/domain"
	"github.com/dappward/walletd/internal/core/ports"
	"github.com/dappward/walletd/internal/infrastructure/popup"
	"github.com/dappward/walletd/pkg/provider"
)

// UI message types.
const (
	MsgGenSeed          = "GEN_SEED"
	MsgCreateHDWallet   = "CREATE_HD_WALLET"
	MsgRestoreWallet    = "RESTORE_WALLET"
	MsgImportPrivateKey = "IMPORT_PRIVATE_KEY"
	MsgUnlockWallet     = "UNLOCK_WALLET"
	MsgLockWallet       = "LOCK_WALLET"
	MsgGetWalletState   = "GET_WALLET_STATE"
	MsgSwitchAccount    = "SWITCH_ACCOUNT"
	MsgDeriveAccount    = "DERIVE_ACCOUNT"
	MsgDeleteAccount    = "DELETE_ACCOUNT"
	MsgApprovalResponse = "APPROVAL_RESPONSE"
	MsgChangePassword   = "CHANGE_PASSWORD"
	MsgExportMnemonic   = "EXPORT_MNEMONIC"
	MsgExportPrivateKey = "EXPORT_PRIVATE_KEY"
	MsgRevokeOrigin     = "REVOKE_PERMISSIONS"
	MsgSwitchNetwork    = "SWITCH_NETWORK"
	MsgGetHistory       = "GET_TRANSACTION_HISTORY"
	MsgResetWallet      = "RESET_WALLET"

	msgCommandResult = "COMMAND_RESULT"
	msgWindowClosed  = "WINDOW_CLOSED"
)

// uiMessage is one typed request from the extension UI.
type uiMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// host reply fields, set on COMMAND_RESULT and WINDOW_CLOSED only
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	WindowID int             `json:"windowId,omitempty"`
}

// uiReply answers a uiMessage.
type uiReply struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// uiHandler terminates the extension UI connection: typed wallet lifecycle
// requests flow in, replies and signals flow out, and host command replies
// are relayed to the popup bridge.
type uiHandler struct {
	upgrader    websocket.Upgrader
	walletSvc   *wallet.Service
	approver    *approval.Controller
	bridge      *popup.Bridge
	connections *conn.Registry
	repoManager ports.RepoManager
	chainState  *domain.ChainState
}

func newUIHandler(
	walletSvc *wallet.Service, approver *approval.Controller,
	bridge *popup.Bridge, connections *conn.Registry,
	repoManager ports.RepoManager, chainState *domain.ChainState,
) *uiHandler {
	return &uiHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		walletSvc:   walletSvc,
		approver:    approver,
		bridge:      bridge,
		connections: connections,
		repoManager: repoManager,
		chainState:  chainState,
	}
}

// channelSender adapts a ws channel to the bridge's Sender.
type channelSender struct {
	channel *wsChannel
}

func (s channelSender) Send(v interface{}) error {
	return s.channel.writeJSON(v)
}

func (h *uiHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("could not upgrade ui connection")
		return
	}

	channel := newWsChannel(wsConn).(*wsChannel)
	sender := channelSender{channel}
	h.bridge.AttachSender(sender)
	defer func() {
		h.bridge.DetachSender(sender)
		//nolint:errcheck
		wsConn.Close()
	}()

	log.Debug("ui channel opened")

	for {
		var msg uiMessage
		if err := wsConn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).Debug("ui channel read failed")
			}
			return
		}

		switch msg.Type {
		case msgCommandResult:
			h.bridge.HandleResult(popup.CommandResult{
				ID: msg.ID, Result: msg.Result, Error: msg.Error,
			})
			continue
		case msgWindowClosed:
			h.bridge.HandleWindowClosed(msg.WindowID)
			continue
		}

		go func(msg uiMessage) {
			result, err := h.handle(r.Context(), msg)
			reply := uiReply{Type: msg.Type, ID: msg.ID, Result: result}
			if err != nil {
				reply.Error = err.Error()
				reply.Result = nil
			}
			if err := channel.writeJSON(reply); err != nil {
				log.WithError(err).Debug("could not write ui reply")
			}
		}(msg)
	}
}

func (h *uiHandler) handle(
	ctx context.Context, msg uiMessage,
) (interface{}, error) {
	switch msg.Type {
	case MsgGenSeed:
		mnemonic, err := h.walletSvc.GenSeed(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"mnemonic": strings.Join(mnemonic, " ")}, nil

	case MsgCreateHDWallet, MsgRestoreWallet:
		var payload struct {
			Mnemonic string `json:"mnemonic"`
			Password string `json:"password"`
			Name     string `json:"name"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return h.walletSvc.RestoreWallet(
			ctx, strings.Fields(payload.Mnemonic), payload.Password,
			payload.Name,
		)

	case MsgImportPrivateKey:
		var payload struct {
			PrivateKey string `json:"privateKey"`
			Password   string `json:"password"`
			Name       string `json:"name"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return h.walletSvc.ImportPrivateKey(
			ctx, payload.PrivateKey, payload.Password, payload.Name,
		)

	case MsgUnlockWallet:
		var payload struct {
			AccountID string `json:"accountId"`
			Password  string `json:"password"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		if err := h.walletSvc.Unlock(
			ctx, payload.AccountID, payload.Password,
		); err != nil {
			return nil, err
		}
		return h.walletSvc.GetState(ctx)

	case MsgLockWallet:
		h.walletSvc.Lock(ctx)
		return h.walletSvc.GetState(ctx)

	case MsgGetWalletState:
		return h.walletSvc.GetState(ctx)

	case MsgSwitchAccount:
		var payload struct {
			AccountID string `json:"accountId"`
			Password  string `json:"password"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		if err := h.walletSvc.SwitchAccount(
			ctx, payload.AccountID, payload.Password,
		); err != nil {
			return nil, err
		}
		return h.walletSvc.GetState(ctx)

	case MsgDeriveAccount:
		var payload struct {
			WalletID string `json:"walletId"`
			Name     string `json:"name"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return h.walletSvc.DeriveSubAccount(
			ctx, payload.WalletID, payload.Name, payload.Password,
		)

	case MsgDeleteAccount:
		var payload struct {
			AccountID string `json:"accountId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		if err := h.walletSvc.DeleteAccount(ctx, payload.AccountID); err != nil {
			return nil, err
		}
		return h.walletSvc.GetState(ctx)

	case MsgApprovalResponse:
		var payload struct {
			RequestID string          `json:"requestId"`
			Approved  bool            `json:"approved"`
			Result    json.RawMessage `json:"result,omitempty"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		if err := h.approver.Resolve(
			payload.RequestID, payload.Approved, payload.Result,
		); err != nil {
			return nil, err
		}
		return nil, nil

	case MsgChangePassword:
		var payload struct {
			OldPassword string `json:"oldPassword"`
			NewPassword string `json:"newPassword"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return nil, h.walletSvc.ChangePassword(
			ctx, payload.OldPassword, payload.NewPassword,
		)

	case MsgExportMnemonic:
		var payload struct {
			WalletID string `json:"walletId"`
			Password string `json:"password"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		mnemonic, err := h.walletSvc.ExportMnemonic(
			ctx, payload.WalletID, payload.Password,
		)
		if err != nil {
			return nil, err
		}
		return map[string]string{"mnemonic": strings.Join(mnemonic, " ")}, nil

	case MsgExportPrivateKey:
		var payload struct {
			AccountID string `json:"accountId"`
			Password  string `json:"password"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		prv, err := h.walletSvc.ExportPrivateKey(
			ctx, payload.AccountID, payload.Password,
		)
		if err != nil {
			return nil, err
		}
		return map[string]string{"privateKey": prv}, nil

	case MsgRevokeOrigin:
		var payload struct {
			Origin string `json:"origin"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return nil, h.revokeOrigin(ctx, payload.Origin)

	case MsgSwitchNetwork:
		var payload struct {
			ChainID string `json:"chainId"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return nil, h.switchNetwork(ctx, payload.ChainID)

	case MsgGetHistory:
		var payload struct {
			Address string `json:"address"`
		}
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return nil, domain.ErrInvalidParams
		}
		return h.repoManager.TransactionRepository().GetTransactionsByAddress(
			ctx, payload.Address,
		)

	case MsgResetWallet:
		return nil, h.walletSvc.Reset(ctx)
	}

	return nil, domain.ErrInvalidParams
}

func (h *uiHandler) revokeOrigin(ctx context.Context, origin string) error {
	if err := h.repoManager.AuthorizationRepository().DeleteAuthorization(
		ctx, origin,
	); err != nil {
		return err
	}
	if h.connections != nil {
		h.connections.BroadcastToOrigin(
			origin, provider.EventAccountsChanged, []string{},
		)
	}
	return nil
}

// switchNetwork is the UI-side network switch: no origin gate, but the same
// recognized-chain check and the same broadcast-after-commit ordering the
// page-facing switch follows.
func (h *uiHandler) switchNetwork(ctx context.Context, rawChainID string) error {
	chainID, err := domain.NormalizeChainID(rawChainID)
	if err != nil {
		return err
	}
	if h.chainState.ChainID() == chainID {
		return nil
	}

	network, err := h.repoManager.NetworkRepository().GetNetwork(ctx, chainID)
	if err != nil {
		return err
	}

	h.chainState.Switch(network)
	if h.connections != nil {
		h.connections.Broadcast(provider.EventChainChanged, chainID)
	}
	log.WithField("chainId", chainID).Info("switched network")
	return nil
}
