package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// ListenAddrKey is the address <host:port> the websocket endpoints listen on
	ListenAddrKey = "LISTEN_ADDR"
	// DatadirKey is the local data directory to store the internal state of the daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// RequestTimeoutKey is the duration in seconds a user-facing request may await a decision before resolving as rejected
	RequestTimeoutKey = "REQUEST_TIMEOUT"
	// UnlockTimeoutKey is the duration in seconds an unlock prompt stays open before its waiters give up
	UnlockTimeoutKey = "UNLOCK_TIMEOUT"
	// AutolockTimeoutKey is the idle duration in seconds after which the keyring locks itself
	AutolockTimeoutKey = "AUTOLOCK_TIMEOUT"
	// PasswordCacheTTLKey is the duration in seconds a cached password survives without use
	PasswordCacheTTLKey = "PASSWORD_CACHE_TTL"
	// MaxStoredTxsKey caps the retained transaction history, oldest entries evicted first
	MaxStoredTxsKey = "MAX_STORED_TXS"
	// RequestsPerSecondKey bounds the inbound page-facing request rate
	RequestsPerSecondKey = "REQUESTS_PER_SECOND"
	// DefaultChainIDKey is the chain id the daemon points at on a fresh start
	DefaultChainIDKey = "DEFAULT_CHAIN_ID"
	// DefaultRPCURLKey is the JSON-RPC endpoint of the default chain
	DefaultRPCURLKey = "DEFAULT_RPC_URL"
	// SweepIntervalKey is the period in seconds of the dead-channel sweeper
	SweepIntervalKey = "SWEEP_INTERVAL"
	// WalletUnlockPasswordFile defines full path to a file that contains the
	// password for unlocking the wallet, if provided wallet will be unlocked
	// automatically
	WalletUnlockPasswordFile = "WALLET_UNLOCK_PASSWORD_FILE"

	DbLocation = "db"

	// DBBadger and DBInMemory are the supported DB_TYPE values.
	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("walletd", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("WALLETD")
	vip.AutomaticEnv()

	vip.SetDefault(ListenAddrKey, "localhost:9790")
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(RequestTimeoutKey, 300)
	vip.SetDefault(UnlockTimeoutKey, 300)
	vip.SetDefault(AutolockTimeoutKey, 900)
	vip.SetDefault(PasswordCacheTTLKey, 60)
	vip.SetDefault(MaxStoredTxsKey, 500)
	vip.SetDefault(RequestsPerSecondKey, 100)
	vip.SetDefault(DefaultChainIDKey, "0x1")
	vip.SetDefault(DefaultRPCURLKey, "https://eth.llamarpc.com")
	vip.SetDefault(SweepIntervalKey, 30)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

// GetSeconds reads an integer key as a duration in seconds.
func GetSeconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	switch dbType := GetString(DBTypeKey); dbType {
	case DBBadger, DBInMemory:
	default:
		return fmt.Errorf("unsupported database type: %s", dbType)
	}

	if GetInt(RequestTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive number of seconds", RequestTimeoutKey)
	}
	if GetInt(AutolockTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive number of seconds", AutolockTimeoutKey)
	}

	return nil
}

func initDatadir() error {
	datadir := GetDatadir()
	return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
