package config

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/standard-charity/indexer/internal/redisdb"
	"github.com/standard-charity/indexer/pkg/logger"
	"github.com/standard-charity/indexer/pkg/logger/slogx"
	"github.com/standard-charity/indexer/pkg/middleware/requestcontext"
	"github.com/standard-charity/indexer/pkg/middleware/requestlogger"
)

var (
	configOnce sync.Once
	config     = &Config{
		Logger: logger.Config{
			Output: "TEXT",
		},
		HTTPServer: HTTPServer{
			Port: 3001,
		},
		Workflow: Workflow{
			FetchRetries:        10,
			FetchRetryDelay:     time.Second,
			RefundSettleDelay:   5 * time.Second,
			ReconnectDelay:      2 * time.Second,
			RPCTimeout:          30 * time.Second,
			RefundWindow:        27 * 24 * time.Hour,
			RefundSweepInterval: 24 * time.Hour,
		},
	}
)

type Config struct {
	APIOnly      bool           `mapstructure:"api_only"`
	Logger       logger.Config  `mapstructure:"logger"`
	HTTPServer   HTTPServer     `mapstructure:"http_server"`
	EthereumNode EthereumNode   `mapstructure:"ethereum_node"`
	Contract     Contract       `mapstructure:"contract"`
	Redis        redisdb.Config `mapstructure:"redis"`
	Workflow     Workflow       `mapstructure:"workflow"`
}

type HTTPServer struct {
	Port      int                               `mapstructure:"port"`
	RequestIP requestcontext.WithClientIPConfig `mapstructure:"request_ip"`
	Logger    requestlogger.Config              `mapstructure:"logger"`
}

// EthereumNode holds the JSON-RPC endpoints of the Ethereum node
// (e.g. an Infura project). Endpoint serves read/write calls over HTTPS,
// WebsocketURL serves the block header and event log subscriptions.
type EthereumNode struct {
	Endpoint     string `mapstructure:"endpoint"`
	WebsocketURL string `mapstructure:"websocket_url"`
}

type Contract struct {
	// Address is the deployed StandardCharity contract address.
	Address string `mapstructure:"address"`

	// OwnerPrivateKey signs the contract owner's write transactions
	// (createExpenditure, createExpendedDonation, setNextDonationToExpend,
	// refundDonation). Hex-encoded, no 0x prefix.
	OwnerPrivateKey string `mapstructure:"owner_private_key"`

	// ChainID for EIP-155 transaction signing. 1 for mainnet.
	ChainID int64 `mapstructure:"chain_id"`
}

// Workflow holds the tunables of the reconciliation engine. Defaults mirror
// the behavior the contract was operated with: 10 fetch retries 1s apart,
// a 5s settle delay before re-reading refunded donations, 2s between
// websocket reconnect attempts and a 27-day refund retention window.
type Workflow struct {
	FetchRetries        uint64        `mapstructure:"fetch_retries"`
	FetchRetryDelay     time.Duration `mapstructure:"fetch_retry_delay"`
	RefundSettleDelay   time.Duration `mapstructure:"refund_settle_delay"`
	ReconnectDelay      time.Duration `mapstructure:"reconnect_delay"`
	RPCTimeout          time.Duration `mapstructure:"rpc_timeout"`
	RefundWindow        time.Duration `mapstructure:"refund_window"`
	RefundSweepInterval time.Duration `mapstructure:"refund_sweep_interval"`
}

// BindPFlag binds a specific config key to a pflag.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("failed to bind pflag to config key", slogx.String("key", key), slogx.Error(err))
	}
}

// Parse reads the configuration from the given file (falling back to
// ./config.yaml) and environment variables, then caches it for Load.
func Parse(configFile string) Config {
	ctx := logger.WithContext(context.Background(), slog.String("package", "config"))
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotfound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotfound) {
				logger.WarnContext(ctx, "config file not found, use default value", slogx.Error(err))
			} else {
				logger.PanicContext(ctx, "invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(&config); err != nil {
			logger.PanicContext(ctx, "failed to unmarshal config", slogx.Error(err))
		}
	})

	return *config
}

// Load returns the parsed configuration.
func Load() Config {
	return Parse("")
}
