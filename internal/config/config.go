package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apperrors "github.com/zzenonn/fyles/internal/errors"
)

const (
	StorageIPFS  = "ipfs"
	StorageLocal = "local"

	LedgerEthereum = "ethereum"
	LedgerDynamoDB = "dynamodb"

	// ssmPrefix marks a value that is a Parameter Store path rather than the value itself.
	ssmPrefix = "ssm:"
)

// secretKeys may be given as ssm:/path references.
var secretKeys = []string{
	"storage.api_url",
	"storage.api_token",
	"ledger.rpc_url",
	"ledger.contract_address",
	"ledger.account",
}

// StorageConfig selects and configures the content addressed storage backend.
type StorageConfig struct {
	Backend  string
	APIURL   string
	APIToken string
	RetryMax int
}

// LedgerConfig selects and configures the file registry backend.
type LedgerConfig struct {
	Backend         string
	RPCURL          string
	ContractAddress string
	Account         string
	WaitReceipt     bool
	ReceiptPoll     time.Duration
	DynamoDBTable   string
}

// Config holds the application configuration
type Config struct {
	LogLevel        string
	LogFormat       string
	GatewayURL      string
	RequestTimeout  time.Duration
	StrictMultihash bool
	Quiet           bool
	Storage         StorageConfig
	Ledger          LedgerConfig
	MirrorBuckets   []string
	// AwsConfig: AWS SDK uses a shared configuration object that contains
	// credentials, region, retry policies, etc. DynamoDB, SSM and S3 clients
	// are all created from it.
	AwsConfig aws.Config
}

// ParameterGetter is the part of the SSM client used to resolve ssm: values.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadConfig loads configuration from config.yaml, environment variables, or CLI flags
// Priority: CLI flags > Environment variables > config.yaml > defaults
func LoadConfig(ctx context.Context, configPath string, rootCmd *cobra.Command) (*Config, error) {
	if err := setupViper(configPath, rootCmd); err != nil {
		return nil, err
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	if needsSecrets() {
		if err := ResolveSecrets(ctx, ssm.NewFromConfig(awsConfig)); err != nil {
			return nil, err
		}
	}

	cfg := FromViper()
	cfg.AwsConfig = awsConfig
	return cfg, nil
}

// FromViper builds a Config from the current viper state.
func FromViper() *Config {
	return &Config{
		LogLevel:        viper.GetString("log_level"),
		LogFormat:       viper.GetString("log_format"),
		GatewayURL:      viper.GetString("gateway_url"),
		RequestTimeout:  viper.GetDuration("request_timeout"),
		StrictMultihash: viper.GetBool("strict_multihash"),
		Quiet:           viper.GetBool("quiet"),
		Storage: StorageConfig{
			Backend:  strings.ToLower(viper.GetString("storage.backend")),
			APIURL:   viper.GetString("storage.api_url"),
			APIToken: viper.GetString("storage.api_token"),
			RetryMax: viper.GetInt("storage.retry_max"),
		},
		Ledger: LedgerConfig{
			Backend:         strings.ToLower(viper.GetString("ledger.backend")),
			RPCURL:          viper.GetString("ledger.rpc_url"),
			ContractAddress: viper.GetString("ledger.contract_address"),
			Account:         viper.GetString("ledger.account"),
			WaitReceipt:     viper.GetBool("ledger.wait_receipt"),
			ReceiptPoll:     viper.GetDuration("ledger.receipt_poll"),
			DynamoDBTable:   viper.GetString("ledger.dynamodb_table"),
		},
		MirrorBuckets: viper.GetStringSlice("mirror.buckets"),
	}
}

// Validate checks that the selected backends have what they need.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case StorageIPFS:
		if c.Storage.APIURL == "" {
			return apperrors.ConfigNotSetError("storage.api_url")
		}
	case StorageLocal:
	default:
		return fmt.Errorf("unsupported storage backend: %q", c.Storage.Backend)
	}

	switch c.Ledger.Backend {
	case LedgerEthereum:
		if c.Ledger.RPCURL == "" {
			return apperrors.ConfigNotSetError("ledger.rpc_url")
		}
		if c.Ledger.ContractAddress == "" {
			return apperrors.ConfigNotSetError("ledger.contract_address")
		}
	case LedgerDynamoDB:
		if c.Ledger.DynamoDBTable == "" {
			return apperrors.ConfigNotSetError("ledger.dynamodb_table")
		}
	default:
		return fmt.Errorf("unsupported ledger backend: %q", c.Ledger.Backend)
	}

	return nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(configPath string, rootCmd *cobra.Command) error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	SetDefaults()
	viper.SetEnvPrefix("FYLES")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if rootCmd != nil {
		flags := rootCmd.PersistentFlags()
		for key, flag := range map[string]string{
			"log_level": "log-level",
			"quiet":     "quiet",
		} {
			if f := flags.Lookup(flag); f != nil {
				if err := viper.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind flags: %w", err)
				}
			}
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// SetDefaults sets default configuration values
func SetDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("gateway_url", "http://gateway.ipfs.io/ipfs")
	viper.SetDefault("request_timeout", 2*time.Minute)
	viper.SetDefault("strict_multihash", false)
	viper.SetDefault("quiet", false)
	viper.SetDefault("storage.backend", StorageIPFS)
	viper.SetDefault("storage.api_url", "http://127.0.0.1:5001")
	viper.SetDefault("storage.retry_max", 0)
	viper.SetDefault("ledger.backend", LedgerEthereum)
	viper.SetDefault("ledger.rpc_url", "http://127.0.0.1:8545")
	viper.SetDefault("ledger.wait_receipt", false)
	viper.SetDefault("ledger.receipt_poll", 2*time.Second)
	viper.SetDefault("ledger.dynamodb_table", "fyles_ledger")
	viper.SetDefault("mirror.buckets", []string{})
}

// ResolveSecrets replaces every ssm:/path value among the secret keys with the decrypted
// parameter it names.
func ResolveSecrets(ctx context.Context, getter ParameterGetter) error {
	for _, key := range secretKeys {
		value := viper.GetString(key)
		if !strings.HasPrefix(value, ssmPrefix) {
			continue
		}

		name := strings.TrimPrefix(value, ssmPrefix)
		out, err := getter.GetParameter(ctx, &ssm.GetParameterInput{
			Name:           aws.String(name),
			WithDecryption: aws.Bool(true),
		})
		if err != nil {
			return fmt.Errorf("unable to resolve %s from parameter %s: %w", key, name, err)
		}
		if out.Parameter == nil {
			return fmt.Errorf("parameter %s for %s has no value", name, key)
		}
		viper.Set(key, aws.ToString(out.Parameter.Value))
	}
	return nil
}

func needsSecrets() bool {
	for _, key := range secretKeys {
		if strings.HasPrefix(viper.GetString(key), ssmPrefix) {
			return true
		}
	}
	return false
}

// loadAWSConfig loads AWS SDK configuration
func loadAWSConfig(ctx context.Context) (aws.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load AWS SDK config: %v", err)
	}
	return cfg, nil
}
