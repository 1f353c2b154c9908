package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zzenonn/fyles/internal/config"
	"github.com/zzenonn/fyles/internal/logging"
	"github.com/zzenonn/fyles/internal/repository/db"
	"github.com/zzenonn/fyles/internal/repository/ipfs"
	"github.com/zzenonn/fyles/internal/repository/ledger"
	"github.com/zzenonn/fyles/internal/repository/objectstore"
	"github.com/zzenonn/fyles/internal/service"
)

var (
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:          "fyles",
	Short:        "Register IPFS files on a ledger",
	Long:         "Adds files to IPFS, records their multihash on a file registry and lists what an account has registered",
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress bars")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the DynamoDB ledger table",
	RunE: func(cmd *cobra.Command, args []string) error {
		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}

		tags, _ := cmd.Flags().GetStringToString("tag")
		if err := dynamoDb.MigrateDb(cmd.Context(), cfg.Ledger.DynamoDBTable, tags); err != nil {
			return fmt.Errorf("failed to migrate the database: %w", err)
		}

		fmt.Println("Database initialized and migrated successfully")
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the DynamoDB ledger table",
	RunE: func(cmd *cobra.Command, args []string) error {
		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to the database: %w", err)
		}

		if err := dynamoDb.MigrateDown(cmd.Context(), cfg.Ledger.DynamoDBTable); err != nil {
			return fmt.Errorf("failed to roll back migrations: %w", err)
		}

		fmt.Println("Database migrations rolled back successfully")
		return nil
	},
}

func initConfig() {
	var err error
	cfg, err = config.LoadConfig(context.Background(), configPath, rootCmd)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	logging.InitLogger(cfg)
}

// requestContext bounds a command by the configured request timeout.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	if cfg.RequestTimeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), cfg.RequestTimeout)
}

// newFileService wires the configured storage, ledger and mirror backends. The returned func
// releases them.
func newFileService(ctx context.Context) (*service.FileService, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	var store service.ContentStore
	switch cfg.Storage.Backend {
	case config.StorageLocal:
		store = ipfs.NewHasher()
	default:
		store = ipfs.NewClient(cfg.Storage.APIURL, cfg.Storage.APIToken, cfg.Storage.RetryMax, cfg.Quiet)
	}

	var (
		registry service.Ledger
		wallet   service.AccountProvider
	)
	switch cfg.Ledger.Backend {
	case config.LedgerDynamoDB:
		dynamoDb, err := db.NewDatabase(cfg.AwsConfig)
		if err != nil {
			return nil, nil, err
		}
		repo := db.NewLedgerRepository(dynamoDb.Client, cfg.Ledger.DynamoDBTable, cfg.Ledger.Account)
		registry, wallet = repo, repo
	default:
		contract, err := ledger.Dial(ctx, cfg.Ledger.RPCURL, cfg.Ledger.ContractAddress, ledger.Options{
			Account:     cfg.Ledger.Account,
			WaitReceipt: cfg.Ledger.WaitReceipt,
			ReceiptPoll: cfg.Ledger.ReceiptPoll,
		})
		if err != nil {
			return nil, nil, err
		}
		registry, wallet = contract, contract
	}

	factory := objectstore.NewObjectRepositoryFactory(cfg.AwsConfig)
	repos, err := factory.CreateRepositories(ctx, cfg.MirrorBuckets)
	if err != nil {
		factory.Close()
		return nil, nil, err
	}
	mirrors := make([]service.ObjectRepository, len(repos))
	for i, repo := range repos {
		log.Debugf("Mirroring to %s bucket %s", repo.GetStorageType(), repo.GetBucketName())
		mirrors[i] = repo
	}

	fileService := service.NewFileService(store, registry, wallet, service.Options{
		GatewayURL:      cfg.GatewayURL,
		StrictMultihash: cfg.StrictMultihash,
		Mirrors:         mirrors,
		Quiet:           cfg.Quiet,
	})
	cleanup := func() {
		if err := factory.Close(); err != nil {
			log.WithError(err).Warn("Failed to close object store clients")
		}
	}
	return fileService, cleanup, nil
}

func init() {
	initCmd.Flags().StringToString("tag", map[string]string{}, "Tags to apply to the ledger table (key=value)")
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(downCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
