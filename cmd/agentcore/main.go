package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cardanoagents/enhanced-client/internal/audit"
	"github.com/cardanoagents/enhanced-client/internal/chainquery"
	compliancepolicy "github.com/cardanoagents/enhanced-client/internal/compliance/policy"
	compliancerepository "github.com/cardanoagents/enhanced-client/internal/compliance/repository"
	complianceservice "github.com/cardanoagents/enhanced-client/internal/compliance/service"
	"github.com/cardanoagents/enhanced-client/internal/crosschain"
	escrowrepository "github.com/cardanoagents/enhanced-client/internal/escrow/repository"
	escrowservice "github.com/cardanoagents/enhanced-client/internal/escrow/service"
	"github.com/cardanoagents/enhanced-client/internal/facade"
	"github.com/cardanoagents/enhanced-client/internal/health"
	"github.com/cardanoagents/enhanced-client/internal/identity"
	"github.com/cardanoagents/enhanced-client/internal/issuer"
	"github.com/cardanoagents/enhanced-client/internal/notify"
	registryrepository "github.com/cardanoagents/enhanced-client/internal/registry/repository"
	registryservice "github.com/cardanoagents/enhanced-client/internal/registry/service"
	revenuerepository "github.com/cardanoagents/enhanced-client/internal/revenue/repository"
	revenueservice "github.com/cardanoagents/enhanced-client/internal/revenue/service"
	"github.com/cardanoagents/enhanced-client/internal/threat"
	"github.com/cardanoagents/enhanced-client/pkg/client"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("agentcore exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	// ── Configuration ────────────────────────────────────────────────────────
	viper.SetConfigName("agentcore")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("configs")
	viper.AddConfigPath(".")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.rate_limit_rps", 20)
	viper.SetDefault("database.url", "")
	viper.SetDefault("identity.token_ttl_seconds", 3600)
	viper.SetDefault("issuer.base_url", "")
	viper.SetDefault("issuer.api_key", "")
	viper.SetDefault("issuer.policy_id", "")
	viper.SetDefault("issuer.rate_per_minute", 60)
	viper.SetDefault("issuer.queue_depth", 256)
	viper.SetDefault("chainquery.base_url", "https://cardano-mainnet.blockfrost.io/api/v0")
	viper.SetDefault("chainquery.api_key", "")
	viper.SetDefault("chainquery.cache_ttl", "10s")
	viper.SetDefault("chainquery.verify_stake", false)
	viper.SetDefault("compliance.policy_file", "")
	viper.SetDefault("escrow.transfer_max_attempts", 5)
	viper.SetDefault("escrow.transfer_base_delay", "500ms")
	viper.SetDefault("revenue.transfer_max_attempts", 5)
	viper.SetDefault("revenue.transfer_base_delay", "500ms")
	viper.SetDefault("crosschain.policy_id", "")
	viper.SetDefault("health.check_interval", "5m")
	viper.SetDefault("health.probe_timeout", "10s")
	viper.SetDefault("health.fail_threshold", 3)

	if err := viper.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return fmt.Errorf("read config: %w", err)
		}
		logger.Warn("no config file found, using defaults and env vars")
	}

	// ── Storage ──────────────────────────────────────────────────────────────
	var db *pgxpool.Pool
	dbURL := viper.GetString("database.url")
	if dbURL != "" {
		var err error
		db, err = pgxpool.New(context.Background(), dbURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer db.Close()

		if err := db.Ping(context.Background()); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
	} else {
		logger.Warn("database.url not set — running against in-memory repositories")
	}

	// ── Audit ledger ─────────────────────────────────────────────────────────
	var ledger audit.Ledger
	if db != nil {
		pgLedger := audit.NewPostgresLedger(db, logger)
		startCtx := context.Background()
		if err := pgLedger.Verify(startCtx); err != nil {
			logger.Warn("audit ledger integrity check FAILED", zap.Error(err))
		} else {
			n, _ := pgLedger.Len(startCtx)
			root, _ := pgLedger.Root(startCtx)
			logger.Info("audit ledger verified", zap.Int("entries", n), zap.String("root", root))
		}
		ledger = pgLedger
	} else {
		ledger = audit.New()
	}

	// ── Attribute-binding token issuer (C6b) ─────────────────────────────────
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return fmt.Errorf("generate compliance signing key: %w", err)
	}
	tokenTTL := time.Duration(viper.GetInt("identity.token_ttl_seconds")) * time.Second
	tokens := identity.NewTokenIssuer(rsaKey, "agentcore", tokenTTL)

	// ── NFT Issuer Gateway (C2) ───────────────────────────────────────────────
	var baseGateway issuer.Gateway
	issuerBaseURL := viper.GetString("issuer.base_url")
	if issuerBaseURL != "" {
		baseGateway = issuer.NewHTTPGateway(issuerBaseURL, viper.GetString("issuer.api_key"), 15*time.Second)
	} else {
		logger.Warn("issuer.base_url not set — minting is a no-op stub")
		baseGateway = noopGateway{}
	}
	gateway := issuer.NewQueuedGateway(baseGateway, viper.GetInt("issuer.rate_per_minute"), viper.GetInt("issuer.queue_depth"), logger)

	// ── Chain-query boundary (spec.md §6) ────────────────────────────────────
	cacheTTL, _ := time.ParseDuration(viper.GetString("chainquery.cache_ttl"))
	chainClient := client.New(viper.GetString("chainquery.base_url"), viper.GetString("chainquery.api_key"))
	cachedChainQuery := chainquery.New(chainClient, cacheTTL)

	// ── Compliance Gate (C6b) ─────────────────────────────────────────────────
	policyRules, err := compliancepolicy.Load(viper.GetString("compliance.policy_file"))
	if err != nil {
		return fmt.Errorf("load compliance policy: %w", err)
	}
	var complianceRepo compliancerepository.Repository
	if db != nil {
		complianceRepo = compliancerepository.NewPostgresRepository(db)
	} else {
		complianceRepo = compliancerepository.NewMemoryRepository()
	}
	gate := complianceservice.New(complianceRepo, tokens, threat.NewRuleBasedScorer(), ledger, policyRules, logger)

	// ── Registry (C3) ─────────────────────────────────────────────────────────
	var registryRepo registryrepository.Repository
	if db != nil {
		registryRepo = registryrepository.NewPostgresRepository(db)
	} else {
		registryRepo = registryrepository.NewMemoryRepository()
	}
	registrySvc := registryservice.New(registryRepo, ledger, logger)
	registrySvc.WithComplianceGate(gate)
	if viper.GetBool("chainquery.verify_stake") {
		registrySvc.WithStakeVerifier(cachedChainQuery)
		logger.Info("registry: on-chain stake verification enabled")
	}

	// ── Escrow Engine (C4) ────────────────────────────────────────────────────
	var escrowRepo escrowrepository.Repository
	if db != nil {
		escrowRepo = escrowrepository.NewPostgresRepository(db)
	} else {
		escrowRepo = escrowrepository.NewMemoryRepository()
	}
	escrowMintAttempts := viper.GetInt("escrow.transfer_max_attempts")
	escrowMintDelay, _ := time.ParseDuration(viper.GetString("escrow.transfer_base_delay"))
	escrowSvc := escrowservice.New(escrowRepo, registrySvc, gateway, ledger, logger, escrowservice.Config{
		PolicyID:        viper.GetString("issuer.policy_id"),
		MintMaxAttempts: escrowMintAttempts,
		MintBaseDelay:   escrowMintDelay,
	})
	escrowSvc.WithComplianceGate(gate)

	// ── Revenue Distributor (C5) ──────────────────────────────────────────────
	var revenueRepo revenuerepository.Repository
	if db != nil {
		revenueRepo = revenuerepository.NewPostgresRepository(db)
	} else {
		revenueRepo = revenuerepository.NewMemoryRepository()
	}
	revenueTransferAttempts := viper.GetInt("revenue.transfer_max_attempts")
	revenueTransferDelay, _ := time.ParseDuration(viper.GetString("revenue.transfer_base_delay"))
	revenueSvc := revenueservice.New(revenueRepo, gateway, ledger, logger, revenueservice.Config{
		PolicyID:            viper.GetString("issuer.policy_id"),
		TransferMaxAttempts: revenueTransferAttempts,
		TransferBaseDelay:   revenueTransferDelay,
	})

	// ── Cross-Chain Directory (C6a) ───────────────────────────────────────────
	var crossChainRepo crosschain.Repository
	if db != nil {
		crossChainRepo = crosschain.NewPostgresRepository(db)
	} else {
		crossChainRepo = crosschain.NewMemoryRepository()
	}
	crossChainSvc := crosschain.New(crossChainRepo, registrySvc, gateway, ledger, logger, crosschain.Config{
		PolicyID: viper.GetString("crosschain.policy_id"),
	})
	crossChainSvc.WithComplianceGate(gate)

	// ── Notifications ─────────────────────────────────────────────────────────
	var notifyRepo notify.Repository
	if db != nil {
		notifyRepo = notify.NewPostgresRepository(db)
	} else {
		notifyRepo = notify.NewMemoryRepository()
	}
	notifySvc := notify.NewService(notifyRepo, logger).WithMetricsRecorder(facade.RecordNotificationDelivery)

	// ── Health prober (feeds the registry's time-decay anchor) ───────────────
	checkInterval, _ := time.ParseDuration(viper.GetString("health.check_interval"))
	probeTimeout, _ := time.ParseDuration(viper.GetString("health.probe_timeout"))
	healthChecker := health.New(registrySvc, registrySvc, health.Config{
		CheckInterval: checkInterval,
		ProbeTimeout:  probeTimeout,
		FailThreshold: viper.GetInt("health.fail_threshold"),
	}, logger)
	healthChecker.SetWebhookDispatch(notifySvc.Dispatch)
	healthChecker.SetMetricsRecord(facade.RecordNotificationDelivery)

	// ── HTTP Router ───────────────────────────────────────────────────────────
	router := facade.NewRouter(facade.Config{
		CORSOrigins:  viper.GetStringSlice("server.cors_origins"),
		RateLimitRPS: viper.GetInt("server.rate_limit_rps"),
	}, facade.Components{
		Registry:   registrySvc,
		Escrow:     escrowSvc,
		Revenue:    revenueSvc,
		CrossChain: crossChainSvc,
		Compliance: gate,
		Notify:     notifySvc,
	}, logger)

	httpPort := viper.GetInt("server.port")
	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", httpPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// ── Background: recover settlements left pending across a restart ────────
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		settlements, err := escrowSvc.RecoverPendingSettlements(ctx)
		if err != nil {
			logger.Warn("escrow recovery error", zap.Error(err))
			return
		}
		if len(settlements) > 0 {
			logger.Info("recovered pending settlements", zap.Int("count", len(settlements)))
		}
	}()

	go func() {
		logger.Info("agentcore HTTP listening", zap.Int("port", httpPort))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP listen error", zap.Error(err))
		}
	}()

	healthQuit := make(chan os.Signal, 1)
	go healthChecker.Start(healthQuit)

	<-quit
	logger.Info("shutting down agentcore...")
	close(healthQuit)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error("HTTP shutdown error", zap.Error(err))
	}

	logger.Info("agentcore stopped")
	return nil
}

// noopGateway is used when no NFT issuer endpoint is configured, so the
// system still runs end-to-end in a local/dev environment without minting.
type noopGateway struct{}

func (noopGateway) Mint(_ context.Context, req issuer.MintRequest) (*issuer.MintResult, error) {
	return &issuer.MintResult{TransactionID: "noop-" + req.AssetName}, nil
}
