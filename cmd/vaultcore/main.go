// Command vaultcore runs the credential security engine: database
// migrations, vault audits, sequential breach scans and password generation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/vaultec/vaultcore/internal/breach"
	"github.com/vaultec/vaultcore/internal/config"
	"github.com/vaultec/vaultcore/internal/generator"
	"github.com/vaultec/vaultcore/internal/identity"
	"github.com/vaultec/vaultcore/internal/migrate"
	"github.com/vaultec/vaultcore/internal/repository/postgres"
	"github.com/vaultec/vaultcore/internal/secrets"
	"github.com/vaultec/vaultcore/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

const usage = `usage: vaultcore [flags] <command>

commands:
  migrate     apply database migrations
  audit       analyze the vault and persist a snapshot (-user required)
  scan        check every credential against the breach corpus (-user required)
  stats       print persisted breach statistics (-user required)
  generate    generate a password (no database required)
`

func main() {
	user := flag.String("user", "", "acting user ID (uuid)")
	length := flag.Int("length", 16, "generated password length")
	noSymbols := flag.Bool("no-symbols", false, "generate without symbols")
	noAmbiguous := flag.Bool("no-ambiguous", false, "exclude ambiguous characters")
	passphrase := flag.Bool("passphrase", false, "generate a word-based passphrase")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	cmd := flag.Arg(0)

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("command", cmd),
	)

	// generate needs neither configuration nor a database
	if cmd == "generate" {
		opts := generator.DefaultOptions()
		opts.Length = *length
		opts.Symbols = !*noSymbols
		opts.ExcludeAmbiguous = *noAmbiguous
		opts.UsePassphrase = *passphrase
		pw, err := generator.Generate(opts)
		if err != nil {
			logger.Fatal("generate", zap.Error(err))
		}
		fmt.Println(pw)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := migrate.Up(ctx, cfg.DatabaseDSN); err != nil {
		logger.Fatal("migrate up", zap.Error(err))
	}
	if cmd == "migrate" {
		logger.Info("migrations applied")
		return
	}

	userID, err := uuid.FromString(*user)
	if err != nil {
		logger.Fatal("invalid -user", zap.Error(err))
	}
	ctx = identity.WithUserID(ctx, userID)

	cipher, err := secrets.NewCipher(cfg.SecretKey)
	if err != nil {
		logger.Fatal("cipher", zap.Error(err))
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres.New", zap.Error(err))
	}
	defer db.Close()

	credRepo := postgres.NewCredentialRepo(db)
	auditRepo := postgres.NewAuditRepo(db)

	resolver := identity.ContextResolver{}
	oracle := breach.NewClient(cfg.BreachBaseURL, cfg.BreachTimeout)

	switch cmd {
	case "audit":
		svc := service.NewAuditService(resolver, credRepo, auditRepo, cipher, cfg.StaleThreshold, logger)
		res, err := svc.Analyze(ctx)
		if err != nil {
			logger.Fatal("audit", zap.Error(err))
		}
		logger.Info("audit complete",
			zap.Int("score", res.OverallScore),
			zap.Int("total", res.TotalPasswords),
			zap.Int("weak", res.WeakPasswords),
			zap.Int("duplicates", res.Duplicates),
			zap.Int("old", res.OldPasswords),
			zap.Int("issues", len(res.Issues)),
		)
		for _, issue := range res.Issues {
			fmt.Printf("%-8s %-10s %s: %s\n", issue.Severity, issue.Type, issue.Name, issue.Message)
		}
	case "scan":
		svc := service.NewBreachService(resolver, credRepo, cipher, oracle, cfg.ScanDelay, logger)
		res, err := svc.ScanAll(ctx)
		if err != nil {
			logger.Fatal("scan", zap.Error(err))
		}
		logger.Info("scan complete",
			zap.Int("scanned", res.Scanned),
			zap.Int("breached", res.Breached),
			zap.Int("failed", res.Failed),
		)
		for _, item := range res.Items {
			fmt.Printf("%s: seen in %d breaches\n", item.Name, item.Count)
		}
	case "stats":
		svc := service.NewBreachService(resolver, credRepo, cipher, oracle, cfg.ScanDelay, logger)
		stats, err := svc.Stats(ctx)
		if err != nil {
			logger.Fatal("stats", zap.Error(err))
		}
		fmt.Printf("passwords: %d, breached: %d\n", stats.TotalPasswords, stats.BreachedPasswords)
		if stats.LastScan != nil {
			fmt.Printf("last scan: %s\n", stats.LastScan.Format("2006-01-02 15:04:05"))
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
