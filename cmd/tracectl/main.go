// cmd/tracectl/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ntptrace/trace-backend/internal/config"
	"github.com/ntptrace/trace-backend/internal/database"
	"github.com/ntptrace/trace-backend/internal/ledger"
	"github.com/ntptrace/trace-backend/internal/models"
	"github.com/ntptrace/trace-backend/internal/registry"
	"github.com/ntptrace/trace-backend/internal/services"
)

func main() {
	app := &cli.App{
		Name:     "tracectl",
		Usage:    "inspect supply chain roles and certificates",
		Version:  "v1.0.0",
		Compiled: time.Now(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Value: false,
				Usage: "verbose output",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("verbose") {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "resolve the role an address holds on the ledger",
				ArgsUsage: "<address>",
				Action:    resolveAction,
			},
			{
				Name:  "verify",
				Usage: "verify a certificate by id or transaction hash",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "id", Usage: "certificate id"},
					&cli.StringFlag{Name: "tx", Usage: "anchoring transaction hash"},
				},
				Action: verifyAction,
			},
			{
				Name:  "gen-id",
				Usage: "generate certificate ids",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "count", Value: 1, Usage: "number of ids"},
				},
				Action: genIDAction,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the certificate registry schema",
				Action: migrateAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("✗ %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

func resolveAction(c *cli.Context) error {
	principal, err := ledger.ParsePrincipal(c.Args().First())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	client, closeLedger, err := ledger.Open(c.Context, cfg.Blockchain)
	if err != nil {
		return err
	}
	defer closeLedger()

	state := services.NewCapabilityResolver(client, cfg.Blockchain.CallTimeout).Resolve(c.Context, principal)

	fmt.Printf("  Principal: %s\n", color.WhiteString(state.Principal))
	if !state.Authorized {
		color.Yellow("  ✗ No supply chain role, route to %s", services.RouteRegister)
		return nil
	}
	color.Green("  ✓ %s", state.Role)
	return nil
}

func verifyAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	reg, closeRegistry, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeRegistry()

	result := services.NewVerificationService(reg, cfg.Blockchain.CallTimeout, cfg.Blockchain.CrossValidateHash).
		Verify(c.Context, c.String("id"), c.String("tx"))
	printResult(cfg, result)

	if !result.Valid {
		return cli.Exit("", exitCode(result.Error))
	}
	return nil
}

func printResult(cfg *config.Config, result models.VerificationResult) {
	if !result.Valid {
		color.Red("  ✗ %s", result.Error)
		return
	}

	cert := result.Certificate
	color.Green("  ✓ Certificate verified")
	fmt.Printf("  ID:           %s\n", color.WhiteString(cert.ID))
	fmt.Printf("  Product:      %s (%s)\n", cert.ProductName, cert.ProductID)
	fmt.Printf("  Status:       %s\n", color.CyanString(cert.Status.String()))
	fmt.Printf("  Issued:       %s\n", cert.Timestamp.Format(time.RFC3339))
	fmt.Printf("  Transaction:  %s\n", cert.TransactionHash)
	fmt.Printf("  Block:        %d\n", cert.BlockNumber)
	if result.BlockchainData != nil {
		fmt.Printf("  Gas used:     %d @ %s wei\n", result.BlockchainData.GasUsed, result.BlockchainData.GasPrice)
	}
	fmt.Printf("  Explorer:     %s/tx/%s\n", cfg.Blockchain.ExplorerURL, cert.TransactionHash)
}

func exitCode(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindMissingLookupKey:
		return 2
	case models.ErrorKindNotFound:
		return 3
	case models.ErrorKindMismatch:
		return 4
	default:
		return 5
	}
}

const memoryRegistryHint = "verify reads the shared registry; REGISTRY_BACKEND=memory only lives inside a running server, use postgres"

func openRegistry(cfg *config.Config) (registry.Registry, func(), error) {
	if cfg.RegistryBackend == "memory" {
		return nil, nil, cli.Exit(memoryRegistryHint, 1)
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return registry.NewPostgresRegistry(db), func() { database.Close(db) }, nil
}

func genIDAction(c *cli.Context) error {
	issuer := services.NewCertificateIssuer()
	for i := 0; i < c.Int("count"); i++ {
		id, _, err := issuer.GenerateID()
		if err != nil {
			return err
		}
		fmt.Println(id)
	}
	return nil
}

func migrateAction(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(c.Context, time.Minute)
	defer cancel()

	if err := database.RunMigrations(db.WithContext(ctx)); err != nil {
		return err
	}
	color.Green("✓ Registry schema up to date")
	return nil
}
