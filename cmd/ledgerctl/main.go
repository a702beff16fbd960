package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lotusbook/payments-backend/pkg/config"
	"github.com/lotusbook/payments-backend/pkg/db"
	"github.com/lotusbook/payments-backend/pkg/intasend"
	"github.com/lotusbook/payments-backend/pkg/logger"
)

var Version = "dev"

// transferGateway is the slice of the IntaSend client retry-transfer needs.
type transferGateway interface {
	IntraTransfer(ctx context.Context, req intasend.IntraTransferRequest) (*intasend.IntraTransferResponse, error)
}

type app struct {
	cfg     *config.Config
	logg    *logger.Logger
	db      *db.Client
	gateway transferGateway
	out     io.Writer
	format  string
	ownsDB  bool
}

func main() {
	a := &app{out: os.Stdout}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operator tooling for the payments ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := parseFormat(a.format); err != nil {
				return err
			}
			if a.out == nil {
				a.out = cmd.OutOrStdout()
			}
			return a.connect(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.format, "output", "o", formatTable, "Output format (table, json, yaml)")

	rootCmd.AddCommand(gapsCmd(a))
	rootCmd.AddCommand(balanceCmd(a))
	rootCmd.AddCommand(retryTransferCmd(a))
	rootCmd.AddCommand(dlqCmd(a))

	return rootCmd
}

func (a *app) connect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.logg == nil {
		a.logg = logger.New(logger.Options{ServiceName: "ledgerctl", Level: logger.ParseLevel("warn"), Output: os.Stderr})
	}
	if a.cfg == nil {
		_ = godotenv.Load()
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		cfg.Service.Kind = "ledgerctl"
		a.cfg = cfg
	}
	if a.db != nil {
		return nil
	}
	client, err := db.New(ctx, a.cfg.DB, a.logg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.db = client
	a.ownsDB = true
	return nil
}

func (a *app) close() error {
	if !a.ownsDB || a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	a.ownsDB = false
	return err
}

// gatewayClient builds the IntaSend client on first use.
func (a *app) gatewayClient() (transferGateway, error) {
	if a.gateway != nil {
		return a.gateway, nil
	}
	client, err := intasend.NewClient(a.cfg.IntaSend)
	if err != nil {
		return nil, fmt.Errorf("build gateway client: %w", err)
	}
	a.gateway = client
	return client, nil
}

func (a *app) gapThreshold() time.Duration {
	if a.cfg != nil && a.cfg.Reconciliation.TransferGapThreshold > 0 {
		return a.cfg.Reconciliation.TransferGapThreshold
	}
	return 15 * time.Minute
}
