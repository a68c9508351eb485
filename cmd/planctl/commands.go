package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"debtster_installments/internal/adapters/backend"
	"debtster_installments/internal/config"
	"debtster_installments/internal/installments"
	"debtster_installments/internal/models"
	"debtster_installments/internal/services/ledger"
	"debtster_installments/internal/services/schedule"

	"github.com/spf13/cobra"
)

var errInvalidSchedule = errors.New("schedule is not valid")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "planctl",
		Short:         "Installment schedule tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("backend-url", "", "Backend base URL (default BACKEND_URL)")
	root.PersistentFlags().String("token", "", "Backend bearer token (default BACKEND_TOKEN)")

	root.AddCommand(newValidateCmd(), newLedgerCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a CSV/XLSX schedule against a contract total",
		Long: `Parse a schedule file and run the editor checks on it: positive amounts,
due dates after today and a sum equal to the contract total. Prints the
report as JSON and exits non-zero when the schedule is not valid.`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
	cmd.Flags().Int64("total", 0, "Contract total revenue")
	cmd.Flags().StringP("file", "f", "", "Schedule file (.csv or .xlsx)")
	cmd.Flags().String("today", "", "Reference date (default: current date)")
	cmd.Flags().Int("max-rows", installments.DefaultMaxRows, "Maximum number of rows")
	_ = cmd.MarkFlagRequired("total")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	total, _ := cmd.Flags().GetInt64("total")
	file, _ := cmd.Flags().GetString("file")
	todayRaw, _ := cmd.Flags().GetString("today")
	maxRows, _ := cmd.Flags().GetInt("max-rows")

	now := time.Now
	if todayRaw != "" {
		d, err := models.ParseDate(todayRaw)
		if err != nil {
			return fmt.Errorf("--today: %w", err)
		}
		now = func() time.Time { return d.Time() }
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open schedule: %w", err)
	}
	defer f.Close()

	inputs, _, err := schedule.Parse(f, schedule.DetectFormat(file, ""))
	if err != nil {
		return err
	}

	contract := models.Contract{ID: "local", TotalRevenue: total}
	ed, err := installments.FromInputs(contract, inputs, installments.WithMaxRows(maxRows), installments.WithClock(now))
	if err != nil {
		return err
	}

	rep := ed.Validate()
	if err := printJSON(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if !rep.Valid {
		return errInvalidSchedule
	}
	return nil
}

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Print the payment ledger of a debt or a contract",
		Args:  cobra.NoArgs,
		RunE:  runLedger,
	}
	cmd.Flags().String("debt", "", "Debt id")
	cmd.Flags().String("contract", "", "Contract id")
	cmd.MarkFlagsOneRequired("debt", "contract")
	cmd.MarkFlagsMutuallyExclusive("debt", "contract")
	return cmd
}

func runLedger(cmd *cobra.Command, _ []string) error {
	client, err := backendClient(cmd)
	if err != nil {
		return err
	}
	svc := ledger.NewService(client, client, nil, log.New(cmd.ErrOrStderr(), "", log.LstdFlags))

	if id, _ := cmd.Flags().GetString("debt"); id != "" {
		l, err := svc.Build(cmd.Context(), models.ID(id))
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), l)
	}

	id, _ := cmd.Flags().GetString("contract")
	cl, err := svc.ForContract(cmd.Context(), models.ID(id))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), cl)
}

// backendClient applies flag overrides on top of the service environment.
func backendClient(cmd *cobra.Command) (*backend.Client, error) {
	settings, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg := backend.Config{
		BaseURL: settings.Backend.BaseURL,
		Token:   settings.Backend.Token,
		Timeout: settings.Backend.Timeout,
	}
	if v, _ := cmd.Flags().GetString("backend-url"); v != "" {
		cfg.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Token = v
	}
	return backend.NewClient(cfg, &http.Client{}, log.New(io.Discard, "", 0))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
