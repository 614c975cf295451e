// ledgerctl inspects and repairs the stake ledger for one identity.
//
//	ledgerctl status  <identity>
//	ledgerctl reset   <identity>
//	ledgerctl resolve <identity>   (local ledger only)
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"arebasic/internal/config"
	"arebasic/internal/ledger"
	"arebasic/internal/logger"
	"arebasic/internal/service"
)

func main() {
	os.Exit(run())
}

// run returns the exit code so deferred cleanup happens before exiting
func run() int {
	logger.Init("warn", false)
	cfg, err := config.LoadLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return 1
	}
	logger.Init(cfg.LogLevel, cfg.LogJSON)

	attempts := flag.Int("attempts", cfg.ReconcileAttempts, "sentinel attempts for reset")
	delay := flag.Duration("delay", cfg.ReconcileDelay, "delay between attempts")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] status|reset|resolve <identity>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 2 {
		flag.Usage()
		return 2
	}
	cmd, identity := flag.Arg(0), flag.Arg(1)

	gateway, closeLedger, err := ledger.Open(cfg.LedgerOptions())
	if err != nil {
		fmt.Fprintln(os.Stderr, "open ledger:", err)
		return 1
	}
	defer closeLedger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd {
	case "status":
		err = status(ctx, gateway, identity)
	case "reset":
		err = reset(ctx, service.NewReconciliationPolicy(gateway, *attempts, *delay), gateway, identity)
	case "resolve":
		err = resolve(ctx, gateway, identity)
	default:
		flag.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

func status(ctx context.Context, gw ledger.Gateway, identity string) error {
	balance, err := gw.GetBalance(ctx, identity)
	if err != nil {
		return err
	}
	st, err := gw.GetBetStatus(ctx, identity)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"identity":  identity,
		"balance":   balance,
		"status":    st,
		"blocked":   st.PendingBetBlocksNewRound(),
		"diagnosis": service.Diagnose(st),
	})
}

func reset(ctx context.Context, policy *service.ReconciliationPolicy, gw ledger.Gateway, identity string) error {
	report, err := policy.EnsureClean(ctx, identity)
	if perr := printJSON(report); perr != nil {
		return perr
	}
	if err != nil {
		return err
	}
	return status(ctx, gw, identity)
}

// resolve plays the oracle for an answered bet on the local ledger
func resolve(ctx context.Context, gw ledger.Gateway, identity string) error {
	l, ok := gw.(*ledger.LocalLedger)
	if !ok {
		return fmt.Errorf("resolve is only available with LEDGER_MODE=local")
	}
	if err := l.Resolve(ctx, identity); err != nil {
		return err
	}
	return status(ctx, gw, identity)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
