package config

import "errors"

var (
	errLedgerMode      = errors.New("LEDGER_MODE must be local or remote")
	errLedgerURL       = errors.New("LEDGER_URL is required when LEDGER_MODE=remote")
	errStake           = errors.New("STAKE_COST must be positive")
	errStartingBalance = errors.New("STARTING_BALANCE must not be negative")
)
