package ledger

import (
	"fmt"
	"time"
)

// Options selects and configures a ledger backend
type Options struct {
	Mode            string // "local" or "remote"
	URL             string
	APIKey          string
	DBPath          string
	StartingBalance int64
	Timeout         time.Duration
}

// Open builds the configured gateway. The returned close func is never nil.
func Open(opts Options) (Gateway, func() error, error) {
	switch opts.Mode {
	case "", "local":
		l, err := OpenLocalLedger(opts.DBPath, opts.StartingBalance)
		if err != nil {
			return nil, nil, fmt.Errorf("open local ledger %s: %w", opts.DBPath, err)
		}
		return l, l.Close, nil
	case "remote":
		if opts.URL == "" {
			return nil, nil, fmt.Errorf("remote ledger needs a url")
		}
		return NewHTTPGateway(opts.URL, opts.APIKey, opts.Timeout), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown ledger mode %q", opts.Mode)
	}
}
