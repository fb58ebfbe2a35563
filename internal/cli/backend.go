package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/store/jsonstore"
	"github.com/Makepad-fr/tada/internal/store/remote"
	"github.com/Makepad-fr/tada/internal/store/sqlstore"
)

func nopClose() error { return nil }

// openStore opens the configured backend. onFault receives failures the
// backend hits outside of a call, such as a dropped subscription.
func openStore(cfg *config.Config, logger *log.Logger, onFault func(error)) (store.Store, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		s, err := jsonstore.Open("")
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendFile:
		s, err := jsonstore.Open(cfg.DataFile)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendSQLite:
		s, err := sqlstore.Open(cfg.Database, sqlstore.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case config.BackendRemote:
		c, err := remote.New(cfg.Remote,
			remote.WithTimeout(time.Duration(cfg.TimeoutSeconds)*time.Second),
			remote.WithLogger(logger),
			remote.WithFaultHandler(onFault))
		if err != nil {
			return nil, nil, err
		}
		return c, nopClose, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// faultRelay logs store faults and queues them for a view that may be
// watching. Faults nobody picks up are only logged.
type faultRelay struct {
	log *log.Logger
	ch  chan error
}

func newFaultRelay(logger *log.Logger) *faultRelay {
	return &faultRelay{log: logger, ch: make(chan error, 8)}
}

func (r *faultRelay) report(err error) {
	if err == nil {
		return
	}
	logging.FaultHandler(r.log)(err)
	select {
	case r.ch <- err:
	default:
	}
}

// newLogger writes to the configured log file, or to w when there is none.
func newLogger(cfg *config.Config, w io.Writer) (*log.Logger, func() error, error) {
	if cfg.LogFile != "" {
		return logging.OpenFile(cfg.LogFile, cfg.LogLevel)
	}
	if w == nil {
		w = os.Stderr
	}
	return logging.New(w, cfg.LogLevel), nopClose, nil
}
