package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-isatty"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/server"
	"github.com/Makepad-fr/tada/internal/todo"
	"github.com/Makepad-fr/tada/internal/tui"
	"github.com/Makepad-fr/tada/internal/ui"
)

// interactive reports whether `ls` may open the full-screen view.
var interactive = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Run dispatches subcommands and returns an exit code (0 ok, 1 error, 2 usage).
func Run(args []string, cfg *config.Config) int {
	if len(args) == 0 {
		PrintHelp()
		return 2
	}
	ui.SetTheme(cfg.Theme)
	cmd, a := args[0], args[1:]

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp()
		return 0

	case "ls":
		return withService(cfg, func(svc *todo.Service, logger *log.Logger, faults <-chan error) int {
			return doList(cfg, svc, logger, faults)
		})

	case "add":
		if len(a) == 0 {
			ui.Fail("usage: tada add <text...>")
			return 2
		}
		return withService(cfg, func(svc *todo.Service, _ *log.Logger, _ <-chan error) int {
			return doAdd(cfg, svc, strings.Join(a, " "))
		})

	case "done", "rm":
		if len(a) != 1 {
			ui.Fail(fmt.Sprintf("usage: tada %s <index>", cmd))
			return 2
		}
		n, err := strconv.Atoi(a[0])
		if err != nil {
			ui.Fail(cmd + ": not a number: " + a[0])
			return 2
		}
		return withService(cfg, func(svc *todo.Service, _ *log.Logger, _ <-chan error) int {
			if cmd == "done" {
				return doToggle(cfg, svc, n)
			}
			return doRemove(cfg, svc, n)
		})

	case "export":
		format := "json"
		if len(a) > 0 {
			format = a[0]
		}
		if format != "json" && format != "yaml" {
			ui.Fail("usage: tada export [json|yaml]")
			return 2
		}
		return withService(cfg, func(svc *todo.Service, _ *log.Logger, _ <-chan error) int {
			return doExport(cfg, svc, format)
		})

	case "serve":
		if cfg.Backend == config.BackendRemote {
			ui.Fail("serve: needs a local backend (memory, file or sqlite)")
			return 2
		}
		return doServe(cfg)
	}

	ui.Fail("unknown subcommand: " + cmd)
	fmt.Fprintln(ui.Stderr)
	PrintHelp()
	return 2
}

func PrintHelp() {
	fmt.Fprintf(ui.Stdout, `tada - a tiny realtime todo list

Usage:
  tada [flags] <subcommand> [args]

Subcommands:
  add <text...>      Add a new item (text can be multiple words)
  ls                 Live list (interactive; -plain prints it once)
  done <index>       Toggle done for item at 1-based index
  rm <index>         Remove item at 1-based index
  export [json|yaml] Print all items
  serve              Share the local store over HTTP and websockets

Flags:
  -backend memory|file|sqlite|remote   where items live (default file)
  -data, -db, -remote, -listen         backend locations
  -group, -plain                       tune ls output

Examples:
  tada add "Buy milk"
  tada ls
  tada done 2
  tada -backend sqlite serve
  tada -backend remote -remote http://127.0.0.1:8080 ls
`)
}

// -------------- subcommand impls ----------------

// withService opens the backend, hands a service to fn and closes it again.
func withService(cfg *config.Config, fn func(*todo.Service, *log.Logger, <-chan error) int) int {
	logger, closeLog, err := newLogger(cfg, logSink(cfg))
	if err != nil {
		ui.Fail("log: " + err.Error())
		return 1
	}
	defer closeLog()

	relay := newFaultRelay(logger)
	st, closeStore, err := openStore(cfg, logger, relay.report)
	if err != nil {
		ui.Fail("open store: " + err.Error())
		return 1
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("close store", "err", err)
		}
	}()
	return fn(todo.New(st, todo.WithCollection(cfg.Collection)), logger, relay.ch)
}

// logSink keeps log lines off the terminal while the full-screen view runs.
func logSink(cfg *config.Config) io.Writer {
	if !cfg.Plain && interactive() {
		return io.Discard
	}
	return ui.Stderr
}

func timeout(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
}

func load(cfg *config.Config, svc *todo.Service) ([]model.Item, bool) {
	ctx, cancel := timeout(cfg)
	defer cancel()
	items, err := svc.Snapshot(ctx)
	if err != nil {
		ui.Fail("load: " + err.Error())
		return nil, false
	}
	return items, true
}

func doList(cfg *config.Config, svc *todo.Service, logger *log.Logger, faults <-chan error) int {
	if !cfg.Plain && interactive() {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fault, err := tui.Run(ctx, svc,
			tui.WithFaultHandler(logging.FaultHandler(logger)),
			tui.WithFaults(faults))
		if err != nil {
			ui.Fail("tui: " + err.Error())
			return 1
		}
		if fault != "" {
			ui.Fail("last error: " + fault)
		}
		return 0
	}

	items, ok := load(cfg, svc)
	if !ok {
		return 1
	}
	d, _ := ui.Stats(items)
	lines := []string{
		ui.Header(items),
		ui.Current().Muted.Render(ui.ProgressBar(d, len(items), 28)),
		"",
	}
	lines = append(lines, ui.ListLines(items, cfg.Group)...)
	if footer := ui.CountLine(len(items)); footer != "" {
		lines = append(lines, "", footer)
	}
	lines = append(lines, "", ui.Current().Muted.Render("Tip: add with `tada add \"Buy milk\"`"))
	ui.Panel(ui.Stdout, lines)
	return 0
}

func doAdd(cfg *config.Config, svc *todo.Service, text string) int {
	ctx, cancel := timeout(cfg)
	defer cancel()
	if _, err := svc.Create(ctx, text); err != nil {
		if errors.Is(err, todo.ErrEmptyText) {
			ui.Fail("add: " + err.Error())
			return 2
		}
		ui.Fail(err.Error())
		return 1
	}
	ui.OK("added")
	return 0
}

// pick resolves a 1-based index against the current list.
func pick(cfg *config.Config, svc *todo.Service, userIndex int) (model.Item, int) {
	items, ok := load(cfg, svc)
	if !ok {
		return model.Item{}, 1
	}
	if userIndex < 1 || userIndex > len(items) {
		ui.Fail(fmt.Sprintf("index out of range: have %d, got %d", len(items), userIndex))
		ui.Hint("run `tada ls` to see valid indexes")
		return model.Item{}, 2
	}
	return items[userIndex-1], 0
}

func doToggle(cfg *config.Config, svc *todo.Service, userIndex int) int {
	it, code := pick(cfg, svc, userIndex)
	if code != 0 {
		return code
	}
	ctx, cancel := timeout(cfg)
	defer cancel()
	if err := svc.Toggle(ctx, it); err != nil {
		ui.Fail(err.Error())
		return 1
	}
	ui.OK("toggled")
	return 0
}

func doRemove(cfg *config.Config, svc *todo.Service, userIndex int) int {
	it, code := pick(cfg, svc, userIndex)
	if code != 0 {
		return code
	}
	ctx, cancel := timeout(cfg)
	defer cancel()
	if err := svc.Delete(ctx, it.ID); err != nil {
		ui.Fail(err.Error())
		return 1
	}
	ui.OK("removed")
	return 0
}

func doExport(cfg *config.Config, svc *todo.Service, format string) int {
	items, ok := load(cfg, svc)
	if !ok {
		return 1
	}
	var (
		out []byte
		err error
	)
	if format == "yaml" {
		out, err = yaml.Marshal(items)
	} else {
		out, err = json.MarshalIndent(items, "", "  ")
		out = append(out, '\n')
	}
	if err != nil {
		ui.Fail("export: " + err.Error())
		return 1
	}
	ui.Stdout.Write(out)
	return 0
}

func doServe(cfg *config.Config) int {
	logger, closeLog, err := newLogger(cfg, ui.Stderr)
	if err != nil {
		ui.Fail("log: " + err.Error())
		return 1
	}
	defer closeLog()

	st, closeStore, err := openStore(cfg, logger, logging.FaultHandler(logger))
	if err != nil {
		ui.Fail("open store: " + err.Error())
		return 1
	}
	defer closeStore()

	schemas, err := server.TodoSchemas()
	if err != nil {
		ui.Fail("schemas: " + err.Error())
		return 1
	}
	srv := server.New(st, server.WithLogger(logger), server.WithSchemas(cfg.Collection, schemas))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("serving", "backend", cfg.Backend, "collection", cfg.Collection)
	if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
		ui.Fail("serve: " + err.Error())
		return 1
	}
	return 0
}
