package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"earnings/internal/logger"
	"earnings/internal/trace"
)

const usage = `usage: earnings [-config path] <command> [flags] [args]

commands:
  auth                          log in to TD Ameritrade and cache the token
  quotes SYM...                 latest quotes
  balances                      account balances
  orders                        today's orders
  positions                     open positions
  chain [-dte N|-front|-back] [-itm] [-weeklies] SYM
  move SYM                      expected move for the configured expiration
  strangle SYM                  best strangle outside the expected move
  scan                          today's earnings from Finviz
  plan [-metrics-addr ADDR]     scan, then price a strangle per report
  trade open|close -price P -qty N SYM...
  trade replace -id ID -price P -qty N [-close] SYM...
  trade cancel -id ID
  eod [-date YYYY-MM-DD]        summarize the order journal

every command but auth accepts -json.
`

type command func(ctx context.Context, app *app, args []string) error

var commands = map[string]command{
	"auth":      runAuth,
	"quotes":    runQuotes,
	"balances":  runBalances,
	"orders":    runOrders,
	"positions": runPositions,
	"chain":     runChain,
	"move":      runMove,
	"strangle":  runStrangle,
	"scan":      runScan,
	"plan":      runPlan,
	"trade":     runTrade,
	"eod":       runEOD,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	configPath := "config.yaml"
	if len(args) >= 2 && (args[0] == "-config" || args[0] == "--config") {
		configPath, args = args[1], args[2:]
	}
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		if err := trace.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown tracer: %v\n", err)
		}
	}()

	a, err := newApp(ctx, configPath, stdin, stdout)
	if err != nil {
		logger.ErrorWithErr(ctx, "Startup failed", err)
		return 1
	}

	if err := cmd(ctx, a, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		logger.ErrorWithErr(ctx, "Command failed", err, "command", args[0])
		return 1
	}
	return 0
}
