package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "mbsheets",
		Short:        "Spreadsheet-driven event queries for MultiBaas and EVM nodes",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	customQueryCmd := &cobra.Command{
		Use:   "customquery",
		Short: "Run a custom event query described by a two-row sheet",
		RunE:  runCustomQuery,
	}
	addBackendFlags(customQueryCmd.Flags())
	customQueryCmd.Flags().String("in", "", "input sheet (.csv, .xlsx, .json)")
	customQueryCmd.Flags().String("sheet", "", "sheet name for xlsx input (default first sheet)")
	customQueryCmd.Flags().String("limit", "", "row limit, -1 for all (default 10)")
	customQueryCmd.Flags().String("offset", "", "row offset (default 0)")
	customQueryCmd.Flags().String("group-by", "", "group-by field")
	customQueryCmd.Flags().String("order-by", "", "order-by field")
	addOutputFlags(customQueryCmd.Flags())
	root.AddCommand(customQueryCmd)

	templateCmd := &cobra.Command{
		Use:   "template",
		Short: "Emit an empty custom query header",
		RunE:  runTemplate,
	}
	templateCmd.Flags().Int("selects", 1, "number of projection groups")
	templateCmd.Flags().Int("filters", 0, "number of rule groups")
	addOutputFlags(templateCmd.Flags())
	root.AddCommand(templateCmd)

	queryCmd := &cobra.Command{
		Use:   "query NAME",
		Short: "Run a saved event query",
		Args:  cobra.ExactArgs(1),
		RunE:  runSavedQuery,
	}
	addBackendFlags(queryCmd.Flags())
	queryCmd.Flags().String("limit", "", "row limit, -1 for all (default 10)")
	queryCmd.Flags().String("offset", "", "row offset (default 0)")
	addOutputFlags(queryCmd.Flags())
	root.AddCommand(queryCmd)

	eventsCmd := &cobra.Command{
		Use:   "events ADDRESS",
		Short: "List events emitted by a contract address or label",
		Args:  cobra.ExactArgs(1),
		RunE:  runEvents,
	}
	addBackendFlags(eventsCmd.Flags())
	eventsCmd.Flags().String("limit", "", "row limit, -1 for all (default 10)")
	eventsCmd.Flags().String("offset", "", "row offset (default 0)")
	addOutputFlags(eventsCmd.Flags())
	root.AddCommand(eventsCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the spreadsheet functions over HTTP",
		RunE:  runServe,
	}
	addBackendFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "listen address")
	serveCmd.Flags().String("server-api-key", "", "bearer token required by /v1 routes")
	root.AddCommand(serveCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded query runs, newest first",
		RunE:  runHistory,
	}
	historyCmd.Flags().String("run-log", "", "JSONL run log path")
	historyCmd.Flags().String("pg-dsn", "", "Postgres DSN (takes precedence over --run-log)")
	historyCmd.Flags().Int("limit", 20, "number of runs to list")
	historyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addBackendFlags(fs *pflag.FlagSet) {
	fs.String("backend", "multibaas", "query backend (multibaas, chain)")
	fs.String("deployment", "", "MultiBaas deployment ID or base URL")
	fs.String("api-key", "", "MultiBaas API key")
	fs.Duration("timeout", 30*time.Second, "HTTP request timeout")
	fs.Float64("requests-per-second", 10, "outbound request rate")
	fs.Int("burst", 5, "outbound request burst")
	fs.String("rpc", "", "EVM JSON-RPC URL (chain backend)")
	fs.Uint64("from", 0, "start block (inclusive, chain backend)")
	fs.Uint64("to", 0, "end block (inclusive), 0 means latest")
	fs.Uint64("batch-size", 2000, "blocks per eth_getLogs call")
	fs.StringSlice("address", nil, "contract addresses (comma-separated)")
	fs.StringSlice("label", nil, "contract labels (comma-separated label=address)")
	fs.StringSlice("abi", nil, "ABI JSON files (comma-separated)")
	fs.Int("page-size", 100, "rows per backend page")
	fs.Int("max-rows", 10000, "hard cap on collected rows")
	fs.Int("max-retries", 3, "maximum retry attempts")
	fs.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fs.String("time-format", "2006-01-02 15:04:05", "Go layout for timestamp cells")
	fs.String("time-zone", "UTC", "IANA zone for timestamp cells")
	fs.String("run-log", "", "append query runs to this JSONL file")
	fs.String("pg-dsn", "", "record query runs in Postgres")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addOutputFlags(fs *pflag.FlagSet) {
	fs.String("out", "", "output file (.json, .csv, .xlsx); stdout when empty")
	fs.String("format", "json", "stdout format (json, csv)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
