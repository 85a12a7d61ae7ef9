// Package main is the EIS client entrypoint. It loads Hioki exports from disk
// and sends them to the ingestion server, or watches the server's event stream.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eis-ingest-be/internal/config"
	"eis-ingest-be/internal/pkg/logger"
	"eis-ingest-be/pkg/client"
	"eis-ingest-be/pkg/dataset"
	"eis-ingest-be/pkg/events"
	pktNats "eis-ingest-be/pkg/nats"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	cfg = config.Load()

	serverURL  string
	timeoutSec int
	verbose    bool
	natsURL    string
	natsSubj   string
	eventType  string

	rootCmd = &cobra.Command{
		Use:           "client",
		Short:         "EIS telemetry client.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run [data_dir]",
		Short: "Sends every dataset under data_dir to the server.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runDatasets,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Prints events published by the server to NATS.",
		Args:  cobra.NoArgs,
		RunE:  watchEvents,
	}
)

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func clientLogger() logger.ILogger {
	if verbose {
		return logger.NewZapLogger(cfg.Logging.Directory+"/client.log", false)
	}
	return logger.NewIsolatedLogger(cfg.Logging.Directory + "/client.log")
}

func runDatasets(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	dataDir := cfg.Client.MockDataDir
	if len(args) == 1 {
		dataDir = args[0]
	}

	log := clientLogger()
	defer func() { _ = log.Sync() }()

	sets, err := dataset.NewLoader(dataDir, log).Load()
	if err != nil {
		return errors.Wrap(err, "load datasets failed")
	}
	if len(sets) == 0 {
		color.Yellow("No datasets found under %s", dataDir)
		return nil
	}
	color.Cyan("Sending %d dataset(s) from %s to %s", len(sets), dataDir, serverURL)

	factory := client.HTTPChannelFactory(serverURL, time.Duration(timeoutSec)*time.Second)
	report, err := client.NewDriver(factory, log).Run(ctx, sets)

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	if err != nil {
		return errors.Wrap(err, "run datasets failed")
	}
	if report.Abandoned > 0 {
		color.Yellow("%d dataset(s) abandoned after transport faults", report.Abandoned)
	}
	return nil
}

func watchEvents(cmd *cobra.Command, _ []string) error {
	if natsURL == "" {
		return errors.New("NATS url is required (--nats or NATS_URL)")
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	sub, err := pktNats.NewSubscriber(natsURL, natsSubj)
	if err != nil {
		return errors.Wrap(err, "connect to NATS failed")
	}
	defer sub.Close()

	out := cmd.OutOrStdout()
	err = sub.Subscribe(ctx, eventType, "", func(_ context.Context, e events.Event) error {
		data, err := json.Marshal(e.Payload())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s %s\n", color.CyanString(e.EventType()), data)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "subscribe failed")
	}

	color.Green("Watching %s.%s, press Ctrl+C to stop", natsSubj, eventType)
	<-ctx.Done()
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also log to the console")

	runCmd.Flags().StringVar(&serverURL, "server", cfg.Client.ServerURL, "ingestion server base url")
	runCmd.Flags().IntVar(&timeoutSec, "timeout", cfg.Client.TimeoutSeconds, "per-call timeout in seconds")

	watchCmd.Flags().StringVar(&natsURL, "nats", cfg.App.NatsURL, "NATS server url")
	watchCmd.Flags().StringVar(&natsSubj, "subject", cfg.App.NatsSubject, "subject prefix the server publishes under")
	watchCmd.Flags().StringVar(&eventType, "type", ">", "event type to watch")

	rootCmd.AddCommand(
		runCmd,
		watchCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("%v", errors.Wrap(err, "execute root command failed"))
		os.Exit(1)
	}
}
