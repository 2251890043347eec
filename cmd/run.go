package cmd

import (
	"context"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/net-toolbox/onboarder/internal/app"
	"github.com/net-toolbox/onboarder/internal/inventory"
	"github.com/net-toolbox/onboarder/internal/metrics"
	"github.com/net-toolbox/onboarder/internal/model"
	"github.com/net-toolbox/onboarder/internal/store"
	"github.com/net-toolbox/onboarder/internal/version"
	"github.com/net-toolbox/onboarder/internal/worker"

	// nolint:gosec // profiling endpoint listens on localhost.
	_ "net/http/pprof"
)

var cmdRun = &cobra.Command{
	Use:   "run",
	Short: "Run the onboarding worker, listening for tasks on the queue",
	Run: func(cmd *cobra.Command, _ []string) {
		runWorker(cmd.Context())
	},
}

func runWorker(ctx context.Context) {
	onboarder, err := app.New(ctx, model.AppKindWorker, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	metrics.ListenAndServe()
	version.ExportBuildInfoMetric()

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	// routine listens for termination signal and cancels the context
	go func() {
		<-onboarder.TermCh
		onboarder.Logger.Info("got TERM signal, exiting...")
		cancelFunc()
	}()

	endpoint, token, err := onboarder.NetboxParams()
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	inv := inventory.NewNetboxInventory(endpoint, token, onboarder.Logger)

	storage, err := store.NewDBStore(onboarder.Config.TaskDBPath)
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	defer storage.Close() //nolint:errcheck // shutdown path

	natsURL, natsCreds, connectTimeout, err := onboarder.NatsParams()
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	opts := []nats.Option{nats.Timeout(connectTimeout)}
	if natsCreds != "" {
		opts = append(opts, nats.UserCredentials(natsCreds))
	}

	conn, err := nats.Connect(natsURL, opts...)
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	defer conn.Close()

	orchestrator := worker.NewOrchestrator(storage, inv, onboarder.Config.Settings, onboarder.Logger)
	listener := worker.NewListener(orchestrator, conn, onboarder.Config.Concurrency, onboarder.Logger)

	if err := listener.Listen(ctx); err != nil {
		onboarder.Logger.Fatal(err)
	}
}

func init() {
	rootCmd.AddCommand(cmdRun)
}
