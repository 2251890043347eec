package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/net-toolbox/onboarder/internal/app"
	"github.com/net-toolbox/onboarder/internal/inventory"
	"github.com/net-toolbox/onboarder/internal/model"
	"github.com/net-toolbox/onboarder/internal/store"
	"github.com/net-toolbox/onboarder/internal/worker"
)

var cmdOnboard = &cobra.Command{
	Use:   "onboard",
	Short: "Onboard a single device synchronously and print the task outcome",
	Run: func(cmd *cobra.Command, _ []string) {
		runOnboard(cmd.Context())
	},
}

var (
	onboardAddress  string
	onboardSite     string
	onboardRole     string
	onboardPlatform string
	onboardPort     int
	onboardTimeout  int
	onboardUsername string
	onboardPassword string
	onboardSecret   string
)

func runOnboard(ctx context.Context) {
	onboarder, err := app.New(ctx, model.AppKindClient, cfgFile, logLevel)
	if err != nil {
		log.Fatal(err)
	}

	endpoint, token, err := onboarder.NetboxParams()
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	inv := inventory.NewNetboxInventory(endpoint, token, onboarder.Logger)

	task := model.NewTask(onboardAddress, onboardSite)
	task.RoleSlug = onboardRole
	task.PlatformSlug = onboardPlatform

	if onboardPort != 0 {
		task.Port = onboardPort
	}

	if onboardTimeout != 0 {
		task.TimeoutSeconds = onboardTimeout
	}

	// One-shot runs keep the task in memory only.
	storage := store.NewMemStore()
	if err := storage.Add(ctx, task); err != nil {
		onboarder.Logger.Fatal(err)
	}

	creds := model.Credentials{
		Username: onboardUsername,
		Password: onboardPassword,
		Secret:   onboardSecret,
	}

	orchestrator := worker.NewOrchestrator(storage, inv, onboarder.Config.Settings, onboarder.Logger)

	if err := orchestrator.Process(ctx, task.ID, creds); err != nil {
		onboarder.Logger.Fatal(err)
	}

	result, err := storage.ByID(ctx, task.ID)
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		onboarder.Logger.Fatal(err)
	}

	fmt.Println(string(out))

	if result.Status != model.StatusSucceeded {
		os.Exit(1)
	}
}

func init() {
	cmdOnboard.PersistentFlags().StringVar(&onboardAddress, "address", "", "management IP or FQDN of the device")
	cmdOnboard.PersistentFlags().StringVar(&onboardSite, "site", "", "inventory site slug the device belongs to")
	cmdOnboard.PersistentFlags().StringVar(&onboardRole, "role", "", "device role slug override")
	cmdOnboard.PersistentFlags().StringVar(&onboardPlatform, "platform", "", "platform slug override, skips fingerprinting")
	cmdOnboard.PersistentFlags().IntVar(&onboardPort, "port", model.DefaultSSHPort, "device SSH port (23 selects telnet)")
	cmdOnboard.PersistentFlags().IntVar(&onboardTimeout, "timeout", model.DefaultTimeoutSeconds, "connection timeout in seconds")
	cmdOnboard.PersistentFlags().StringVar(&onboardUsername, "username", "", "device login username")
	cmdOnboard.PersistentFlags().StringVar(&onboardPassword, "password", "", "device login password")
	cmdOnboard.PersistentFlags().StringVar(&onboardSecret, "secret", "", "device enable secret")

	if err := cmdOnboard.MarkPersistentFlagRequired("address"); err != nil {
		log.Fatal(err)
	}

	if err := cmdOnboard.MarkPersistentFlagRequired("site"); err != nil {
		log.Fatal(err)
	}

	rootCmd.AddCommand(cmdOnboard)
}
