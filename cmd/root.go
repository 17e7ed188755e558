// Package cmd wires the command line interface to the core operations. The
// CLI is a consumer of the typed core API; it carries entity ids through and
// never resolves display names back to ids.
package cmd

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dentascan/dentascan-go/internal/auth"
	"github.com/dentascan/dentascan-go/internal/clinic"
	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/detector"
	"github.com/dentascan/dentascan-go/internal/ingest"
	"github.com/dentascan/dentascan-go/internal/observability"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dentascan",
		Short: "DentaScan-Go patient imaging CLI",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		userCommand(settings),
		patientCommand(settings),
		xrayCommand(settings),
	)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Main.DataRoot, "dataroot", settings.Main.DataRoot, "Root directory for patient image storage and the database")

	rootCmd.PersistentFlags().String("username", "", "Username of the account to operate as")
	rootCmd.PersistentFlags().String("password", "", "Password of the account to operate as")
}

// openStore opens the configured datastore and returns it with a closer.
func openStore(settings *conf.Settings) (datastore.Interface, func(), error) {
	ds := datastore.New(settings)
	if ds == nil {
		return nil, nil, fmt.Errorf("no database backend enabled")
	}
	if err := ds.Open(); err != nil {
		return nil, nil, fmt.Errorf("opening datastore: %w", err)
	}
	return ds, func() { _ = ds.Close() }, nil
}

// openSession authenticates the user named by the global flags and returns
// a scoped session over an open datastore.
func openSession(cmd *cobra.Command, settings *conf.Settings) (*clinic.Session, func(), error) {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")
	if username == "" {
		return nil, nil, fmt.Errorf("--username is required")
	}

	ds, closer, err := openStore(settings)
	if err != nil {
		return nil, nil, err
	}

	userID, err := auth.NewService(ds).Authenticate(username, password)
	if err != nil {
		closer()
		return nil, nil, err
	}

	pipeline, err := newPipeline(settings, ds)
	if err != nil {
		closer()
		return nil, nil, err
	}

	return clinic.NewSession(userID, settings, ds, pipeline), closer, nil
}

// newPipeline assembles the ingestion pipeline with its metrics.
func newPipeline(settings *conf.Settings, ds datastore.Interface) (*ingest.Pipeline, error) {
	metrics, err := observability.NewIngestMetrics(prometheus.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}
	return ingest.New(settings, ds, detector.NewScriptDetector(settings), metrics), nil
}
