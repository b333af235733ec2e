package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/locator"
	"github.com/samirrijal/geofence/internal/pkg/config"
	"github.com/samirrijal/geofence/internal/pkg/logging"
)

var (
	trackFile string
	apiURL    string
	verbose   bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "geofence-locate",
		Short:         "Acquire positions from a recorded track and check them against the proximity API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if verbose {
				level = "debug"
			}
			logging.Setup(level, "text")
		},
	}

	root.PersistentFlags().StringVar(&trackFile, "track", "", "YAML track file to replay as the device position source")
	root.PersistentFlags().StringVar(&apiURL, "api", "", "proximity API base URL (default from config locator.api_url)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log state machine transitions")
	_ = root.MarkPersistentFlagRequired("track")

	root.AddCommand(newOnceCmd())
	root.AddCommand(newTrackCmd())
	return root
}

// loadSettings reads the shared config and the track named by --track.
func loadSettings() (*config.Config, *locator.Track, error) {
	cfg, err := config.Load("geofence-locate")
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if apiURL == "" {
		apiURL = cfg.Locator.APIURL
	}
	tr, err := locator.LoadTrack(trackFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, tr, nil
}

func locatorConfig(c config.LocatorConfig) locator.Config {
	lc := locator.DefaultConfig()
	if c.PreciseTimeout > 0 {
		lc.Precise.Timeout = c.PreciseTimeout
	}
	if c.ImpreciseTimeout > 0 {
		lc.Imprecise.Timeout = c.ImpreciseTimeout
	}
	if c.ImpreciseMaxAge > 0 {
		lc.Imprecise.MaximumAge = c.ImpreciseMaxAge
	}
	if c.NetworkTimeout > 0 {
		lc.NetworkTimeout = c.NetworkTimeout
	}
	r := c.PlausibilityRegion
	lc.Region = domain.Bounds{MinLat: r.MinLat, MinLon: r.MinLon, MaxLat: r.MaxLat, MaxLon: r.MaxLon}
	return lc
}
