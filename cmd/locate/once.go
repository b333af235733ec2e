package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/locator"
)

func newOnceCmd() *cobra.Command {
	var (
		targetID string
		radius   float64
	)
	cmd := &cobra.Command{
		Use:   "once",
		Short: "Acquire a single position, falling back tier by tier, and optionally validate it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tr, err := loadSettings()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			lc := locatorConfig(cfg.Locator)
			httpClient := &http.Client{Timeout: lc.NetworkTimeout}
			acq := locator.NewAcquirer(
				locator.NewReplaySource(tr),
				locator.NewHTTPNetworkSource(apiURL, httpClient, locator.DefaultNetworkOptions()),
				lc,
				locator.WithLogger(slog.Default()),
				locator.WithTransitionObserver(func(from locator.State, ev locator.Event, to locator.State) {
					slog.Debug("transition", "from", from.String(), "event", ev.String(), "to", to.String())
				}),
			)

			fix, err := acq.Acquire(ctx)
			if err != nil {
				return fmt.Errorf("%s (%w)", locator.UserMessage(err), err)
			}
			if err := printJSON(cmd.OutOrStdout(), fix); err != nil {
				return err
			}

			if targetID == "" {
				return nil
			}
			res, err := newAPIClient(apiURL, httpClient).validate(ctx, fix, targetID, radius)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&targetID, "target", "", "validate the acquired position against this target id")
	cmd.Flags().Float64Var(&radius, "radius", 0, "validation radius in meters (server default when 0)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	if raw, ok := v.(json.RawMessage); ok {
		var pretty any
		if err := json.Unmarshal(raw, &pretty); err == nil {
			v = pretty
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeFix is the one-line form used by the track command.
func describeFix(c domain.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f ±%.0fm (%s)", c.Latitude, c.Longitude, c.PrecisionMeters, c.Method)
}
