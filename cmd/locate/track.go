package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/locator"
)

func newTrackCmd() *cobra.Command {
	var (
		radius       float64
		limit        int
		highAccuracy bool
	)
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Replay a track as a continuous session and report the nearest targets for every fix",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, tr, err := loadSettings()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			lc := locatorConfig(cfg.Locator)
			opts := lc.Imprecise
			if highAccuracy {
				opts = lc.Precise
			}

			client := newAPIClient(apiURL, &http.Client{Timeout: lc.NetworkTimeout})
			out := cmd.OutOrStdout()
			var mu sync.Mutex

			source := &endObserver{PositionSource: locator.NewReplaySource(tr), ended: make(chan (<-chan struct{}), 1)}
			tracker := locator.NewTracker(source, slog.Default())
			defer tracker.Close()

			failed := make(chan error, 1)
			session, err := tracker.Start(opts,
				func(fix domain.Coordinate) {
					res, err := client.nearest(ctx, fix, radius, limit)
					mu.Lock()
					defer mu.Unlock()
					fmt.Fprintln(out, describeFix(fix))
					if err != nil {
						fmt.Fprintln(out, "  nearest:", err)
						return
					}
					_ = printJSON(out, res)
				},
				func(err error) {
					mu.Lock()
					fmt.Fprintln(out, "  position error:", locator.UserMessage(err))
					mu.Unlock()
					if !errors.Is(err, domain.ErrGeolocationTimeout) {
						select {
						case failed <- err:
						default:
						}
					}
				},
			)
			if err != nil {
				return err
			}
			defer session.Stop()

			var ended <-chan struct{}
			select {
			case ended = <-source.ended:
			default:
			}

			select {
			case <-ended:
				select {
				case err := <-failed:
					return err
				default:
				}
			case err := <-failed:
				return err
			case <-ctx.Done():
			}

			if last, ok := session.LastKnown(); ok {
				fmt.Fprintln(out, "last known:", describeFix(last))
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&radius, "radius", 0, "search radius in meters (server default when 0)")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum targets reported per fix")
	cmd.Flags().BoolVar(&highAccuracy, "high-accuracy", false, "watch with the precise tier options")
	return cmd
}

// endObserver reports when a watch stops on its own, for sources whose
// handles expose Done.
type endObserver struct {
	locator.PositionSource
	ended chan (<-chan struct{})
}

func (o *endObserver) Watch(opts locator.PositionOptions, onPosition func(domain.Coordinate), onError func(error)) (locator.WatchHandle, error) {
	h, err := o.PositionSource.Watch(opts, onPosition, onError)
	if err != nil {
		return nil, err
	}
	if d, ok := h.(interface{ Done() <-chan struct{} }); ok {
		select {
		case o.ended <- d.Done():
		default:
		}
	}
	return h, nil
}

var _ locator.PositionSource = (*endObserver)(nil)
