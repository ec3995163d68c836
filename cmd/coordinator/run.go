// cmd/coordinator/run.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/spectro-coordinator/internal/config"
	"github.com/tamzrod/spectro-coordinator/internal/coordinator"
	"github.com/tamzrod/spectro-coordinator/internal/eventlog"
	"github.com/tamzrod/spectro-coordinator/internal/metrics"
	"github.com/tamzrod/spectro-coordinator/internal/poller"
	"github.com/tamzrod/spectro-coordinator/internal/publish"
)

func runCommand(a *app) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover all spectrometers and stream spectra until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), duration)
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	return cmd
}

func (a *app) run(parent context.Context, duration time.Duration) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	rt, err := a.setup()
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log

	runID := uuid.NewString()
	log.Header("spectro-coordinator %s run %s", version, runID)

	// --------------------
	// Metrics
	// --------------------

	var (
		promReg *prometheus.Registry
		m       *metrics.CoordinatorMetrics
	)
	if a.cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		promReg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m, err = metrics.NewCoordinatorMetrics(promReg, log.ErrorCount)
		if err != nil {
			return err
		}
	}

	// --------------------
	// MQTT (optional; acquisition runs without it)
	// --------------------

	var pub *publish.Publisher
	if a.cfg.MQTT.Enabled {
		pub, err = publish.Connect(a.cfg.MQTT, runID, log)
		if err != nil {
			log.Errorf("mqtt disabled: %v", err)
		} else {
			defer pub.Close()
			if a.cfg.MQTT.PublishLog {
				sink := pub.LogSink()
				log.AddSink(sink)
				defer log.RemoveSink(sink)
			}
		}
	}

	// --------------------
	// Discovery
	// --------------------

	c, err := coordinator.New(rt.gw, log, a.cfg, coordinator.WithMetrics(m))
	if err != nil {
		return err
	}
	n, err := c.Open()
	if err != nil {
		_ = shutdown(c)
		return err
	}
	if n == 0 {
		log.Infof("nothing to acquire")
		return shutdown(c)
	}

	serials := make([]string, n)
	for i, d := range c.Devices() {
		serials[i] = d.SerialNumber()
	}

	// --------------------
	// Workers + consumers
	// --------------------

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		consumeSamples(c.Samples(), serials, pub, log)
		return nil
	})
	g.Go(func() error {
		consumeTemperatures(c.Temperatures(), serials, pub, log)
		return nil
	})
	if promReg != nil {
		g.Go(func() error { return serveMetrics(gctx, a.cfg.Metrics, promReg, log) })
	}

	if err := c.StartAll(gctx); err != nil {
		log.Errorf("start acquisition: %v", err)
	}
	if *a.cfg.Acquisition.MonitorTemperature {
		if err := c.StartTemperature(gctx); err != nil {
			log.Errorf("start temperature monitor: %v", err)
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Infof("shutting down")
		return shutdown(c)
	})

	err = g.Wait()
	if errs := log.ErrorCount(); errs > 0 {
		log.Infof("%d errors retained", errs)
	}
	return err
}

// consumeSamples is the single consumer of delivered frames. It returns
// when the coordinator closes the channel.
func consumeSamples(in <-chan poller.Sample, serials []string, pub *publish.Publisher, log *eventlog.Log) {
	task := log.Task("consumer")
	for s := range in {
		if log.DebugEnabled() {
			task.Debugf("frame %d from %s: %d pixels, peak %.1f", s.Seq, serials[s.Index], len(s.Spectrum), peak(s.Spectrum))
		}
		if pub != nil {
			_ = pub.PublishSpectrum(serials[s.Index], s)
		}
	}
}

func consumeTemperatures(in <-chan poller.Temperature, serials []string, pub *publish.Publisher, log *eventlog.Log) {
	task := log.Task("consumer")
	for t := range in {
		task.Debugf("detector temperature %.2f °C", t.DegC)
		if pub != nil {
			_ = pub.PublishTemperature(serials[t.Index], t)
		}
	}
}

func peak(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v[1:] {
		m = max(m, x)
	}
	return m
}

func serveMetrics(ctx context.Context, cfg config.MetricsConfig, reg *prometheus.Registry, log *eventlog.Log) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Infof("metrics on http://%s%s", cfg.Listen, cfg.Path)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
