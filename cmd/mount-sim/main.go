// mount-sim exercises the motion core against simulated hardware.
//
// It wires the simulated driver and encoder to the real control loop,
// runs a goto/track scenario, and can inject a stall partway through to
// demonstrate fault handling. Useful for protocol and automation
// development without a mount on the bench.
//
// Usage:
//
//	mount-sim [-config mount.cfg] [options]
//
// Options:
//
//	-config string        Mount configuration file (optional, defaults apply)
//	-ra float             Target right ascension, hours
//	-dec float            Target declination, degrees
//	-duration duration    How long to run (default 2m)
//	-stall-after duration Inject an axis1 stall after this long (0 = never)
//	-stall-fraction float Fraction of steps that still move when stalled
//	-telemetry string     Telemetry listen address (empty = disabled)
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nightwatch-mount/pkg/config"
	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/encoder"
	"nightwatch-mount/pkg/log"
	"nightwatch-mount/pkg/loop"
	"nightwatch-mount/pkg/metrics"
	"nightwatch-mount/pkg/mount"
	"nightwatch-mount/pkg/telemetry"
	"nightwatch-mount/pkg/tracking"
)

func main() {
	configFile := flag.String("config", "", "Mount configuration file (optional)")
	raHours := flag.Float64("ra", -1, "Target right ascension, hours (-1 = current position)")
	decDeg := flag.Float64("dec", 45.0, "Target declination, degrees")
	duration := flag.Duration("duration", 2*time.Minute, "How long to run")
	stallAfter := flag.Duration("stall-after", 0, "Inject an axis1 stall after this long (0 = never)")
	stallFraction := flag.Float64("stall-fraction", 0.05, "Fraction of steps delivered while stalled")
	telemetryAddr := flag.String("telemetry", "", "Telemetry listen address (empty = disabled)")
	flag.Parse()

	logger := log.New("mount-sim")

	cfg, err := loadConfig(*configFile)
	if err != nil {
		logger.Error("config error: %v", err)
		os.Exit(1)
	}

	drv := driver.NewSim()
	encSim := encoder.NewSim(drv,
		cfg.Axis1.StepsPerDegree, cfg.Axis2.StepsPerDegree,
		cfg.Encoder.CountsPerRev1)
	sampler := encoder.NewSampler(encSim, 50*time.Millisecond, logger.Child("encoder"))

	tracker := tracking.New(cfg.Tracking, coords.Site{
		LatitudeDeg:    cfg.Site.LatitudeDeg,
		LongitudeDeg:   cfg.Site.LongitudeDeg,
		ElevationM:     cfg.Site.ElevationM,
		UTCOffsetHours: cfg.Site.UTCOffsetHours,
	}, cfg.Axis1.StepsPerDegree)

	coord, err := mount.New(mount.Options{
		Config:  cfg,
		Driver:  drv,
		Encoder: sampler,
		Tracker: tracker,
	})
	if err != nil {
		logger.Error("mount init failed: %v", err)
		os.Exit(1)
	}

	registry := metrics.NewRegistry()
	metrics.NewMountMetrics(registry)

	lp := loop.New(cfg.TickHz, coord)
	lp.AfterTick = func() { coord.Ring().Drain(logger) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sampler.Run(ctx)
	go lp.Run(ctx)

	if *telemetryAddr != "" {
		srv := telemetry.New(telemetry.Config{Addr: *telemetryAddr}, coord,
			registry, logger.Child("telemetry"))
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("telemetry server: %v", err)
			}
		}()
		defer srv.Stop()
	}

	// Aim at the requested sky position, or just track from here.
	if *raHours >= 0 {
		target := coords.Equatorial{RAHours: *raHours, DecDeg: *decDeg}
		if err := coord.SetTarget(target); err != nil {
			logger.Error("set target rejected: %v", err)
			os.Exit(1)
		}
		logger.WithFields(log.Fields{"ra": *raHours, "dec": *decDeg}).Info("goto issued")
	} else {
		if err := coord.StartTracking(); err != nil {
			logger.Error("start tracking rejected: %v", err)
			os.Exit(1)
		}
		logger.Info("tracking from current position")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var stallCh <-chan time.Time
	if *stallAfter > 0 {
		stallCh = time.After(*stallAfter)
	}
	done := time.After(*duration)
	report := time.NewTicker(2 * time.Second)
	defer report.Stop()

	for {
		select {
		case <-report.C:
			printStatus(coord.Status())
		case <-stallCh:
			logger.WithField("fraction", *stallFraction).Warn("injecting axis1 stall")
			drv.InjectStall(coords.Axis1, *stallFraction)
			stallCh = nil
		case <-sigCh:
			logger.Info("interrupted")
			return
		case <-done:
			printStatus(coord.Status())
			logger.Info("scenario complete")
			return
		}
	}
}

func printStatus(st mount.Status) {
	fmt.Printf("[%s] state=%-8s pier=%-4s axis1=%9.4f° axis2=%9.4f° ra=%6.3fh dec=%7.3f°",
		st.Time.Format("15:04:05"), st.State, st.PierSide,
		st.Axis1Deg, st.Axis2Deg, st.RAHours, st.DecDeg)
	if st.Fault != "" {
		fmt.Printf(" FAULT=%s", st.Fault)
	}
	if st.EncoderDegraded {
		fmt.Printf(" (open loop)")
	}
	fmt.Println()
}

func loadConfig(path string) (*config.MountConfig, error) {
	if path != "" {
		return config.LoadMount(path)
	}
	return config.DefaultMount()
}
