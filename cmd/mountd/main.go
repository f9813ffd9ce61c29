// mountd runs the Nightwatch telescope mount motion core.
//
// It loads the mount configuration, starts the fixed-rate control loop,
// connects the absolute-encoder bridge when one is configured, and serves
// status, metrics and a websocket feed for the observatory automation.
// On SIGINT/SIGTERM the mount parks before the process exits.
//
// Usage:
//
//	mountd -config /etc/nightwatch/mount.cfg [options]
//
// Options:
//
//	-config string     Mount configuration file (required)
//	-logfile string    Log file path (default: stdout)
//	-telemetry string  Override telemetry listen address
//	-no-park           Skip parking on shutdown
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
	"strings"
	"syscall"
	"time"

	"nightwatch-mount/pkg/config"
	"nightwatch-mount/pkg/coords"
	"nightwatch-mount/pkg/driver"
	"nightwatch-mount/pkg/encoder"
	merrors "nightwatch-mount/pkg/errors"
	"nightwatch-mount/pkg/log"
	"nightwatch-mount/pkg/loop"
	"nightwatch-mount/pkg/metrics"
	"nightwatch-mount/pkg/mount"
	"nightwatch-mount/pkg/persist"
	"nightwatch-mount/pkg/serial"
	"nightwatch-mount/pkg/telemetry"
	"nightwatch-mount/pkg/tracking"
)

func main() {
	configFile := flag.String("config", "", "Mount configuration file (required)")
	logFile := flag.String("logfile", "", "Log file path (default: stdout)")
	telemetryAddr := flag.String("telemetry", "", "Override telemetry listen address")
	noPark := flag.Bool("no-park", false, "Skip parking on shutdown")
	flag.Parse()

	if *configFile == "" {
		fmt.Fprintf(os.Stderr, "Error: -config is required\n")
		flag.Usage()
		os.Exit(1)
	}

	logger := log.New("mountd")
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logger.SetWriter(f)
		logger.SetColorize(false)
	}

	cfg, err := config.LoadMount(*configFile)
	if err != nil {
		logger.Error("config error: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(log.ParseLevel(cfg.LogLevel))

	logger.WithFields(log.Fields{
		"config":  *configFile,
		"tick_hz": cfg.TickHz,
		"site":    fmt.Sprintf("%.4f,%.4f", cfg.Site.LatitudeDeg, cfg.Site.LongitudeDeg),
	}).Info("mountd starting")

	registry := metrics.NewRegistry()
	mm := metrics.NewMountMetrics(registry)

	// The step generator runs on the drive MCU; the in-process backend
	// models it and is the integration point for a hardware transport.
	drv := driver.NewSim()

	var sampler *encoder.Sampler
	var encSrc mount.EncoderSource
	if cfg.Encoder.Device != "" {
		port, err := serial.Open(serial.Config{
			Device:   cfg.Encoder.Device,
			BaudRate: cfg.Encoder.Baud,
		})
		if err != nil {
			logger.Error("encoder bridge open failed: %v", err)
			os.Exit(1)
		}
		defer port.Close()

		bridge := encoder.NewBridge(port, encoder.BridgeConfig{
			Axis1CountsPerRev: cfg.Encoder.CountsPerRev1,
			Axis2CountsPerRev: cfg.Encoder.CountsPerRev2,
		})
		if ver, err := bridge.Version(); err == nil {
			logger.WithField("version", ver).Info("encoder bridge connected")
		} else {
			logger.Warn("encoder bridge version query failed: %v", err)
		}

		interval := time.Duration(cfg.Encoder.PollIntervalSec * float64(time.Second))
		sampler = encoder.NewSampler(bridge, interval, logger.Child("encoder"))
		encSrc = sampler
	} else {
		logger.Warn("no encoder device configured, running open loop")
	}

	tracker := tracking.New(cfg.Tracking, site(cfg), cfg.Axis1.StepsPerDegree)
	if cfg.Tracking.PECEnabled && cfg.Tracking.PECTablePath != "" {
		table, err := persist.LoadPECTable(cfg.Tracking.PECTablePath,
			cfg.Tracking.PECBufferSize, cfg.Tracking.WormPeriodSteps)
		if err != nil {
			logger.Error("pec table load failed: %v", err)
			os.Exit(1)
		}
		tracker.SetPEC(table)
		logger.WithField("entries", table.Len()).Info("pec table loaded")
	}

	var restore *persist.ParkState
	if cfg.Policy.ParkStatePath != "" {
		restore, err = persist.LoadParkState(cfg.Policy.ParkStatePath)
		if err != nil {
			logger.Error("park state load failed: %v", err)
			os.Exit(1)
		}
		if restore != nil {
			logger.WithFields(log.Fields{
				"parked":    restore.Parked,
				"pier_side": restore.PierSide,
			}).Info("restored mount state")
		}
	}

	coord, err := mount.New(mount.Options{
		Config:  cfg,
		Driver:  drv,
		Encoder: encSrc,
		Tracker: tracker,
		Restore: restore,
	})
	if err != nil {
		logger.Error("mount init failed: %v", err)
		os.Exit(1)
	}

	lp := loop.New(cfg.TickHz, coord)
	lp.AfterTick = afterTick(cfg, coord, lp, mm, logger.Child("mount"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sampler != nil {
		go sampler.Run(ctx)
	}

	if cfg.Telemetry.Enabled {
		addr := cfg.Telemetry.Addr
		if *telemetryAddr != "" {
			addr = *telemetryAddr
		}
		srv := telemetry.New(telemetry.Config{Addr: addr}, coord, registry,
			logger.Child("telemetry"))
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("telemetry server: %v", err)
			}
		}()
		defer srv.Stop()
	}

	go lp.Run(ctx)

	if cfg.Tracking.Autostart {
		if err := coord.StartTracking(); err != nil {
			logger.Warn("tracking autostart rejected: %v", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")

	if !*noPark {
		parkAndWait(coord, logger)
	}
	cancel()
	logger.Info("mountd stopped")
}

// parkAndWait requests a park and waits for it to complete, bounded so a
// faulted mount cannot wedge shutdown.
func parkAndWait(coord *mount.Coordinator, logger *log.Logger) {
	if err := coord.Park(); err != nil {
		logger.Warn("shutdown park rejected: %v", err)
		return
	}
	logger.Info("parking before shutdown")

	deadline := time.After(3 * time.Minute)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			st := coord.Status()
			if st.State == mount.StateParked {
				logger.Info("mount parked")
				return
			}
			if st.State == mount.StateFault {
				logger.Error("park failed: %s", st.Fault)
				return
			}
		case <-deadline:
			logger.Error("park timed out")
			return
		}
	}
}

// afterTick drains deferred logs, persists queued park state and updates
// metrics. Runs on the loop goroutine after each tick body, where I/O is
// allowed.
func afterTick(cfg *config.MountConfig, coord *mount.Coordinator, lp *loop.Loop,
	mm *metrics.MountMetrics, logger *log.Logger) func() {
	var lastState mount.State
	var lastOverruns int64
	first := true

	return func() {
		coord.Ring().Drain(logger)

		if st := coord.PendingPersist(); st != nil && cfg.Policy.ParkStatePath != "" {
			if err := persist.SaveParkState(cfg.Policy.ParkStatePath, st); err != nil {
				logger.Error("park state write failed: %v", err)
			} else {
				mm.PersistWrites.Inc(nil)
			}
		}

		stats := lp.Stats()
		mm.TickDuration.Observe(nil, stats.LastTickSec)
		if d := int64(stats.Overruns) - lastOverruns; d > 0 {
			mm.TickOverruns.Add(nil, uint64(d))
			lastOverruns = int64(stats.Overruns)
		}

		st := coord.Status()
		mm.ObserveAxis("axis1", st.Axis1Deg, st.Axis1DegPerSec, st.Axis1BacklashSteps)
		mm.ObserveAxis("axis2", st.Axis2Deg, st.Axis2DegPerSec, st.Axis2BacklashSteps)
		if st.EncoderDegraded {
			mm.EncoderDegraded.Set(nil, 1)
		} else {
			mm.EncoderDegraded.Set(nil, 0)
		}
		mm.RejectedCorrections.Set(nil, float64(st.RejectedCorrections))

		if first {
			lastState = st.State
			first = false
			return
		}
		if st.State != lastState {
			mm.StateTransitions.Inc(metrics.Labels{
				"from": lastState.String(),
				"to":   st.State.String(),
			})
			if st.State == mount.StateFault {
				mm.Faults.Inc(nil)
				switch {
				case strings.Contains(st.Fault, string(merrors.ErrStallDetected)):
					mm.StallEvents.Inc(nil)
				case strings.Contains(st.Fault, string(merrors.ErrLimitExceeded)):
					mm.LimitEvents.Inc(nil)
				}
			}
			lastState = st.State
		}
	}
}

func site(cfg *config.MountConfig) coords.Site {
	return coords.Site{
		LatitudeDeg:    cfg.Site.LatitudeDeg,
		LongitudeDeg:   cfg.Site.LongitudeDeg,
		ElevationM:     cfg.Site.ElevationM,
		UTCOffsetHours: cfg.Site.UTCOffsetHours,
	}
}
