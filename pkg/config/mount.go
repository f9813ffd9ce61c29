// Typed mount configuration
//
// Parses the mount configuration file into an immutable MountConfig that is
// constructed once at startup and handed to component constructors. Defaults
// follow the reference hardware: NEMA17 steppers behind harmonic drives on a
// German equatorial mount, TMC5160 drivers, AMT103-V motor-side encoders.
//
// Copyright (C) 2026  Nightwatch Observatory
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package config

// AxisConfig holds the per-axis mechanical and electrical parameters.
type AxisConfig struct {
	Name string

	// Mechanics
	StepsPerDegree float64 // tracking-resolution microsteps per axis degree
	Reverse        bool

	// Rates; acceleration is expressed as time-to-full-rate, matching the
	// firmware convention.
	MaxRateDegPerSec float64
	AccelTimeSec     float64
	RapidStopTimeSec float64

	// Soft limits in axis degrees
	LimitMinDeg float64
	LimitMaxDeg float64

	// Encoder
	EncoderPPR int

	// Driver
	Microsteps     int // tracking resolution
	MicrostepsGoto int // slew resolution
	HoldCurrentMA  int
	RunCurrentMA   int
	GotoCurrentMA  int

	// Backlash takeup distance
	BacklashDeg float64
}

// AccelDegPerSec2 returns the slew acceleration limit.
func (a *AxisConfig) AccelDegPerSec2() float64 {
	if a.AccelTimeSec <= 0 {
		return a.MaxRateDegPerSec
	}
	return a.MaxRateDegPerSec / a.AccelTimeSec
}

// RapidStopDegPerSec2 returns the emergency-stop deceleration.
func (a *AxisConfig) RapidStopDegPerSec2() float64 {
	if a.RapidStopTimeSec <= 0 {
		return a.AccelDegPerSec2()
	}
	return a.MaxRateDegPerSec / a.RapidStopTimeSec
}

// EncoderCountsPerDegree returns quadrature counts per axis degree for a
// motor-side incremental encoder. StepsPerDegree already folds in the
// tracking microstep factor, so motor revolutions per axis degree is
// steps_per_degree / (200 * microsteps).
func (a *AxisConfig) EncoderCountsPerDegree() float64 {
	motorStepsPerRev := 200.0 * float64(a.Microsteps)
	if motorStepsPerRev == 0 {
		return 0
	}
	return a.StepsPerDegree / motorStepsPerRev * 4.0 * float64(a.EncoderPPR)
}

// SiteConfig holds the observing site, immutable after initialization.
type SiteConfig struct {
	LatitudeDeg    float64
	LongitudeDeg   float64
	ElevationM     float64
	UTCOffsetHours float64
}

// TrackingConfig holds tracking engine parameters.
type TrackingConfig struct {
	Autostart            bool
	RefractionEnabled    bool
	RefractionIntervalS  float64 // how often the refraction offset is recomputed
	BacklashRateSidereal float64 // takeup rate as a multiple of sidereal
	PECEnabled           bool
	PECBufferSize        int   // entries per worm revolution
	WormPeriodSteps      int64 // axis1 steps per worm revolution
	PECTablePath         string
}

// MountPolicy holds the coordinator's pier-side and parking policy.
type MountPolicy struct {
	PierSidePreferred    string // "best", "east", "west"
	PastMeridianLimitE   float64
	PastMeridianLimitW   float64
	ParkStrict           bool
	ParkStatusPreserved  bool
	ParkAxis1Deg         float64
	ParkAxis2Deg         float64
	ParkStatePath        string
	SlewToleranceDeg     float64 // arrival tolerance, Slewing -> Tracking
	HomeToleranceDeg     float64 // encoder-confirmed home tolerance
	ModeSwitchMaxDegSec  float64 // max |velocity| for a microstep mode switch
	StallWindowSec       float64
	StallMinSteps        int64   // commanded advance before the window can trip
	StallRatio           float64 // encoder/commanded advance below this trips
}

// EncoderConfig holds the absolute-encoder bridge settings. An empty
// device means the mount runs open loop.
type EncoderConfig struct {
	Device          string
	Baud            int
	CountsPerRev1   int64
	CountsPerRev2   int64
	PollIntervalSec float64
}

// TelemetryConfig holds the status/metrics server settings.
type TelemetryConfig struct {
	Enabled bool
	Addr    string
}

// MountConfig is the complete immutable configuration.
type MountConfig struct {
	Axis1     AxisConfig
	Axis2     AxisConfig
	Site      SiteConfig
	Tracking  TrackingConfig
	Policy    MountPolicy
	Encoder   EncoderConfig
	Telemetry TelemetryConfig

	TickHz   float64
	LogLevel string
}

// LoadMount reads the configuration file and builds a MountConfig.
func LoadMount(path string) (*MountConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return buildMount(cfg)
}

// DefaultMount builds a MountConfig entirely from defaults, for the
// simulator harness and tests.
func DefaultMount() (*MountConfig, error) {
	return buildMount(New())
}

func buildMount(cfg *Config) (*MountConfig, error) {
	mc := &MountConfig{}

	axis1, err := loadAxis(cfg, "axis1", AxisConfig{
		Name:             "axis1",
		StepsPerDegree:   24000.0,
		MaxRateDegPerSec: 4.0,
		AccelTimeSec:     3.0,
		RapidStopTimeSec: 2.0,
		LimitMinDeg:      -180,
		LimitMaxDeg:      180,
		EncoderPPR:       8192,
		Microsteps:       16,
		MicrostepsGoto:   4,
		HoldCurrentMA:    600,
		RunCurrentMA:     1200,
		GotoCurrentMA:    1500,
		BacklashDeg:      0.01,
	})
	if err != nil {
		return nil, err
	}
	mc.Axis1 = axis1

	axis2, err := loadAxis(cfg, "axis2", AxisConfig{
		Name:             "axis2",
		StepsPerDegree:   19200.0,
		MaxRateDegPerSec: 4.0,
		AccelTimeSec:     3.0,
		RapidStopTimeSec: 2.0,
		LimitMinDeg:      -180,
		LimitMaxDeg:      180,
		EncoderPPR:       8192,
		Microsteps:       16,
		MicrostepsGoto:   4,
		HoldCurrentMA:    600,
		RunCurrentMA:     1200,
		GotoCurrentMA:    1500,
		BacklashDeg:      0.01,
	})
	if err != nil {
		return nil, err
	}
	mc.Axis2 = axis2

	if err := loadSite(cfg, &mc.Site); err != nil {
		return nil, err
	}
	if err := loadTracking(cfg, &mc.Tracking); err != nil {
		return nil, err
	}
	if err := loadPolicy(cfg, &mc.Policy); err != nil {
		return nil, err
	}
	if err := loadEncoder(cfg, &mc.Encoder); err != nil {
		return nil, err
	}
	if err := loadTelemetry(cfg, &mc.Telemetry); err != nil {
		return nil, err
	}

	if cfg.HasSection("mount") {
		sec, err := cfg.Section("mount")
		if err != nil {
			return nil, err
		}
		if mc.TickHz, err = sec.GetFloatWithBounds("tick_hz", FloatBounds{Above: f(0)}, 100.0); err != nil {
			return nil, err
		}
		if mc.LogLevel, err = sec.Get("log_level", "info"); err != nil {
			return nil, err
		}
	} else {
		mc.TickHz = 100.0
		mc.LogLevel = "info"
	}

	return mc, nil
}

func loadAxis(cfg *Config, name string, def AxisConfig) (AxisConfig, error) {
	a := def
	if !cfg.HasSection(name) {
		return a, nil
	}
	sec, err := cfg.Section(name)
	if err != nil {
		return a, err
	}

	if a.StepsPerDegree, err = sec.GetFloatWithBounds("steps_per_degree", FloatBounds{Above: f(0)}, def.StepsPerDegree); err != nil {
		return a, err
	}
	if a.MaxRateDegPerSec, err = sec.GetFloatWithBounds("slew_rate", FloatBounds{Above: f(0)}, def.MaxRateDegPerSec); err != nil {
		return a, err
	}
	if a.AccelTimeSec, err = sec.GetFloatWithBounds("acceleration_time", FloatBounds{Above: f(0)}, def.AccelTimeSec); err != nil {
		return a, err
	}
	if a.RapidStopTimeSec, err = sec.GetFloatWithBounds("rapid_stop_time", FloatBounds{Above: f(0)}, def.RapidStopTimeSec); err != nil {
		return a, err
	}
	if a.LimitMinDeg, err = sec.GetFloat("limit_min", def.LimitMinDeg); err != nil {
		return a, err
	}
	if a.LimitMaxDeg, err = sec.GetFloat("limit_max", def.LimitMaxDeg); err != nil {
		return a, err
	}
	if a.LimitMinDeg >= a.LimitMaxDeg {
		return a, ErrOutOfRange(name, "limit_min", a.LimitMinDeg, "must be below limit_max")
	}
	if a.Reverse, err = sec.GetBool("reverse", def.Reverse); err != nil {
		return a, err
	}
	if a.EncoderPPR, err = sec.GetInt("encoder_ppr", def.EncoderPPR); err != nil {
		return a, err
	}
	if a.Microsteps, err = sec.GetInt("microsteps", def.Microsteps); err != nil {
		return a, err
	}
	if a.MicrostepsGoto, err = sec.GetInt("microsteps_goto", def.MicrostepsGoto); err != nil {
		return a, err
	}
	if a.HoldCurrentMA, err = sec.GetInt("hold_current", def.HoldCurrentMA); err != nil {
		return a, err
	}
	if a.RunCurrentMA, err = sec.GetInt("run_current", def.RunCurrentMA); err != nil {
		return a, err
	}
	if a.GotoCurrentMA, err = sec.GetInt("goto_current", def.GotoCurrentMA); err != nil {
		return a, err
	}
	if a.BacklashDeg, err = sec.GetFloatWithBounds("backlash", FloatBounds{Min: f(0)}, def.BacklashDeg); err != nil {
		return a, err
	}
	return a, nil
}

func loadSite(cfg *Config, site *SiteConfig) error {
	site.LatitudeDeg = 39.0
	site.LongitudeDeg = -117.0
	site.ElevationM = 1800.0
	site.UTCOffsetHours = -8.0
	if !cfg.HasSection("site") {
		return nil
	}
	sec, err := cfg.Section("site")
	if err != nil {
		return err
	}
	if site.LatitudeDeg, err = sec.GetFloatWithBounds("latitude", FloatBounds{Min: f(-90), Max: f(90)}, site.LatitudeDeg); err != nil {
		return err
	}
	if site.LongitudeDeg, err = sec.GetFloatWithBounds("longitude", FloatBounds{Min: f(-180), Max: f(180)}, site.LongitudeDeg); err != nil {
		return err
	}
	if site.ElevationM, err = sec.GetFloat("elevation", site.ElevationM); err != nil {
		return err
	}
	if site.UTCOffsetHours, err = sec.GetFloatWithBounds("timezone", FloatBounds{Min: f(-12), Max: f(14)}, site.UTCOffsetHours); err != nil {
		return err
	}
	return nil
}

func loadTracking(cfg *Config, tr *TrackingConfig) error {
	tr.Autostart = true
	tr.RefractionEnabled = true
	tr.RefractionIntervalS = 5.0
	tr.BacklashRateSidereal = 25.0
	tr.PECEnabled = true
	tr.PECBufferSize = 824
	// Default worm period: one entry per step would make the table a full
	// revolution; without a configured value assume one table entry per
	// worm step.
	tr.WormPeriodSteps = int64(tr.PECBufferSize)
	if !cfg.HasSection("tracking") {
		return nil
	}
	sec, err := cfg.Section("tracking")
	if err != nil {
		return err
	}
	if tr.Autostart, err = sec.GetBool("autostart", tr.Autostart); err != nil {
		return err
	}
	if tr.RefractionEnabled, err = sec.GetBool("refraction", tr.RefractionEnabled); err != nil {
		return err
	}
	if tr.RefractionIntervalS, err = sec.GetFloatWithBounds("refraction_interval", FloatBounds{Above: f(0)}, tr.RefractionIntervalS); err != nil {
		return err
	}
	if tr.BacklashRateSidereal, err = sec.GetFloatWithBounds("backlash_rate", FloatBounds{Above: f(0)}, tr.BacklashRateSidereal); err != nil {
		return err
	}
	if tr.PECEnabled, err = sec.GetBool("pec", tr.PECEnabled); err != nil {
		return err
	}
	if tr.PECBufferSize, err = sec.GetInt("pec_buffer_size", tr.PECBufferSize); err != nil {
		return err
	}
	if tr.PECBufferSize <= 0 {
		return ErrOutOfRange("tracking", "pec_buffer_size", float64(tr.PECBufferSize), "must be positive")
	}
	worm, err := sec.GetInt("worm_period_steps", int(tr.WormPeriodSteps))
	if err != nil {
		return err
	}
	if worm <= 0 {
		return ErrOutOfRange("tracking", "worm_period_steps", float64(worm), "must be positive")
	}
	tr.WormPeriodSteps = int64(worm)
	if tr.PECTablePath, err = sec.Get("pec_table", ""); err != nil {
		return err
	}
	return nil
}

func loadPolicy(cfg *Config, p *MountPolicy) error {
	p.PierSidePreferred = "best"
	p.PastMeridianLimitE = 15.0
	p.PastMeridianLimitW = 15.0
	p.ParkStrict = true
	p.ParkStatusPreserved = true
	p.ParkAxis1Deg = 0.0
	p.ParkAxis2Deg = 89.0
	p.SlewToleranceDeg = 0.01
	p.HomeToleranceDeg = 0.05
	p.ModeSwitchMaxDegSec = 0.01
	p.StallWindowSec = 0.5
	p.StallMinSteps = 500
	p.StallRatio = 0.1
	if !cfg.HasSection("mount") {
		return nil
	}
	sec, err := cfg.Section("mount")
	if err != nil {
		return err
	}
	if p.PierSidePreferred, err = sec.GetChoice("pier_side_preferred", []string{"best", "east", "west"}, p.PierSidePreferred); err != nil {
		return err
	}
	if p.PastMeridianLimitE, err = sec.GetFloatWithBounds("past_meridian_limit_e", FloatBounds{Min: f(0), Max: f(180)}, p.PastMeridianLimitE); err != nil {
		return err
	}
	if p.PastMeridianLimitW, err = sec.GetFloatWithBounds("past_meridian_limit_w", FloatBounds{Min: f(0), Max: f(180)}, p.PastMeridianLimitW); err != nil {
		return err
	}
	if p.ParkStrict, err = sec.GetBool("park_strict", p.ParkStrict); err != nil {
		return err
	}
	if p.ParkStatusPreserved, err = sec.GetBool("park_status_preserved", p.ParkStatusPreserved); err != nil {
		return err
	}
	if p.ParkAxis1Deg, err = sec.GetFloat("park_axis1", p.ParkAxis1Deg); err != nil {
		return err
	}
	if p.ParkAxis2Deg, err = sec.GetFloat("park_axis2", p.ParkAxis2Deg); err != nil {
		return err
	}
	if p.ParkStatePath, err = sec.Get("park_state", ""); err != nil {
		return err
	}
	if p.SlewToleranceDeg, err = sec.GetFloatWithBounds("slew_tolerance", FloatBounds{Above: f(0)}, p.SlewToleranceDeg); err != nil {
		return err
	}
	if p.HomeToleranceDeg, err = sec.GetFloatWithBounds("home_tolerance", FloatBounds{Above: f(0)}, p.HomeToleranceDeg); err != nil {
		return err
	}
	if p.ModeSwitchMaxDegSec, err = sec.GetFloatWithBounds("mode_switch_max_rate", FloatBounds{Above: f(0)}, p.ModeSwitchMaxDegSec); err != nil {
		return err
	}
	if p.StallWindowSec, err = sec.GetFloatWithBounds("stall_window", FloatBounds{Above: f(0)}, p.StallWindowSec); err != nil {
		return err
	}
	minSteps, err := sec.GetInt("stall_min_steps", int(p.StallMinSteps))
	if err != nil {
		return err
	}
	p.StallMinSteps = int64(minSteps)
	if p.StallRatio, err = sec.GetFloatWithBounds("stall_ratio", FloatBounds{Above: f(0), Below: f(1)}, p.StallRatio); err != nil {
		return err
	}
	return nil
}

func loadEncoder(cfg *Config, e *EncoderConfig) error {
	e.Baud = 115200
	e.CountsPerRev1 = 16384
	e.CountsPerRev2 = 16384
	e.PollIntervalSec = 0.1
	if !cfg.HasSection("encoder") {
		return nil
	}
	sec, err := cfg.Section("encoder")
	if err != nil {
		return err
	}
	if e.Device, err = sec.Get("device", ""); err != nil {
		return err
	}
	if e.Baud, err = sec.GetInt("baud", e.Baud); err != nil {
		return err
	}
	cpr1, err := sec.GetInt("counts_per_rev_1", int(e.CountsPerRev1))
	if err != nil {
		return err
	}
	cpr2, err := sec.GetInt("counts_per_rev_2", int(e.CountsPerRev2))
	if err != nil {
		return err
	}
	if cpr1 <= 0 || cpr2 <= 0 {
		return ErrOutOfRange("encoder", "counts_per_rev", float64(cpr1), "must be positive")
	}
	e.CountsPerRev1 = int64(cpr1)
	e.CountsPerRev2 = int64(cpr2)
	if e.PollIntervalSec, err = sec.GetFloatWithBounds("poll_interval", FloatBounds{Above: f(0)}, e.PollIntervalSec); err != nil {
		return err
	}
	return nil
}

func loadTelemetry(cfg *Config, t *TelemetryConfig) error {
	t.Enabled = true
	t.Addr = ":9080"
	if !cfg.HasSection("telemetry") {
		return nil
	}
	sec, err := cfg.Section("telemetry")
	if err != nil {
		return err
	}
	if t.Enabled, err = sec.GetBool("enabled", t.Enabled); err != nil {
		return err
	}
	if t.Addr, err = sec.Get("listen", t.Addr); err != nil {
		return err
	}
	return nil
}

func f(v float64) *float64 { return &v }
