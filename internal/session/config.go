//
// Copyright (C) 2020, 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/aggregation"
	"edgexfoundry/app-rssi-localization/internal/localization"
)

// IngestSource names where observations come from.
type IngestSource string

const (
	IngestEdgeX    IngestSource = "edgex"
	IngestSerial   IngestSource = "serial"
	IngestReplay   IngestSource = "replay"
	IngestSimulate IngestSource = "simulate"
)

// ErrUnexpectedConfigItems is returned when the configuration has keys this
// service doesn't know. Callers should warn, not fail.
var ErrUnexpectedConfigItems = errors.New("unexpected config items")

// ApplicationSettings is the typed form of the [ApplicationSettings] section.
type ApplicationSettings struct {
	DeploymentFile  string
	FingerprintFile string
	Algorithms      string

	AggregationStrategy       string
	WindowSize                int
	KalmanProcessVariance     float64
	KalmanMeasurementVariance float64
	KalmanInitialEstimate     float64

	UpdateIntervalMillis       int
	MinAnchors                 int
	SmoothingAlpha             float64
	AnchorStaleSeconds         float64
	TargetAgeOutSeconds        int
	AgeOutCheckIntervalSeconds int

	IngestSource           string
	SerialPort             string
	SerialBaud             int
	ReplayFile             string
	ReplayIntervalMillis   int
	ReplayTargetID         string
	SimulateTargetID       string
	SimulateTargetX        float64
	SimulateTargetY        float64
	SimulateIntervalMillis int
	SimulateRoundRSSI      bool

	PushToCoreData bool
}

// NewApplicationSettings returns the default settings.
func NewApplicationSettings() ApplicationSettings {
	return ApplicationSettings{
		DeploymentFile: "res/deployment.yaml",
		Algorithms:     "TLSL,TWCL,FPL",

		AggregationStrategy:       string(aggregation.MeanStrategy),
		WindowSize:                aggregation.DefaultWindowSize,
		KalmanProcessVariance:     aggregation.DefaultProcessVariance,
		KalmanMeasurementVariance: aggregation.DefaultMeasurementVariance,
		KalmanInitialEstimate:     aggregation.DefaultInitialEstimate,

		UpdateIntervalMillis:       500,
		MinAnchors:                 3,
		TargetAgeOutSeconds:        3600,
		AgeOutCheckIntervalSeconds: 60,

		IngestSource:           string(IngestEdgeX),
		SerialPort:             "/dev/ttyUSB0",
		SerialBaud:             115200,
		ReplayIntervalMillis:   10,
		SimulateIntervalMillis: 10,
	}
}

// ParseApplicationSettings parses the raw key/value pairs of the
// [ApplicationSettings] section on top of the defaults.
//
// Keys this service doesn't recognize are reported with an error wrapping
// ErrUnexpectedConfigItems, but only after every known key has been parsed,
// so the returned settings are still usable in that case.
func ParseApplicationSettings(lc logger.LoggingClient, raw map[string]string) (ApplicationSettings, error) {
	cfg := NewApplicationSettings()
	if raw == nil {
		return cfg, errors.New("missing application settings")
	}

	var unexpected []string
	setters := cfg.setters()
	for key, val := range raw {
		val = strings.TrimSpace(val)
		set, known := setters[key]
		if !known {
			unexpected = append(unexpected, key)
			continue
		}
		if err := set(val); err != nil {
			return cfg, errors.Wrapf(err, "invalid value for %s: %q", key, val)
		}
		lc.Debug("Parsed application setting.", "key", key, "value", val)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	if len(unexpected) > 0 {
		return cfg, errors.Wrapf(ErrUnexpectedConfigItems, "unknown keys: %s", strings.Join(unexpected, ", "))
	}
	return cfg, nil
}

func (cfg *ApplicationSettings) setters() map[string]func(string) error {
	return map[string]func(string) error{
		"DeploymentFile":  setString(&cfg.DeploymentFile),
		"FingerprintFile": setString(&cfg.FingerprintFile),
		"Algorithms":      setString(&cfg.Algorithms),

		"AggregationStrategy":       setString(&cfg.AggregationStrategy),
		"WindowSize":                setInt(&cfg.WindowSize),
		"KalmanProcessVariance":     setFloat(&cfg.KalmanProcessVariance),
		"KalmanMeasurementVariance": setFloat(&cfg.KalmanMeasurementVariance),
		"KalmanInitialEstimate":     setFloat(&cfg.KalmanInitialEstimate),

		"UpdateIntervalMillis":       setInt(&cfg.UpdateIntervalMillis),
		"MinAnchors":                 setInt(&cfg.MinAnchors),
		"SmoothingAlpha":             setFloat(&cfg.SmoothingAlpha),
		"AnchorStaleSeconds":         setFloat(&cfg.AnchorStaleSeconds),
		"TargetAgeOutSeconds":        setInt(&cfg.TargetAgeOutSeconds),
		"AgeOutCheckIntervalSeconds": setInt(&cfg.AgeOutCheckIntervalSeconds),

		"IngestSource":           setString(&cfg.IngestSource),
		"SerialPort":             setString(&cfg.SerialPort),
		"SerialBaud":             setInt(&cfg.SerialBaud),
		"ReplayFile":             setString(&cfg.ReplayFile),
		"ReplayIntervalMillis":   setInt(&cfg.ReplayIntervalMillis),
		"ReplayTargetID":         setString(&cfg.ReplayTargetID),
		"SimulateTargetID":       setString(&cfg.SimulateTargetID),
		"SimulateTargetX":        setFloat(&cfg.SimulateTargetX),
		"SimulateTargetY":        setFloat(&cfg.SimulateTargetY),
		"SimulateIntervalMillis": setInt(&cfg.SimulateIntervalMillis),
		"SimulateRoundRSSI":      setBool(&cfg.SimulateRoundRSSI),

		"PushToCoreData": setBool(&cfg.PushToCoreData),
	}
}

func setString(dst *string) func(string) error {
	return func(s string) error {
		*dst = s
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(s string) (err error) {
		*dst, err = strconv.Atoi(s)
		return
	}
}

func setFloat(dst *float64) func(string) error {
	return func(s string) (err error) {
		*dst, err = strconv.ParseFloat(s, 64)
		return
	}
}

func setBool(dst *bool) func(string) error {
	return func(s string) (err error) {
		*dst, err = strconv.ParseBool(s)
		return
	}
}

// Validate returns an error if the settings can't be used to run the service.
func (cfg ApplicationSettings) Validate() error {
	if _, err := localization.ParseAlgorithms(cfg.Algorithms); err != nil {
		return err
	}
	if err := cfg.AggregationParams().Validate(); err != nil {
		return err
	}
	if err := cfg.LoopSettings().Validate(); err != nil {
		return err
	}

	switch IngestSource(cfg.IngestSource) {
	case IngestEdgeX:
	case IngestSerial:
		if cfg.SerialPort == "" {
			return errors.New("SerialPort is required for serial ingestion")
		}
	case IngestReplay:
		if cfg.ReplayFile == "" {
			return errors.New("ReplayFile is required for replay ingestion")
		}
	case IngestSimulate:
		if cfg.SimulateTargetID == "" {
			return errors.New("SimulateTargetID is required for simulated ingestion")
		}
	default:
		return errors.Errorf("unknown IngestSource %q", cfg.IngestSource)
	}

	if cfg.ReplayIntervalMillis < 0 || cfg.SimulateIntervalMillis < 0 {
		return errors.New("replay and simulation intervals must not be negative")
	}
	return nil
}

// AggregationParams returns the aggregator configuration.
func (cfg ApplicationSettings) AggregationParams() aggregation.Params {
	strategy, err := aggregation.ParseStrategy(cfg.AggregationStrategy)
	if err != nil {
		// left invalid so Params.Validate reports it
		strategy = aggregation.Strategy(cfg.AggregationStrategy)
	}
	return aggregation.Params{
		Strategy:            strategy,
		WindowSize:          cfg.WindowSize,
		ProcessVariance:     cfg.KalmanProcessVariance,
		MeasurementVariance: cfg.KalmanMeasurementVariance,
		InitialEstimate:     cfg.KalmanInitialEstimate,
	}
}

// LoopSettings returns the update loop tunables.
func (cfg ApplicationSettings) LoopSettings() LoopSettings {
	return LoopSettings{
		UpdateInterval:      time.Duration(cfg.UpdateIntervalMillis) * time.Millisecond,
		MinAnchors:          cfg.MinAnchors,
		SmoothingAlpha:      cfg.SmoothingAlpha,
		AnchorStaleAfter:    time.Duration(cfg.AnchorStaleSeconds * float64(time.Second)),
		TargetAgeOut:        time.Duration(cfg.TargetAgeOutSeconds) * time.Second,
		AgeOutCheckInterval: time.Duration(cfg.AgeOutCheckIntervalSeconds) * time.Second,
	}
}

// LoopSettings are the parts of the configuration the update loop can change
// while it is running.
type LoopSettings struct {
	UpdateInterval time.Duration
	// MinAnchors is the number of reporting anchors a target needs before it is localized.
	MinAnchors int
	// SmoothingAlpha of 0 disables smoothing of fixes.
	SmoothingAlpha float64
	// AnchorStaleAfter of 0 keeps anchors in snapshots forever.
	AnchorStaleAfter time.Duration
	// TargetAgeOut of 0 keeps targets forever.
	TargetAgeOut        time.Duration
	AgeOutCheckInterval time.Duration
}

func (ls LoopSettings) Validate() error {
	if ls.UpdateInterval <= 0 {
		return errors.New("UpdateIntervalMillis must be > 0")
	}
	if ls.MinAnchors < 1 {
		return errors.New("MinAnchors must be >= 1")
	}
	if ls.SmoothingAlpha < 0 || ls.SmoothingAlpha > 1 {
		return errors.New("SmoothingAlpha must be in [0, 1]")
	}
	if ls.AnchorStaleAfter < 0 || ls.TargetAgeOut < 0 {
		return errors.New("AnchorStaleSeconds and TargetAgeOutSeconds must not be negative")
	}
	if ls.TargetAgeOut > 0 && ls.AgeOutCheckInterval <= 0 {
		return errors.New("AgeOutCheckIntervalSeconds must be > 0 when TargetAgeOutSeconds is set")
	}
	return nil
}

func (ls LoopSettings) String() string {
	return fmt.Sprintf("interval=%v minAnchors=%d alpha=%v stale=%v ageOut=%v/%v",
		ls.UpdateInterval, ls.MinAnchors, ls.SmoothingAlpha,
		ls.AnchorStaleAfter, ls.TargetAgeOut, ls.AgeOutCheckInterval)
}
