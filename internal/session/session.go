//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"edgexfoundry/app-rssi-localization/internal/aggregation"
	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/observation"
)

// Forgetter is implemented by Sinks which hold per-target state
// that should be dropped when a target ages out.
type Forgetter interface {
	Forget(targetID string)
}

// Session owns everything a running localization service shares between
// ingestion and the update loop.
//
// Ingest may be called from any goroutine. Everything else runs on the
// goroutine which calls Run, or, when Run isn't used, on a single
// goroutine driving Update and AgeOut directly.
type Session struct {
	lc         logger.LoggingClient
	registry   *aggregation.Registry
	localizers []localization.Localizer
	sinks      []Sink

	settings   LoopSettings
	smoother   *localization.Smoother
	settingsCh chan LoopSettings
}

// New creates a Session which aggregates observations into registry and runs
// every localizer against each sufficiently covered target.
func New(lc logger.LoggingClient, registry *aggregation.Registry, localizers []localization.Localizer,
	settings LoopSettings, sinks ...Sink) (*Session, error) {
	if len(localizers) == 0 {
		return nil, errors.New("no localization algorithms are enabled")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		lc:         lc,
		registry:   registry,
		localizers: localizers,
		sinks:      sinks,
		settingsCh: make(chan LoopSettings),
	}
	s.applySettings(settings)
	return s, nil
}

// Ingest adds a raw observation to the aggregator of its (target, anchor) pair.
// It never waits on localization.
func (s *Session) Ingest(obs observation.Observation) {
	s.registry.Add(obs.TargetID, obs.AnchorID, obs.RSSI, obs.Timestamp)
}

// Registry returns the aggregator registry.
func (s *Session) Registry() *aggregation.Registry {
	return s.registry
}

// Update runs a single localization pass at time now (seconds) and publishes
// the results, which are also returned.
//
// Each target is localized from a copy of its aggregated RSSI taken at the
// start of the pass, so observations ingested while the pass runs are only
// seen by the next one. Targets with too few anchors are skipped, as are
// (target, algorithm) pairs whose localizer reports insufficient anchors or
// a domain error.
func (s *Session) Update(now float64) []Result {
	snapshots := s.registry.SnapshotAll(now)
	targets := maps.Keys(snapshots)
	slices.Sort(targets)

	var results []Result
	for _, targetID := range targets {
		snapshot := localization.Snapshot(snapshots[targetID])
		if len(snapshot) < s.settings.MinAnchors {
			s.lc.Trace("Not enough anchors to localize target.",
				"target", targetID, "anchors", len(snapshot), "required", s.settings.MinAnchors)
			continue
		}

		for _, loc := range s.localizers {
			est, err := loc.Localize(snapshot)
			if err != nil {
				if errors.Is(err, localization.ErrInsufficientAnchors) || errors.Is(err, localization.ErrDomain) {
					s.lc.Debug("Skipping estimate.", "target", targetID,
						"algorithm", string(loc.Algorithm()), "error", err.Error())
				} else {
					s.lc.Warn("Localization failed.", "target", targetID,
						"algorithm", string(loc.Algorithm()), "error", err.Error())
				}
				continue
			}

			if s.smoother != nil {
				est = s.smoother.Smooth(targetID, loc.Algorithm(), est)
			}

			r := Result{TargetID: targetID, Algorithm: loc.Algorithm(), Timestamp: now, Estimate: est}
			for _, sink := range s.sinks {
				sink.Publish(r)
			}
			results = append(results, r)
		}
	}

	return results
}

// AgeOut removes every target not observed within the configured age-out
// period and returns their IDs.
func (s *Session) AgeOut(now float64) []string {
	removed := s.registry.AgeOut(now, s.settings.TargetAgeOut.Seconds())
	for _, targetID := range removed {
		if s.smoother != nil {
			s.smoother.Forget(targetID)
		}
		for _, sink := range s.sinks {
			if f, ok := sink.(Forgetter); ok {
				f.Forget(targetID)
			}
		}
	}
	if len(removed) > 0 {
		s.lc.Info(fmt.Sprintf("Aged out %d target(s).", len(removed)), "targets", fmt.Sprintf("%v", removed))
	}
	return removed
}

func (s *Session) applySettings(ls LoopSettings) {
	s.registry.SetStaleAfter(ls.AnchorStaleAfter.Seconds())

	switch {
	case ls.SmoothingAlpha == 0:
		s.smoother = nil
	case s.smoother == nil || s.smoother.Alpha() != ls.SmoothingAlpha:
		// Validate guarantees a usable alpha
		s.smoother, _ = localization.NewSmoother(ls.SmoothingAlpha)
	}

	s.settings = ls
}

// Reconfigure hands new loop settings to Run. It blocks until Run accepts them
// or ctx is done.
func (s *Session) Reconfigure(ctx context.Context, ls LoopSettings) error {
	if err := ls.Validate(); err != nil {
		return err
	}
	select {
	case s.settingsCh <- ls:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the update loop until ctx is cancelled.
//
// Localization runs on a fixed interval regardless of how fast observations
// arrive; a second, slower ticker ages out targets which have gone quiet.
func (s *Session) Run(ctx context.Context) error {
	updateTicker := time.NewTicker(s.settings.UpdateInterval)
	ageOutTicker, ageOutC := newOptionalTicker(s.settings.AgeOutCheckInterval)
	defer func() {
		updateTicker.Stop()
		if ageOutTicker != nil {
			ageOutTicker.Stop()
		}
	}()

	s.lc.Info("Starting update loop.", "settings", s.settings.String())
	for {
		select {
		case <-ctx.Done():
			s.lc.Info("Stopping update loop.")
			return nil

		case t := <-updateTicker.C:
			s.Update(observation.ToSeconds(t))

		case t := <-ageOutC:
			s.lc.Debug("Running AgeOut.", "time", fmt.Sprintf("%v", t))
			s.AgeOut(observation.ToSeconds(t))

		case ls := <-s.settingsCh:
			prev := s.settings
			s.applySettings(ls)
			s.lc.Info("Update loop reconfigured.", "settings", ls.String())

			if prev.UpdateInterval != ls.UpdateInterval {
				updateTicker.Reset(ls.UpdateInterval)
				s.lc.Info(fmt.Sprintf("Changing update interval to %v.", ls.UpdateInterval))
			}
			if prev.AgeOutCheckInterval != ls.AgeOutCheckInterval {
				if ageOutTicker != nil {
					ageOutTicker.Stop()
				}
				ageOutTicker, ageOutC = newOptionalTicker(ls.AgeOutCheckInterval)
				s.lc.Info(fmt.Sprintf("Changing age out check interval to %v.", ls.AgeOutCheckInterval))
			}
		}
	}
}

// newOptionalTicker returns a nil ticker and channel when d is not positive;
// receiving from the nil channel blocks forever.
func newOptionalTicker(d time.Duration) (*time.Ticker, <-chan time.Time) {
	if d <= 0 {
		return nil, nil
	}
	t := time.NewTicker(d)
	return t, t.C
}
