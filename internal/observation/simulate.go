//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package observation

import (
	"context"
	"math"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/pathloss"
)

// SimulatedSource stands in for the main node: it cycles through the anchors
// in ID order and emits the noise-free RSSI each would see from a target at a
// fixed position.
type SimulatedSource struct {
	geometry  localization.Geometry
	anchorIDs []string
	targetID  string
	target    localization.Point
	interval  time.Duration
	// RoundRSSI rounds to whole dBm, as real monitors report.
	RoundRSSI bool

	next int
	lc   logger.LoggingClient
	now  func() time.Time
}

func NewSimulatedSource(lc logger.LoggingClient, geometry localization.Geometry,
	targetID string, target localization.Point, interval time.Duration) (*SimulatedSource, error) {
	if len(geometry.Anchors) == 0 {
		return nil, errors.New("simulation needs at least one anchor")
	}
	if targetID == "" {
		return nil, errors.New("simulation needs a target ID")
	}
	if err := geometry.Validate(); err != nil {
		return nil, err
	}

	ids := maps.Keys(geometry.Anchors)
	slices.Sort(ids)
	return &SimulatedSource{
		geometry:  geometry,
		anchorIDs: ids,
		targetID:  targetID,
		target:    target,
		interval:  interval,
		lc:        lc,
		now:       time.Now,
	}, nil
}

// Next returns the line the next anchor in the cycle would report.
// An anchor exactly at the target position has no defined RSSI; its
// turn yields an error wrapping pathloss.ErrDomain.
func (s *SimulatedSource) Next() (string, error) {
	id := s.anchorIDs[s.next]
	s.next = (s.next + 1) % len(s.anchorIDs)

	d := s.geometry.Anchors[id].DistanceTo(s.target) / s.geometry.DistanceScale
	rssi, err := s.geometry.Model.DistanceToRSSI(d)
	if err != nil {
		return "", errors.Wrapf(err, "anchor %s", id)
	}
	if s.RoundRSSI {
		rssi = math.Round(rssi)
	}
	return FormatLine(Observation{AnchorID: id, TargetID: s.targetID, RSSI: rssi}), nil
}

// Run emits one observation per interval until ctx is cancelled.
// Lines go through ParseLine exactly like those read from a serial port.
func (s *SimulatedSource) Run(ctx context.Context, handle Handler) error {
	interval := s.interval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.lc.Info("Simulating target.", "target", s.targetID,
		"x", s.target.X, "y", s.target.Y, "anchors", len(s.anchorIDs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		line, err := s.Next()
		if errors.Is(err, pathloss.ErrDomain) {
			s.lc.Debug("Skipping simulated anchor.", "error", err.Error())
			continue
		}
		obs, err := ParseLine(line, ToSeconds(s.now()))
		if err != nil {
			return err
		}
		handle(obs)
	}
}
