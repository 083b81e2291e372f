//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package observation

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"
)

// Recording file column names.
const (
	colTimestamp = "timestamp"
	colAnchorID  = "monitor_mac"
	colTargetID  = "target_mac"
	colRSSI      = "rssi"
)

// ReadRecording parses a CSV recording. The header must name the monitor_mac,
// target_mac and rssi columns; timestamp is read when present and any other
// column is ignored.
func ReadRecording(r io.Reader) ([]Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read recording header")
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colAnchorID, colTargetID, colRSSI} {
		if _, ok := cols[required]; !ok {
			return nil, errors.Errorf("recording is missing column %q", required)
		}
	}
	tsCol, hasTS := cols[colTimestamp]

	var recording []Observation
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read recording")
		}
		line, _ := cr.FieldPos(0)

		obs := Observation{
			AnchorID: strings.ToLower(strings.TrimSpace(record[cols[colAnchorID]])),
			TargetID: strings.ToLower(strings.TrimSpace(record[cols[colTargetID]])),
		}
		if obs.AnchorID == "" || obs.TargetID == "" {
			return nil, &MalformedObservationError{
				Line:   strings.Join(record, ","),
				Reason: "line " + strconv.Itoa(line) + ": missing anchor or target",
			}
		}
		if obs.RSSI, err = strconv.ParseFloat(strings.TrimSpace(record[cols[colRSSI]]), 64); err != nil {
			return nil, &MalformedObservationError{
				Line:   strings.Join(record, ","),
				Reason: "line " + strconv.Itoa(line) + ": invalid rssi",
			}
		}
		if hasTS {
			if obs.Timestamp, err = strconv.ParseFloat(strings.TrimSpace(record[tsCol]), 64); err != nil {
				return nil, &MalformedObservationError{
					Line:   strings.Join(record, ","),
					Reason: "line " + strconv.Itoa(line) + ": invalid timestamp",
				}
			}
		}
		recording = append(recording, obs)
	}
	return recording, nil
}

// ReplaySource plays back a recording at a fixed pace. Each observation is
// re-stamped with the time it is replayed, as if it had just arrived.
type ReplaySource struct {
	path     string
	interval time.Duration
	targetID string
	lc       logger.LoggingClient
	now      func() time.Time
	open     func(path string) (io.ReadCloser, error)
}

// NewReplaySource replays the recording at path, emitting one observation per
// interval. If targetID is not empty, other targets are skipped.
func NewReplaySource(lc logger.LoggingClient, path string, interval time.Duration, targetID string) *ReplaySource {
	return &ReplaySource{
		path:     path,
		interval: interval,
		targetID: strings.ToLower(targetID),
		lc:       lc,
		now:      time.Now,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Run returns nil after the last observation, or when ctx is cancelled.
func (rs *ReplaySource) Run(ctx context.Context, handle Handler) error {
	f, err := rs.open(rs.path)
	if err != nil {
		return errors.Wrapf(err, "failed to open recording %s", rs.path)
	}
	recording, err := ReadRecording(f)
	_ = f.Close()
	if err != nil {
		return errors.Wrapf(err, "failed to load recording %s", rs.path)
	}
	rs.lc.Info("Replaying recording.", "path", rs.path, "observations", len(recording))

	var tick <-chan time.Time
	if rs.interval > 0 {
		ticker := time.NewTicker(rs.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	var replayed int
	for _, obs := range recording {
		if rs.targetID != "" && obs.TargetID != rs.targetID {
			continue
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		obs.Timestamp = ToSeconds(rs.now())
		handle(obs)
		replayed++
	}

	rs.lc.Info("Replay finished.", "path", rs.path, "replayed", replayed)
	return nil
}
