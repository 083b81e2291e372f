//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package observation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Observation is a single raw RSSI reading of a target taken by an anchor.
type Observation struct {
	AnchorID string
	TargetID string
	// RSSI in dBm.
	RSSI float64
	// Timestamp in seconds since the Unix epoch.
	Timestamp float64
}

// Handler consumes observations produced by a Source.
type Handler func(Observation)

// Source produces observations until its context is cancelled or its input ends.
type Source interface {
	Run(ctx context.Context, handle Handler) error
}

// ErrMalformedObservation matches every MalformedObservationError.
var ErrMalformedObservation = errors.New("malformed observation")

// MalformedObservationError is returned for input which can't be parsed into an Observation.
type MalformedObservationError struct {
	Line   string
	Reason string
}

func (e *MalformedObservationError) Error() string {
	return fmt.Sprintf("%v: %s: %q", ErrMalformedObservation, e.Reason, e.Line)
}

func (e *MalformedObservationError) Is(target error) bool {
	return target == ErrMalformedObservation
}

// Monitor nodes print one line per received frame:
//
//	<anchor MAC>_<target MAC>:<rssi>
//
// where MACs are 12 hex digits without separators.
var lineRegex = regexp.MustCompile(`^([0-9A-Fa-f]{12})_([0-9A-Fa-f]{12}):(-?[0-9]+\.?[0-9]*)$`)

// ParseLine parses a monitor line, stamping the result with timestamp.
// Surrounding whitespace is ignored. MACs are lower-cased.
func ParseLine(line string, timestamp float64) (Observation, error) {
	trimmed := strings.TrimSpace(line)
	m := lineRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return Observation{}, &MalformedObservationError{Line: trimmed, Reason: "unrecognized format"}
	}

	rssi, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return Observation{}, &MalformedObservationError{Line: trimmed, Reason: err.Error()}
	}

	return Observation{
		AnchorID:  strings.ToLower(m[1]),
		TargetID:  strings.ToLower(m[2]),
		RSSI:      rssi,
		Timestamp: timestamp,
	}, nil
}

// FormatLine is the inverse of ParseLine, minus the timestamp.
func FormatLine(obs Observation) string {
	return obs.AnchorID + "_" + obs.TargetID + ":" + strconv.FormatFloat(obs.RSSI, 'f', -1, 64)
}

// ToSeconds converts t into fractional seconds since the Unix epoch.
func ToSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
