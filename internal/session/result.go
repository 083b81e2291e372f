//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"encoding/json"

	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/localization"
)

// Result is a single position estimate for one target by one algorithm.
type Result struct {
	TargetID  string
	Algorithm localization.Algorithm
	// Timestamp of the update pass which produced the estimate, in seconds.
	Timestamp float64
	Estimate  localization.Estimate
}

type resultJSON struct {
	TargetID  string                 `json:"target_id"`
	Algorithm localization.Algorithm `json:"algorithm"`
	Timestamp float64                `json:"timestamp"`
	Position  localization.Point     `json:"position"`
	Distances map[string]float64     `json:"distances,omitempty"`
	Fit       *localization.Fit      `json:"fit,omitempty"`
	Heatmap   *localization.Grid     `json:"heatmap,omitempty"`
}

func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{
		TargetID:  r.TargetID,
		Algorithm: r.Algorithm,
		Timestamp: r.Timestamp,
	}

	switch est := r.Estimate.(type) {
	case localization.PositionOnly:
		out.Position = est.At
	case localization.PositionWithDistances:
		out.Position = est.At
		out.Distances = est.Distances
		out.Fit = est.Fit
	case localization.PositionWithHeatmap:
		out.Position = est.At
		out.Heatmap = &est.Heatmap
	default:
		return nil, errors.Errorf("unsupported estimate type %T", r.Estimate)
	}

	return json.Marshal(out)
}

// Sink receives every published Result. Publish is called from the update loop
// and must not block.
type Sink interface {
	Publish(r Result)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(r Result)

func (f SinkFunc) Publish(r Result) { f(r) }
