//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// target holds the per-anchor aggregators for a single target device.
type target struct {
	lastSeen float64
	anchors  map[string]Aggregator
}

func (t *target) getAggregator(anchorID string, params Params) Aggregator {
	agg, found := t.anchors[anchorID]
	if !found {
		agg = params.New()
		t.anchors[anchorID] = agg
	}
	return agg
}

// Registry holds the aggregator state for every (target, anchor) pair seen so far.
//
// Writers (ingestion) and readers (localization) share a single mutex which is only
// ever held for the duration of one sample update or one value copy, so a slow
// localization pass never blocks ingestion.
type Registry struct {
	mu         sync.Mutex
	params     Params
	staleAfter float64
	targets    map[string]*target
}

// NewRegistry creates an empty Registry which creates aggregators using params.
func NewRegistry(params Params) *Registry {
	return &Registry{
		params:  params,
		targets: make(map[string]*target),
	}
}

// SetStaleAfter sets the number of seconds after which an anchor that has not
// reported for a target is left out of snapshots. Zero disables staleness.
func (r *Registry) SetStaleAfter(seconds float64) {
	r.mu.Lock()
	r.staleAfter = seconds
	r.mu.Unlock()
}

// Add feeds one RSSI sample into the aggregator for the (targetID, anchorID) pair,
// creating the target and aggregator on first sight.
func (r *Registry) Add(targetID, anchorID string, rssi, timestamp float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.targets[targetID]
	if !exists {
		t = &target{anchors: make(map[string]Aggregator)}
		r.targets[targetID] = t
	}
	if timestamp > t.lastSeen {
		t.lastSeen = timestamp
	}
	t.getAggregator(anchorID, r.params).AddSample(rssi, timestamp)
}

// Snapshot returns a copy of the current smoothed RSSI per anchor for targetID.
// The second return is false if the target has never been seen.
func (r *Registry) Snapshot(targetID string, now float64) (map[string]float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.targets[targetID]
	if !exists {
		return nil, false
	}
	return r.copyValues(t, now), true
}

// SnapshotAll returns a consistent copy of the current smoothed RSSI values of
// every target, keyed by target and then by anchor.
func (r *Registry) SnapshotAll(now float64) map[string]map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make(map[string]map[string]float64, len(r.targets))
	for id, t := range r.targets {
		res[id] = r.copyValues(t, now)
	}
	return res
}

// copyValues must be called with r.mu held.
func (r *Registry) copyValues(t *target, now float64) map[string]float64 {
	values := make(map[string]float64, len(t.anchors))
	for anchorID, agg := range t.anchors {
		if r.staleAfter > 0 && now-agg.LastUpdate() > r.staleAfter {
			continue
		}
		if v, ok := agg.Value(); ok {
			values[anchorID] = v
		}
	}
	return values
}

// AgeOut removes every target which has not been observed in more than maxAge
// seconds before now, returning the sorted IDs of those removed. A non-positive
// maxAge keeps everything.
func (r *Registry) AgeOut(now float64, maxAge float64) []string {
	if maxAge <= 0 {
		return nil
	}

	r.mu.Lock()
	var removed []string
	for id, t := range r.targets {
		if now-t.lastSeen > maxAge {
			removed = append(removed, id)
			delete(r.targets, id)
		}
	}
	r.mu.Unlock()

	slices.Sort(removed)
	return removed
}

// LastSeen returns the timestamp of the latest sample for targetID.
func (r *Registry) LastSeen(targetID string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, exists := r.targets[targetID]
	if !exists {
		return 0, false
	}
	return t.lastSeen, true
}

// Len returns the number of tracked targets.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets)
}

// Targets returns the sorted IDs of every tracked target.
func (r *Registry) Targets() []string {
	r.mu.Lock()
	ids := maps.Keys(r.targets)
	r.mu.Unlock()

	slices.Sort(ids)
	return ids
}
