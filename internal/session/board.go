//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"

	"golang.org/x/exp/slices"

	"edgexfoundry/app-rssi-localization/internal/localization"
)

// Board is a Sink which keeps only the latest Result per (target, algorithm).
type Board struct {
	mu     sync.RWMutex
	latest map[string]map[localization.Algorithm]Result
}

func NewBoard() *Board {
	return &Board{latest: make(map[string]map[localization.Algorithm]Result)}
}

func (b *Board) Publish(r Result) {
	b.mu.Lock()
	byAlg, ok := b.latest[r.TargetID]
	if !ok {
		byAlg = make(map[localization.Algorithm]Result)
		b.latest[r.TargetID] = byAlg
	}
	byAlg[r.Algorithm] = r
	b.mu.Unlock()
}

// Forget drops every Result for targetID.
func (b *Board) Forget(targetID string) {
	b.mu.Lock()
	delete(b.latest, targetID)
	b.mu.Unlock()
}

// Latest returns the latest Results of every target,
// ordered by target and then algorithm.
func (b *Board) Latest() []Result {
	b.mu.RLock()
	results := make([]Result, 0, len(b.latest))
	for _, byAlg := range b.latest {
		for _, r := range byAlg {
			results = append(results, r)
		}
	}
	b.mu.RUnlock()

	sortResults(results)
	return results
}

// ForTarget returns the latest Results of targetID, ordered by algorithm.
// The second return is false if the target has no Results.
func (b *Board) ForTarget(targetID string) ([]Result, bool) {
	b.mu.RLock()
	byAlg, ok := b.latest[targetID]
	results := make([]Result, 0, len(byAlg))
	for _, r := range byAlg {
		results = append(results, r)
	}
	b.mu.RUnlock()

	sortResults(results)
	return results, ok
}

func sortResults(results []Result) {
	slices.SortFunc(results, func(a, b Result) int {
		switch {
		case a.TargetID < b.TargetID:
			return -1
		case a.TargetID > b.TargetID:
			return 1
		case a.Algorithm < b.Algorithm:
			return -1
		case a.Algorithm > b.Algorithm:
			return 1
		}
		return 0
	})
}
