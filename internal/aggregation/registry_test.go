//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package aggregation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LazyCreation(t *testing.T) {
	reg := NewRegistry(DefaultParams())
	assert.Equal(t, 0, reg.Len())

	_, found := reg.Snapshot("target-a", 0)
	assert.False(t, found)

	reg.Add("target-a", "anchor-1", -60, 1)
	reg.Add("target-a", "anchor-2", -70, 2)
	reg.Add("target-b", "anchor-1", -80, 3)
	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"target-a", "target-b"}, reg.Targets())

	snap, found := reg.Snapshot("target-a", 3)
	require.True(t, found)
	assert.Equal(t, map[string]float64{"anchor-1": -60, "anchor-2": -70}, snap)

	lastSeen, found := reg.LastSeen("target-a")
	require.True(t, found)
	assert.Equal(t, 2.0, lastSeen)
}

func TestRegistry_IndependentAggregators(t *testing.T) {
	params := DefaultParams()
	params.WindowSize = 2
	reg := NewRegistry(params)

	reg.Add("t", "a1", -50, 1)
	reg.Add("t", "a1", -60, 2)
	reg.Add("t", "a1", -70, 3)
	reg.Add("t", "a2", -90, 3)
	reg.Add("u", "a1", -40, 3)

	all := reg.SnapshotAll(3)
	assert.Equal(t, map[string]map[string]float64{
		"t": {"a1": -65, "a2": -90},
		"u": {"a1": -40},
	}, all)
}

func TestRegistry_SnapshotIsolation(t *testing.T) {
	reg := NewRegistry(Params{Strategy: MostRecentStrategy})
	reg.Add("t", "a1", -50, 1)
	reg.Add("t", "a2", -55, 1)

	snap := reg.SnapshotAll(1)

	// observations arriving after the snapshot must not be visible through it
	reg.Add("t", "a1", -90, 2)
	reg.Add("t", "a3", -65, 2)
	reg.Add("v", "a1", -65, 2)

	assert.Equal(t, map[string]map[string]float64{"t": {"a1": -50, "a2": -55}}, snap)

	// and mutating the snapshot must not leak back into the registry
	snap["t"]["a2"] = 0
	fresh, _ := reg.Snapshot("t", 2)
	assert.Equal(t, map[string]float64{"a1": -90, "a2": -55, "a3": -65}, fresh)
}

func TestRegistry_Staleness(t *testing.T) {
	reg := NewRegistry(Params{Strategy: MostRecentStrategy})
	reg.Add("t", "a1", -50, 10)
	reg.Add("t", "a2", -55, 18)

	snap, _ := reg.Snapshot("t", 20)
	assert.Len(t, snap, 2, "staleness disabled by default")

	reg.SetStaleAfter(5)
	snap, _ = reg.Snapshot("t", 20)
	assert.Equal(t, map[string]float64{"a2": -55}, snap)

	// anchor reports again and rejoins
	reg.Add("t", "a1", -52, 19)
	snap, _ = reg.Snapshot("t", 20)
	assert.Equal(t, map[string]float64{"a1": -52, "a2": -55}, snap)
}

func TestRegistry_AgeOut(t *testing.T) {
	reg := NewRegistry(DefaultParams())
	reg.Add("old", "a1", -60, 100)
	reg.Add("recent", "a1", -60, 1000)

	assert.Empty(t, reg.AgeOut(1050, 0), "non-positive max age keeps everything")
	assert.Equal(t, []string{"old"}, reg.AgeOut(1050, 500))
	assert.Equal(t, 1, reg.Len())

	_, found := reg.Snapshot("old", 1050)
	assert.False(t, found)
	_, found = reg.Snapshot("recent", 1050)
	assert.True(t, found)

	// an aged-out target starts over with fresh state
	reg.Add("old", "a2", -70, 1060)
	snap, _ := reg.Snapshot("old", 1060)
	assert.Equal(t, map[string]float64{"a2": -70}, snap)
}

func TestRegistry_ConcurrentIngestAndSnapshot(t *testing.T) {
	reg := NewRegistry(DefaultParams())

	const writers, samples = 4, 500
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < samples; i++ {
				reg.Add(fmt.Sprintf("t%d", i%3), fmt.Sprintf("a%d", w), -60, float64(i))
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			for _, snap := range reg.SnapshotAll(float64(i)) {
				for _, v := range snap {
					// every aggregator only ever sees -60
					if v != -60 {
						t.Errorf("torn value %v", v)
						return
					}
				}
			}
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, 3, reg.Len())
}
