//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgexfoundry/app-rssi-localization/internal/localization"
)

func TestBoard_LatestValueWins(t *testing.T) {
	b := NewBoard()
	b.Publish(Result{TargetID: "t2", Algorithm: localization.TWCL, Timestamp: 1})
	b.Publish(Result{TargetID: "t1", Algorithm: localization.TWCL, Timestamp: 1})
	b.Publish(Result{TargetID: "t1", Algorithm: localization.TLSL, Timestamp: 1})
	b.Publish(Result{TargetID: "t1", Algorithm: localization.TWCL, Timestamp: 2})

	latest := b.Latest()
	require.Len(t, latest, 3)
	assert.Equal(t, Result{TargetID: "t1", Algorithm: localization.TLSL, Timestamp: 1}, latest[0])
	assert.Equal(t, Result{TargetID: "t1", Algorithm: localization.TWCL, Timestamp: 2}, latest[1])
	assert.Equal(t, "t2", latest[2].TargetID)

	forT1, found := b.ForTarget("t1")
	require.True(t, found)
	assert.Equal(t, latest[:2], forT1)

	b.Forget("t1")
	_, found = b.ForTarget("t1")
	assert.False(t, found)
	assert.Len(t, b.Latest(), 1)
}

func TestBoard_ConcurrentReaders(t *testing.T) {
	b := NewBoard()
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Publish(Result{TargetID: fmt.Sprintf("t%d", w), Algorithm: localization.TLSL, Timestamp: float64(i)})
				b.Latest()
			}
		}(w)
	}
	wg.Wait()

	latest := b.Latest()
	require.Len(t, latest, 4)
	for _, r := range latest {
		assert.Equal(t, 199.0, r.Timestamp)
	}
}
