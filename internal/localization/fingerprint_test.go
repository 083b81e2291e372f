//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAxis(t *testing.T) {
	tests := []struct {
		name          string
		min, max, res float64
		want          []float64
	}{
		{"exact multiple", 0, 20, 5, []float64{0, 5, 10, 15, 20}},
		{"boundary appended", 0, 12, 5, []float64{0, 5, 10, 12}},
		{"offset", -10, 5, 10, []float64{-10, 0, 5}},
		{"degenerate", 3, 3, 5, []float64{3}},
		{"coarser than range", 0, 2, 5, []float64{0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, axis(tt.min, tt.max, tt.res))
		})
	}
}

func TestFingerprinting_SingleCalibrationPoint(t *testing.T) {
	// one surveyed position per anchor yields constant surfaces, so every cell
	// matches equally well and the surveyed cell must win the tie
	var samples []CalibrationSample
	for _, rssi := range []float64{-59, -60, -61, -75} {
		samples = append(samples, CalibrationSample{AnchorID: "a1", TargetX: 20, TargetY: 30, RSSI: rssi})
	}
	for _, rssi := range []float64{-70, -71, -69} {
		samples = append(samples, CalibrationSample{AnchorID: "a2", TargetX: 20, TargetY: 30, RSSI: rssi})
	}

	fm, err := BuildFingerprintMap(samples, GridSpec{
		Bounds:     Bounds{Max: Point{X: 100, Y: 100}},
		Resolution: DefaultResolution,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, fm.Anchors())

	surface, ok := fm.Surface("a1")
	require.True(t, ok)
	require.Len(t, surface.Values, 21)
	for _, row := range surface.Values {
		require.Len(t, row, 21)
		for _, v := range row {
			// median of -75,-61,-60,-59
			assert.Equal(t, -60.5, v)
		}
	}

	est, err := NewFingerprinting(fm).Localize(Snapshot{"a1": -60.5, "a2": -70})
	require.NoError(t, err)
	assert.Equal(t, Point{X: 20, Y: 30}, est.Position())

	hm, ok := est.(PositionWithHeatmap)
	require.True(t, ok, "unexpected estimate type %T", est)
	assert.Len(t, hm.Heatmap.Ys, 21)
	assert.Len(t, hm.Heatmap.Xs, 21)
	assert.Equal(t, 0.0, hm.Heatmap.Values[6][4])
}

func TestFingerprinting_MultiplePoints(t *testing.T) {
	anchors := AnchorTable{
		"a1": {X: -10, Y: -10},
		"a2": {X: 110, Y: -10},
		"a3": {X: -10, Y: 110},
	}

	var samples []CalibrationSample
	for _, x := range []float64{0, 50, 100} {
		for _, y := range []float64{0, 50, 100} {
			for id, a := range anchors {
				rssi := rssiAt(t, a.DistanceTo(Point{X: x, Y: y}), DefaultDistanceScale)
				samples = append(samples, CalibrationSample{
					AnchorID: id, TargetX: x, TargetY: y, AnchorX: a.X, AnchorY: a.Y, RSSI: rssi,
				})
			}
		}
	}

	fm, err := BuildFingerprintMap(samples, GridSpec{Resolution: 10})
	require.NoError(t, err)

	// the interpolant passes through every surveyed median
	for _, s := range samples {
		surface, ok := fm.Surface(s.AnchorID)
		require.True(t, ok)
		row, col := int(s.TargetY/10), int(s.TargetX/10)
		assert.InDelta(t, s.RSSI, surface.Values[row][col], 1e-9)
	}

	truth := Point{X: 100, Y: 50}
	est, err := NewFingerprinting(fm).Localize(snapshotFor(t, anchors, truth, DefaultDistanceScale))
	require.NoError(t, err)
	assert.Equal(t, truth, est.Position())

	// partial coverage still localizes
	snap := snapshotFor(t, anchors, truth, DefaultDistanceScale)
	delete(snap, "a3")
	_, err = NewFingerprinting(fm).Localize(snap)
	assert.NoError(t, err)
}

func TestFingerprinting_InsufficientAnchors(t *testing.T) {
	fm, err := BuildFingerprintMap([]CalibrationSample{{AnchorID: "a1", RSSI: -60}}, GridSpec{Resolution: 5})
	require.NoError(t, err)

	_, err = NewFingerprinting(fm).Localize(Snapshot{"a2": -60, "a3": -65})
	require.Error(t, err)
	var iae *InsufficientAnchorsError
	require.True(t, errors.As(err, &iae))
	assert.Equal(t, FPL, iae.Algorithm)
	assert.Equal(t, 0, iae.Have)
	assert.Equal(t, 1, iae.Need)
}

func TestBuildFingerprintMap_Errors(t *testing.T) {
	_, err := BuildFingerprintMap(nil, GridSpec{Resolution: 5})
	assert.Error(t, err)

	samples := []CalibrationSample{{AnchorID: "a1", TargetX: 10, RSSI: -60}}
	_, err = BuildFingerprintMap(samples, GridSpec{Resolution: 0})
	assert.Error(t, err)

	_, err = BuildFingerprintMap(samples, GridSpec{
		Bounds:     Bounds{Min: Point{X: 100}, Max: Point{X: 0, Y: 100}},
		Resolution: 5,
	})
	assert.Error(t, err)
}

const surveyCSV = `timestamp,monitor_mac,target_mac,rssi,anchor_position_x,anchor_position_y,target_position_x,target_position_y
1733999000.1,483fda467e7a,20f094118214,-61,1461,241,100,200
1733999000.2,d8bfc0117c7d,20f094118214,-73.5,107,884,100,200
1733999000.3,483fda467e7a,20f094118214,-62,1461,241,150,200
`

func TestReadCalibrationCSV(t *testing.T) {
	samples, err := ReadCalibrationCSV(strings.NewReader(surveyCSV))
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, CalibrationSample{
		AnchorID: "d8bfc0117c7d",
		TargetX:  100,
		TargetY:  200,
		AnchorX:  107,
		AnchorY:  884,
		RSSI:     -73.5,
	}, samples[1])

	// anchor positions are optional
	samples, err = ReadCalibrationCSV(strings.NewReader("monitor_mac,target_position_x,target_position_y,rssi\naa,1,2,-50\n"))
	require.NoError(t, err)
	assert.Equal(t, []CalibrationSample{{AnchorID: "aa", TargetX: 1, TargetY: 2, RSSI: -50}}, samples)
}

func TestReadCalibrationCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"missing column", "monitor_mac,target_position_x,rssi\naa,1,-50\n"},
		{"bad number", "monitor_mac,target_position_x,target_position_y,rssi\naa,1,2,loud\n"},
		{"empty anchor", "monitor_mac,target_position_x,target_position_y,rssi\n,1,2,-50\n"},
		{"ragged row", "monitor_mac,target_position_x,target_position_y,rssi\naa,1,2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCalibrationCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
