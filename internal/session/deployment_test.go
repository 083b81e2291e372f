//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/pathloss"
)

const testDeployment = `
distance_scale: 100
path_loss:
  l0: -42
  n: 3.5
anchors:
  483FDA467E7A: {x: 1461, y: 241}
  d8bfc0117c7d: {x: 107, y: 884}
  24a1602ccfab: {x: 2048, y: 884}
fingerprint:
  bounds:
    min: {x: 0, y: 0}
    max: {x: 2100, y: 900}
  resolution: 10
`

func TestParseDeployment(t *testing.T) {
	d, err := ParseDeployment(strings.NewReader(testDeployment))
	require.NoError(t, err)

	assert.Equal(t, localization.AnchorTable{
		"483fda467e7a": {X: 1461, Y: 241},
		"d8bfc0117c7d": {X: 107, Y: 884},
		"24a1602ccfab": {X: 2048, Y: 884},
	}, d.Anchors)
	assert.Equal(t, pathloss.Model{L0: -42, N: 3.5}, d.PathLoss)
	assert.Equal(t, 100.0, d.DistanceScale)
	assert.Equal(t, localization.GridSpec{
		Bounds:     localization.Bounds{Max: localization.Point{X: 2100, Y: 900}},
		Resolution: 10,
	}, d.GridSpec())
}

func TestParseDeployment_Defaults(t *testing.T) {
	d, err := ParseDeployment(strings.NewReader("anchors:\n  a: {x: 1, y: 2}\n"))
	require.NoError(t, err)
	assert.Equal(t, pathloss.DefaultModel(), d.PathLoss)
	assert.Equal(t, localization.DefaultDistanceScale, d.DistanceScale)
	assert.Equal(t, localization.DefaultResolution, d.Fingerprint.Resolution)
	assert.True(t, d.Fingerprint.Bounds.IsZero())
}

func TestParseDeployment_Invalid(t *testing.T) {
	tests := map[string]string{
		"no anchors":      "distance_scale: 100\n",
		"unknown field":   "anchors:\n  a: {x: 1, y: 2}\nfloorplan: office.png\n",
		"bad exponent":    "anchors:\n  a: {x: 1, y: 2}\npath_loss: {l0: -45, n: 0}\n",
		"negative scale":  "anchors:\n  a: {x: 1, y: 2}\ndistance_scale: -1\n",
		"duplicate ids":   "anchors:\n  aa: {x: 1, y: 2}\n  AA: {x: 3, y: 4}\n",
		"not yaml":        "anchors: [",
		"inverted bounds": "anchors:\n  a: {x: 1, y: 2}\nfingerprint:\n  bounds: {min: {x: 10, y: 0}, max: {x: 0, y: 10}}\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDeployment(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}
