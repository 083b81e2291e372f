//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"edgexfoundry/app-rssi-localization/internal/localization"
	"edgexfoundry/app-rssi-localization/internal/pathloss"
)

// Deployment describes a physical installation: where the anchors are and how
// their signal decays. It is loaded once at startup.
type Deployment struct {
	Anchors  localization.AnchorTable `yaml:"anchors"`
	PathLoss pathloss.Model           `yaml:"path_loss"`
	// DistanceScale is the number of coordinate units per meter.
	DistanceScale float64             `yaml:"distance_scale"`
	Fingerprint   FingerprintSettings `yaml:"fingerprint"`
}

// FingerprintSettings describes the grid fingerprint surfaces are evaluated on.
type FingerprintSettings struct {
	// Bounds defaults to the bounding box of the surveyed positions.
	Bounds     localization.Bounds `yaml:"bounds"`
	Resolution float64             `yaml:"resolution"`
}

// GridSpec returns the fingerprint grid for this deployment.
func (d Deployment) GridSpec() localization.GridSpec {
	return localization.GridSpec{Bounds: d.Fingerprint.Bounds, Resolution: d.Fingerprint.Resolution}
}

// Geometry returns what the distance based localizers need.
func (d Deployment) Geometry() localization.Geometry {
	return localization.Geometry{
		Anchors:       d.Anchors,
		Model:         d.PathLoss,
		DistanceScale: d.DistanceScale,
	}
}

// ParseDeployment decodes a YAML deployment, filling unset values with defaults.
// Anchor IDs are lower-cased to match observations.
func ParseDeployment(r io.Reader) (Deployment, error) {
	var d Deployment
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&d); err != nil {
		return Deployment{}, errors.Wrap(err, "failed to decode deployment")
	}

	if d.PathLoss == (pathloss.Model{}) {
		d.PathLoss = pathloss.DefaultModel()
	}
	if d.DistanceScale == 0 {
		d.DistanceScale = localization.DefaultDistanceScale
	}
	if d.Fingerprint.Resolution == 0 {
		d.Fingerprint.Resolution = localization.DefaultResolution
	}

	anchors := make(localization.AnchorTable, len(d.Anchors))
	for id, pos := range d.Anchors {
		id = strings.ToLower(strings.TrimSpace(id))
		if _, dup := anchors[id]; dup {
			return Deployment{}, errors.Errorf("anchor %s is listed more than once", id)
		}
		anchors[id] = pos
	}
	d.Anchors = anchors

	return d, d.Validate()
}

// LoadDeployment reads the deployment file at path.
func LoadDeployment(path string) (Deployment, error) {
	f, err := os.Open(path)
	if err != nil {
		return Deployment{}, errors.Wrap(err, "failed to open deployment file")
	}
	defer f.Close()

	d, err := ParseDeployment(f)
	return d, errors.Wrapf(err, "deployment file %s", path)
}

func (d Deployment) Validate() error {
	if len(d.Anchors) == 0 {
		return errors.New("deployment has no anchors")
	}
	if err := d.Geometry().Validate(); err != nil {
		return err
	}
	return d.GridSpec().Validate()
}
