//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"os"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/localization"
)

// LoadFingerprintMap reads a survey CSV and builds its fingerprint map.
func LoadFingerprintMap(path string, spec localization.GridSpec) (*localization.FingerprintMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open fingerprint survey")
	}
	defer f.Close()

	samples, err := localization.ReadCalibrationCSV(f)
	if err != nil {
		return nil, errors.Wrapf(err, "fingerprint survey %s", path)
	}
	fm, err := localization.BuildFingerprintMap(samples, spec)
	return fm, errors.Wrapf(err, "fingerprint survey %s", path)
}

// NewLocalizers creates the localizers for algs. FPL is skipped with a warning
// when fm is nil.
func NewLocalizers(lc logger.LoggingClient, algs []localization.Algorithm,
	dep Deployment, fm *localization.FingerprintMap) ([]localization.Localizer, error) {
	var localizers []localization.Localizer
	for _, alg := range algs {
		switch alg {
		case localization.TLSL:
			localizers = append(localizers, localization.NewTrilateration(dep.Geometry()))
		case localization.TWCL:
			localizers = append(localizers, localization.NewWeightedCentroid(dep.Geometry()))
		case localization.FPL:
			if fm == nil {
				lc.Warn("FPL is enabled, but no fingerprint survey is configured; skipping it.")
				continue
			}
			localizers = append(localizers, localization.NewFingerprinting(fm))
		default:
			return nil, errors.Wrapf(localization.ErrUnknownAlgorithm, "%q", alg)
		}
	}

	if len(localizers) == 0 {
		return nil, errors.New("no localization algorithms are enabled")
	}
	return localizers, nil
}
