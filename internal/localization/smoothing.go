//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"github.com/pkg/errors"
)

// Smoother applies exponential smoothing to successive fixes of the same
// (target, algorithm) pair:
//
//	p ← α·fix + (1−α)·p
//
// It is not safe for concurrent use.
type Smoother struct {
	alpha float64
	last  map[smoothKey]Point
}

type smoothKey struct {
	targetID  string
	algorithm Algorithm
}

// NewSmoother creates a Smoother with the given weight for new fixes.
// Alpha must be in (0, 1]; an alpha of 1 disables smoothing.
func NewSmoother(alpha float64) (*Smoother, error) {
	if !(alpha > 0 && alpha <= 1) {
		return nil, errors.Errorf("smoothing factor must be in (0, 1], got %v", alpha)
	}
	return &Smoother{alpha: alpha, last: make(map[smoothKey]Point)}, nil
}

// Alpha returns the weight given to new fixes.
func (s *Smoother) Alpha() float64 { return s.alpha }

// Smooth blends est's position into the previous fix for the pair and returns
// the estimate with the smoothed position. Diagnostics are left untouched.
func (s *Smoother) Smooth(targetID string, alg Algorithm, est Estimate) Estimate {
	key := smoothKey{targetID: targetID, algorithm: alg}
	p := est.Position()
	if prev, ok := s.last[key]; ok {
		p = Point{
			X: s.alpha*p.X + (1-s.alpha)*prev.X,
			Y: s.alpha*p.Y + (1-s.alpha)*prev.Y,
		}
	}
	s.last[key] = p
	return est.withPosition(p)
}

// Forget drops the smoothing history of targetID.
func (s *Smoother) Forget(targetID string) {
	for k := range s.last {
		if k.targetID == targetID {
			delete(s.last, k)
		}
	}
}
