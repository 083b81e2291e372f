//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package localization

import (
	"fmt"

	"github.com/pkg/errors"

	"edgexfoundry/app-rssi-localization/internal/pathloss"
)

var (
	// ErrDomain is returned for numeric input outside an algorithm's domain,
	// such as a zero distance in inverse-distance weighting.
	ErrDomain = pathloss.ErrDomain

	// ErrInsufficientAnchors matches every InsufficientAnchorsError.
	ErrInsufficientAnchors = errors.New("insufficient anchors")
)

// InsufficientAnchorsError is returned when fewer usable anchors are available
// than an algorithm needs. Callers should skip the target until the next pass.
type InsufficientAnchorsError struct {
	Algorithm Algorithm
	Have      int
	Need      int
}

func (e *InsufficientAnchorsError) Error() string {
	return fmt.Sprintf("%s: %v (have %d, need %d)", e.Algorithm, ErrInsufficientAnchors, e.Have, e.Need)
}

// Is lets errors.Is match against ErrInsufficientAnchors.
func (e *InsufficientAnchorsError) Is(target error) bool {
	return target == ErrInsufficientAnchors
}

func insufficient(alg Algorithm, have, need int) error {
	if have >= need {
		return nil
	}
	return &InsufficientAnchorsError{Algorithm: alg, Have: have, Need: need}
}
