//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package logutil

import (
	"os"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
)

// LogWrap adds conditional helpers to a LoggingClient.
type LogWrap struct {
	logger.LoggingClient
}

type KeyValue struct {
	Key string
	Val interface{}
}

func flatten(params []KeyValue) []interface{} {
	if len(params) == 0 {
		return nil
	}
	parts := make([]interface{}, len(params)*2)
	for i := range params {
		parts[i*2] = params[i].Key
		parts[i*2+1] = params[i].Val
	}
	return parts
}

// ErrIf logs msg at the Error level if cond is true, and returns cond.
func (lgr LogWrap) ErrIf(cond bool, msg string, params ...KeyValue) bool {
	if !cond {
		return false
	}
	lgr.Error(msg, flatten(params)...)
	return true
}

// WarnIf logs msg at the Warn level if cond is true, and returns cond.
func (lgr LogWrap) WarnIf(cond bool, msg string, params ...KeyValue) bool {
	if !cond {
		return false
	}
	lgr.Warn(msg, flatten(params)...)
	return true
}

// WarnIfErr logs msg and err at the Warn level if err is not nil.
func (lgr LogWrap) WarnIfErr(err error, msg string, params ...KeyValue) bool {
	if err == nil {
		return false
	}
	return lgr.WarnIf(true, msg, append(params, KeyValue{"error", err.Error()})...)
}

func (lgr LogWrap) ExitIf(cond bool, msg string, params ...KeyValue) {
	if lgr.ErrIf(cond, msg, params...) {
		os.Exit(1)
	}
}

func (lgr LogWrap) ExitIfErr(err error, msg string, params ...KeyValue) {
	if err == nil {
		return
	}
	lgr.ExitIf(true, msg, append(params, KeyValue{"error", err.Error()})...)
}
