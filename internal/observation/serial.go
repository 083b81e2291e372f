//
// Copyright (C) 2021 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package observation

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"github.com/edgexfoundry/go-mod-core-contracts/clients/logger"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// SerialSource reads monitor lines from the main node's serial port.
// Observations are stamped with their arrival time.
type SerialSource struct {
	port string
	baud int
	lc   logger.LoggingClient
	now  func() time.Time
	open func(port string, baud int) (io.ReadCloser, error)
}

func NewSerialSource(lc logger.LoggingClient, port string, baud int) *SerialSource {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &SerialSource{
		port: port,
		baud: baud,
		lc:   lc,
		now:  time.Now,
		open: openSerial,
	}
}

func openSerial(port string, baud int) (io.ReadCloser, error) {
	return serial.Open(port, &serial.Mode{BaudRate: baud})
}

// Run reads the port until ctx is cancelled or the port fails.
func (s *SerialSource) Run(ctx context.Context, handle Handler) error {
	port, err := s.open(s.port, s.baud)
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", s.port)
	}
	s.lc.Info("Opened serial port.", "port", s.port, "baud", s.baud)

	var closeOnce sync.Once
	closePort := func() {
		closeOnce.Do(func() {
			if err := port.Close(); err != nil {
				s.lc.Warn("Failed to close serial port.", "port", s.port, "error", err.Error())
			}
		})
	}
	defer closePort()

	// closing the port is the only way to unblock a pending read
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-stop:
		}
	}()

	err = readLines(port, s.now, s.lc, handle)
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrapf(err, "serial port %s", s.port)
}

// readLines parses every line of r, skipping those which are malformed.
func readLines(r io.Reader, now func() time.Time, lc logger.LoggingClient, handle Handler) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		obs, err := ParseLine(line, ToSeconds(now()))
		if err != nil {
			lc.Debug("Skipping malformed line.", "error", err.Error())
			continue
		}
		handle(obs)
	}
	return scanner.Err()
}
