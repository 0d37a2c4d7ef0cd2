// Copyright (C) 2025 Toitware ApS. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.bug.st/serial"
)

// Conn is a byte connection to the badge.
//
// Read does not block for longer than the poll interval the connection was
// opened with. A read that returns (0, nil) means no bytes arrived in that
// window. Reads fail once the connection is closed.
type Conn interface {
	io.ReadWriteCloser
	// ResetInputBuffer discards any received but unread bytes.
	ResetInputBuffer() error
}

func serialOpen(port string, baud int, poll time.Duration) (*serialPort, error) {
	dev, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
	})
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("the port '%s' was not found", port)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s', is it in use by another program? reason: %w", port, err)
	}

	if err := dev.SetReadTimeout(poll); err != nil {
		dev.Close()
		return nil, err
	}
	logger.Debug().Str("port", port).Int("baud", baud).Msg("opened serial port")
	return &serialPort{dev}, nil
}

// openSettings opens the serial connection described by the settings, using
// the default poll interval.
func openSettings(settings Settings) (*serialPort, error) {
	return serialOpen(settings.Port, settings.Baud, defaultTiming.Poll)
}

type serialPort struct {
	serial.Port
}

func (s *serialPort) Reboot() {
	s.SetDTR(false)
	s.SetRTS(true)
	time.Sleep(100 * time.Millisecond)
	s.SetRTS(false)
}
