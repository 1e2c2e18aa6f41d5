//go:build !linux

package cmd

import "errors"

func collectDevices() ([]DeviceReport, error) {
	return nil, errors.New("device enumeration requires Linux")
}
