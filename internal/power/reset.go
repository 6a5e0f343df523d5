/*
Copyright (c) 2024 Fsas Technologies Inc., or its subsidiaries. All Rights Reserved.

Licensed under the Mozilla Public License Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://mozilla.org/MPL/2.0/


Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package power drives host power transitions after configuration
// changes that only take effect on the next POST.
package power

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	gfredfish "github.com/stmcginnis/gofish/redfish"

	"ilo-redfish-cli/internal/redfish"
)

const pollInterval = 2 * time.Second

// IsPoweredOn returns whether the host behind the client reports the On
// power state.
func IsPoweredOn(c *redfish.Client) (bool, error) {
	system, err := c.System()
	if err != nil {
		return false, err
	}
	return system.PowerState == gfredfish.OnPowerState, nil
}

// waitUntilHostStateChanged polls the host until the expected power
// state is reached or the timeout expires.
func waitUntilHostStateChanged(c *redfish.Client, expectedPoweredOn bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		poweredOn, err := IsPoweredOn(c)
		if err != nil {
			return err
		}

		if poweredOn == expectedPoweredOn {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("host state has not been changed within given timeout %s", timeout)
		}

		time.Sleep(pollInterval)
	}
}

// Reset performs the requested reset on the host and waits for the
// resulting power state.
func Reset(c *redfish.Client, resetType gfredfish.ResetType, timeout time.Duration) error {
	system, err := c.System()
	if err != nil {
		return err
	}

	if err := system.Reset(resetType); err != nil {
		return fmt.Errorf("host reset %s failed: %w", resetType, err)
	}

	log.Info().Str("reset_type", string(resetType)).Msg("host reset requested")

	expectedTargetState := true
	if resetType == gfredfish.GracefulShutdownResetType || resetType == gfredfish.ForceOffResetType {
		expectedTargetState = false
	}

	return waitUntilHostStateChanged(c, expectedTargetState, timeout)
}

// ResetOrPowerOn powers the host on when it is currently off, otherwise
// performs the requested reset. Used by the post-operation reboot flag
// of the mutating commands.
func ResetOrPowerOn(c *redfish.Client, resetType gfredfish.ResetType, timeout time.Duration) error {
	poweredOn, err := IsPoweredOn(c)
	if err != nil {
		return err
	}

	if !poweredOn {
		system, err := c.System()
		if err != nil {
			return err
		}
		if err := system.Reset(gfredfish.OnResetType); err != nil {
			return fmt.Errorf("host power on failed: %w", err)
		}
		return waitUntilHostStateChanged(c, true, timeout)
	}

	return Reset(c, resetType, timeout)
}
