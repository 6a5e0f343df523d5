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

package redfish

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	gfredfish "github.com/stmcginnis/gofish/redfish"
)

const taskPollInterval = 5 * time.Second

// isTaskFinished returns information whether task state
// has been mapped to task finished state and the information
// is returned as boolean.
func isTaskFinished(state gfredfish.TaskState) bool {
	switch state {
	case gfredfish.CompletedTaskState, gfredfish.ExceptionTaskState, gfredfish.CancelledTaskState, gfredfish.KilledTaskState:
		fallthrough
	case gfredfish.InterruptedTaskState, gfredfish.SuspendedTaskState:
		return true
	default:
		break
	}
	return false
}

// WaitForTask checks in loop until the task pointed by location reports
// a finished state or the operation times out. A task finishing in any
// state other than Completed is returned as error.
func (c *Client) WaitForTask(location string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		task, err := gfredfish.GetTask(c.service.GetClient(), location)
		if err != nil {
			return fmt.Errorf("error during task %s retrieval: %w", location, err)
		}

		log.Trace().Str("location", location).Str("state", string(task.TaskState)).Msg("task details")

		if isTaskFinished(task.TaskState) {
			if task.TaskState == gfredfish.CompletedTaskState {
				return nil
			}
			return fmt.Errorf("task finished with TaskState %s", task.TaskState)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("task has not finished within given timeout %s", timeout)
		}
		time.Sleep(taskPollInterval)
	}
}
