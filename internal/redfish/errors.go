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
	"errors"
	"fmt"
)

// ErrResourceUnavailable is returned when no candidate path of a
// selector answers on the target manager.
var ErrResourceUnavailable = errors.New("resource type could not be located on the target")

// StatusError carries a non-success transport status together with the
// raw response body, surfaced to the operator without interpretation.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("request failed with status %d", e.Code)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Code, e.Body)
}
