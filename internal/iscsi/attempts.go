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

package iscsi

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// ErrAllAttemptsConfigured is returned when every boot source entry
// already carries an attempt instance and no free slot remains.
var ErrAllAttemptsConfigured = errors.New("all NICs have already been configured")

// ErrAttemptNotFound is returned when the attempt instance targeted for
// delete does not exist in the current boot sources.
var ErrAttemptNotFound = errors.New("the given attempt instance does not exist")

// NextAttemptInstance computes the attempt instance number to assign to
// a newly added boot attempt: the lowest positive number not yet used by
// any record, limited to 1..len(records).
//
// The exhaustion check compares the count of configured records against
// the total record count, not value coverage. A record holding an
// out-of-range instance value can therefore trigger exhaustion while
// numeric gaps remain; this mirrors the established behaviour and is
// kept deliberately.
func NextAttemptInstance(records []Record, keys Keys) (int, error) {
	size := len(records)

	used := make([]int, 0, size)
	for _, record := range records {
		if instance := record.Instance(keys); instance != 0 {
			used = append(used, instance)
		}
	}

	if size == len(used) {
		return 0, ErrAllAttemptsConfigured
	}

	if len(used) == 0 {
		return 1, nil
	}

	sort.Ints(used)

	iterate := 0
	for i := 1; i <= size; i++ {
		if iterate < len(used) && i == used[iterate] {
			iterate++
		} else {
			return iterate + 1, nil
		}
	}

	return len(used) + 1, nil
}

// ApplyAdd writes candidate's NIC source together with a freshly
// allocated attempt instance into the first unconfigured record. The
// records slice is the working copy about to be written back whole, so
// mutation in place is intended here. Returns the index of the modified
// record.
func ApplyAdd(records []Record, keys Keys, candidate Mapping) (int, error) {
	instance, err := NextAttemptInstance(records, keys)
	if err != nil {
		return 0, err
	}

	for i, record := range records {
		if record.Instance(keys) != 0 {
			continue
		}

		record[keys.NicSource] = candidate.BootSourceKey()
		record[keys.AttemptInstance] = instance
		record[keys.AttemptName] = strconv.Itoa(instance)
		return i, nil
	}

	return 0, ErrAllAttemptsConfigured
}

// ApplyDelete replaces the record carrying the given attempt instance
// with the base configuration default at the same index, returning the
// full rewritten sequence. The caller must submit the result with the
// concurrency token read together with the input records.
func ApplyDelete(records []Record, keys Keys, defaults []Record, instance int) ([]Record, error) {
	if instance == 0 {
		return nil, fmt.Errorf("%w: instance must be a positive number", ErrAttemptNotFound)
	}

	found := false
	out := make([]Record, len(records))
	for i, record := range records {
		if record.Instance(keys) == instance {
			if i >= len(defaults) {
				return nil, fmt.Errorf("base configuration has no default for entry %d", i)
			}
			out[i] = defaults[i]
			found = true
		} else {
			out[i] = record
		}
	}

	if !found {
		return nil, ErrAttemptNotFound
	}

	return out, nil
}
