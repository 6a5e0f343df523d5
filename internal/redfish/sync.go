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
	"sync"

	"github.com/rs/zerolog/log"
)

// Writes must be serialized per resource path, so concurrent callers of
// one client cannot interleave their mutations; for that reason we keep
// a ~container of mutexes keyed by path.
type syncPool struct {
	lock sync.Mutex
	pool map[string]*sync.Mutex
}

func newSyncPool() *syncPool {
	return &syncPool{
		pool: make(map[string]*sync.Mutex),
	}
}

func (sp *syncPool) pathMutex(path string) *sync.Mutex {
	sp.lock.Lock()
	defer sp.lock.Unlock()

	mutex, ok := sp.pool[path]
	if !ok {
		mutex = &sync.Mutex{}
		sp.pool[path] = mutex
	}
	return mutex
}

func (sp *syncPool) Lock(path string) {
	sp.pathMutex(path).Lock()
	log.Trace().Str("path", path).Msg("locked mutex for path")
}

func (sp *syncPool) Unlock(path string) {
	sp.pathMutex(path).Unlock()
	log.Trace().Str("path", path).Msg("unlocked mutex for path")
}
