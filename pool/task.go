/*
 * Copyright 2026 The bmcsense Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pool

import (
	"sync"

	"github.com/benchkit/bmcsense/metric"
)

// Task encapsulates one read operation of a collection.
type Task struct {
	// Err holds an error that occurred during a task. Its result is only
	// meaningful after Run has been called for the pool that holds it.
	Err error

	// Reading holds the task's normalized output once it has run.
	Reading *metric.Reading

	f func() (*metric.Reading, error)
}

// NewTask initializes a new task based on a given work function.
func NewTask(f func() (*metric.Reading, error)) *Task {
	return &Task{f: f}
}

// Run runs a Task and does appropriate accounting via a given
// sync.WaitGroup.
func (t *Task) Run(wg *sync.WaitGroup) {
	t.Reading, t.Err = t.f()
	wg.Done()
}
