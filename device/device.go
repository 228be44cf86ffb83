// Package device models the execution target a compiled program runs on.
// A Queue is the handle everything else holds on to: buffers may be attached
// to a queue while in use and detached once their contents are final.
package device

import "github.com/google/uuid"

// Device describes a single execution target.
type Device struct {
	// Name identifies the device, e.g. "host" or "gpu0".
	Name string
}

// Host is the default in-process device.
var Host = &Device{Name: "host"}

// Queue is an execution queue bound to one device. Submissions to a queue
// complete in order; programs block until their submission has finished.
type Queue struct {
	id     string
	device *Device
}

// NewQueue creates a queue for the given device. A nil device means Host.
func NewQueue(d *Device) *Queue {
	if d == nil {
		d = Host
	}
	return &Queue{id: uuid.NewString(), device: d}
}

// ID returns the unique identifier of this queue, useful as a log attribute.
func (q *Queue) ID() string { return q.id }

// Device returns the device this queue is bound to.
func (q *Queue) Device() *Device { return q.device }
