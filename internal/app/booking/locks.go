package booking

import "sync"

// vehicleLocks serializes booking creation per vehicle so the conflict check
// and the insert behave as one atomic unit. Without it two concurrent
// requests can both pass the availability check and double-book the vehicle.
type vehicleLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newVehicleLocks() *vehicleLocks {
	return &vehicleLocks{locks: make(map[string]*sync.Mutex)}
}

func (v *vehicleLocks) lock(vehicleID string) func() {
	v.mu.Lock()
	m, ok := v.locks[vehicleID]
	if !ok {
		m = &sync.Mutex{}
		v.locks[vehicleID] = m
	}
	v.mu.Unlock()
	m.Lock()
	return m.Unlock
}
