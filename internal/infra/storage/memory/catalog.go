package memory

import (
	"context"
	"sync"

	"wheelshare/internal/domain/shared/fault"
)

// Vehicle is the catalog's view of a listed vehicle: the booking core only
// cares about ownership and bookability.
type Vehicle struct {
	ID       string
	OwnerID  string
	Bookable bool
}

// VehicleCatalog is an in-memory policies.VehicleCatalog used by tests and
// the demo wiring; production deployments point the port at the listing
// service instead.
type VehicleCatalog struct {
	mu    sync.RWMutex
	items map[string]Vehicle
}

func NewVehicleCatalog() *VehicleCatalog {
	return &VehicleCatalog{items: make(map[string]Vehicle)}
}

func (c *VehicleCatalog) Put(v Vehicle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[v.ID] = v
}

func (c *VehicleCatalog) IsBookable(ctx context.Context, vehicleID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[vehicleID]
	if !ok {
		return false, nil
	}
	return v.Bookable, nil
}

func (c *VehicleCatalog) OwnerOf(ctx context.Context, vehicleID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[vehicleID]
	if !ok {
		return "", fault.Newf(fault.KindNotFound, "catalog: vehicle %s not found", vehicleID)
	}
	return v.OwnerID, nil
}
