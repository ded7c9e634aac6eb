package policies

import "context"

// VehicleCatalog is the listing collaborator: the booking core only needs to
// know whether a vehicle can be booked and who owns it.
type VehicleCatalog interface {
	IsBookable(ctx context.Context, vehicleID string) (bool, error)
	OwnerOf(ctx context.Context, vehicleID string) (string, error)
}
