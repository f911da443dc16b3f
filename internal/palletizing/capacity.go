package palletizing

import "packhouse-backend/internal/models"

// ResolveCapacity returns the carton capacity of a pallet type for a box size:
// the per-box override when one exists, else the type's default.
func ResolveCapacity(pt models.PalletType, boxSizeID *uint) int {
	if boxSizeID != nil {
		for _, c := range pt.Capacities {
			if c.BoxSizeID == *boxSizeID {
				return c.CapacityBoxes
			}
		}
	}
	return pt.CapacityBoxes
}
