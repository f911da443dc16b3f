package palletizing

import (
	"fmt"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
)

// Candidate is a lot as the planner sees it.
type Candidate struct {
	LotID     uint
	Size      Attr[string]
	BoxSize   Attr[uint]
	Available int
	Returned  bool
}

func CandidateOf(l models.Lot) Candidate {
	return Candidate{
		LotID:     l.ID,
		Size:      FromPtr(l.Size),
		BoxSize:   FromPtr(l.BoxSizeID),
		Available: l.AvailableBoxes(),
		Returned:  l.Status == models.LotReturned,
	}
}

// Request is a caller supplied quantity for one lot.
type Request struct {
	LotID    uint
	Quantity int
}

type Options struct {
	AllowMixedSizes    bool
	AllowMixedBoxTypes bool
}

// Target is an existing pallet.
type Target struct {
	Capacity int
	Current  int
	Size     Attr[string]
	BoxSize  Attr[uint]
}

type Draw struct {
	LotID    uint
	Quantity int
}

// Load is what ends up on one pallet.
type Load struct {
	Draws   []Draw
	Boxes   int
	Size    Attr[string]
	BoxSize Attr[uint]
}

type validated struct {
	draws   []Draw
	total   int
	size    Attr[string]
	boxSize Attr[uint]
}

func validate(pool []Candidate, reqs []Request, size Attr[string], boxSize Attr[uint], opt Options) (validated, error) {
	if len(reqs) == 0 {
		return validated{}, apperr.Validation("no_assignments", "at least one lot assignment is required", "lot_assignments")
	}
	byID := make(map[uint]Candidate, len(pool))
	for _, c := range pool {
		byID[c.LotID] = c
	}

	v := validated{size: size, boxSize: boxSize}
	seen := make(map[uint]bool, len(reqs))
	for i, r := range reqs {
		field := fmt.Sprintf("lot_assignments[%d]", i)
		c, ok := byID[r.LotID]
		if !ok {
			return validated{}, apperr.Validation("unknown_lot", fmt.Sprintf("lot %d is not available for allocation", r.LotID), field+".lot_id")
		}
		if seen[r.LotID] {
			return validated{}, apperr.Validation("duplicate_lot", fmt.Sprintf("lot %d is assigned more than once", r.LotID), field+".lot_id")
		}
		seen[r.LotID] = true

		if r.Quantity < 0 || r.Quantity > c.Available {
			return validated{}, apperr.Validation("quantity_out_of_range",
				fmt.Sprintf("lot %d: box_count %d outside 0..%d", r.LotID, r.Quantity, c.Available), field+".box_count")
		}
		if r.Quantity == 0 {
			continue
		}
		if c.Returned {
			return validated{}, apperr.Validation("lot_returned", fmt.Sprintf("lot %d was returned and cannot be palletized", r.LotID), field+".lot_id")
		}

		next, ok := admit(v.size, c.Size, opt.AllowMixedSizes)
		if !ok {
			return validated{}, apperr.Validation("mixed_sizes",
				fmt.Sprintf("mixed sizes %s and %s without allow_mixed_sizes", v.size, c.Size), "size", "allow_mixed_sizes")
		}
		v.size = next

		nextBox, ok := admit(v.boxSize, c.BoxSize, opt.AllowMixedBoxTypes)
		if !ok {
			return validated{}, apperr.Validation("mixed_box_types",
				fmt.Sprintf("mixed box types %s and %s without allow_mixed_box_types", v.boxSize, c.BoxSize), "box_size_id", "allow_mixed_box_types")
		}
		v.boxSize = nextBox

		v.draws = append(v.draws, Draw{LotID: r.LotID, Quantity: r.Quantity})
		v.total += r.Quantity
	}
	if v.total == 0 {
		return validated{}, apperr.Validation("nothing_to_allocate", "at least one lot needs a box_count above zero", "lot_assignments")
	}
	return v, nil
}

// PlanNew spreads the requested cartons over as many new pallets as needed,
// filling each to capacity in the order the lots were given.
func PlanNew(pool []Candidate, reqs []Request, capacity int, size Attr[string], opt Options) ([]Load, error) {
	if capacity <= 0 {
		return nil, apperr.Validation("invalid_capacity", "pallet capacity must be positive", "capacity_boxes")
	}
	v, err := validate(pool, reqs, size, Unset[uint](), opt)
	if err != nil {
		return nil, err
	}

	loads := make([]Load, 0, (v.total+capacity-1)/capacity)
	cur := Load{Size: v.size, BoxSize: v.boxSize}
	for _, d := range v.draws {
		left := d.Quantity
		for left > 0 {
			take := min(left, capacity-cur.Boxes)
			cur.Draws = append(cur.Draws, Draw{LotID: d.LotID, Quantity: take})
			cur.Boxes += take
			left -= take
			if cur.Boxes == capacity {
				loads = append(loads, cur)
				cur = Load{Size: v.size, BoxSize: v.boxSize}
			}
		}
	}
	if cur.Boxes > 0 {
		loads = append(loads, cur)
	}
	return loads, nil
}

// PlanExisting adds the requested cartons to one pallet. It never overflows
// onto another pallet.
func PlanExisting(t Target, pool []Candidate, reqs []Request, opt Options) (Load, error) {
	v, err := validate(pool, reqs, t.Size, t.BoxSize, opt)
	if err != nil {
		return Load{}, err
	}
	if t.Current+v.total > t.Capacity {
		return Load{}, apperr.Precondition("capacity_exceeded",
			fmt.Sprintf("pallet has room for %d cartons, %d requested", t.Capacity-t.Current, v.total))
	}
	return Load{Draws: v.draws, Boxes: v.total, Size: v.size, BoxSize: v.boxSize}, nil
}
