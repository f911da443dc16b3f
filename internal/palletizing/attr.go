package palletizing

import "fmt"

// Attr is a pallet attribute that is either Unset or Fixed to a value.
type Attr[T comparable] struct {
	value T
	fixed bool
}

func Unset[T comparable]() Attr[T] {
	return Attr[T]{}
}

func Fixed[T comparable](v T) Attr[T] {
	return Attr[T]{value: v, fixed: true}
}

// FromPtr maps a nullable column onto an Attr.
func FromPtr[T comparable](p *T) Attr[T] {
	if p == nil {
		return Unset[T]()
	}
	return Fixed(*p)
}

func (a Attr[T]) Get() (T, bool) {
	return a.value, a.fixed
}

// Ptr maps the Attr back onto a nullable column.
func (a Attr[T]) Ptr() *T {
	if !a.fixed {
		return nil
	}
	v := a.value
	return &v
}

func (a Attr[T]) String() string {
	if !a.fixed {
		return "unset"
	}
	return fmt.Sprint(a.value)
}

// admit matches a lot attribute against the pallet attribute and returns the
// pallet attribute after the lot is placed.
func admit[T comparable](pallet, lot Attr[T], allowMixed bool) (Attr[T], bool) {
	switch {
	case !pallet.fixed && !lot.fixed:
		return pallet, true
	case !pallet.fixed:
		if allowMixed {
			return pallet, true
		}
		return lot, true
	case pallet == lot:
		return pallet, true
	default:
		return pallet, allowMixed
	}
}
