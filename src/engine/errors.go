package engine

import (
	"errors"
	"fmt"
)

// ErrEmptyModify rejects a modify request that changes neither price nor
// quantity.
var ErrEmptyModify = errors.New("modify requires a new price or a new quantity")

type InvalidSideError struct {
	OrderID string
	Side    string
}

func (e *InvalidSideError) Error() string {
	return fmt.Sprintf("order %s: invalid side %q", e.OrderID, e.Side)
}

type InvalidPriceError struct {
	OrderID string
	Price   string
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("order %s: invalid price %s", e.OrderID, e.Price)
}

type InvalidQuantityError struct {
	OrderID  string
	Quantity string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("order %s: invalid quantity %s", e.OrderID, e.Quantity)
}

type DuplicateOrderError struct {
	OrderID string
}

func (e *DuplicateOrderError) Error() string {
	return fmt.Sprintf("order %s is already resting", e.OrderID)
}

type UnknownOrderError struct {
	OrderID string
}

func (e *UnknownOrderError) Error() string {
	return fmt.Sprintf("order %s is not resting", e.OrderID)
}
