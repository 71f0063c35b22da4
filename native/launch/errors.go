package launch

import "errors"

var (
	ErrInvalidSession          = errors.New("launch: invalid session")
	ErrBadSessionBounds        = errors.New("launch: window bounds out of order")
	ErrOutsideAllocationWindow = errors.New("launch: outside allocation window")
	ErrOutsideMintingWindow    = errors.New("launch: outside minting window")
	ErrInsufficientBalance     = errors.New("launch: insufficient balance")
	ErrBelowUnitPrice          = errors.New("launch: amount below unit price")
	ErrSupplyExhausted         = errors.New("launch: supply exhausted")
	ErrMintingNotOver          = errors.New("launch: minting window not over")
	ErrNotCoordinator          = errors.New("launch: caller is not the coordinator")
	ErrInsufficientCustody     = errors.New("launch: insufficient unit custody")
	ErrInvalidAmount           = errors.New("launch: amount must be positive")
)
