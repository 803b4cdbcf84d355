package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Rule/action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNoPermission  = "E_NO_PERMISSION"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrConflict      = "E_CONFLICT"
	ErrBlocked       = "E_BLOCKED"
	ErrInternal      = "E_INTERNAL"

	// Market: placement.
	ErrOccupied    = "E_OCCUPIED"
	ErrOverlap     = "E_OVERLAP"
	ErrNotEmpty    = "E_NOT_EMPTY"
	ErrNotInPlot   = "E_NOT_IN_PLOT"
	ErrUnknownPlot = "E_UNKNOWN_PLOT"

	// Market: trade.
	ErrNotForSale   = "E_NOT_FOR_SALE"
	ErrNotFound     = "E_NOT_FOUND"
	ErrNoPrice      = "E_NO_PRICE"
	ErrNoFunds      = "E_NO_FUNDS"
	ErrSameItem     = "E_SAME_ITEM"
	ErrClosed       = "E_CLOSED"
	ErrNoRoom       = "E_NO_ROOM"
	ErrPriceTooHigh = "E_PRICE_TOO_HIGH"
	ErrInvalidPrice = "E_INVALID_PRICE"
	ErrUnknownItem  = "E_UNKNOWN_ITEM"

	// Market: validation.
	ErrCannotMove      = "E_CANNOT_MOVE"
	ErrCannotDo        = "E_CANNOT_DO"
	ErrDisabled        = "E_DISABLED"
	ErrAlreadyAssigned = "E_ALREADY_ASSIGNED"
	ErrNoTrader        = "E_NO_TRADER"
	ErrAlreadyOwns     = "E_ALREADY_OWNS"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrNoResource:      {},
	ErrInvalidTarget:   {},
	ErrRateLimit:       {},
	ErrConflict:        {},
	ErrBlocked:         {},
	ErrInternal:        {},
	ErrOccupied:        {},
	ErrOverlap:         {},
	ErrNotEmpty:        {},
	ErrNotInPlot:       {},
	ErrUnknownPlot:     {},
	ErrNotForSale:      {},
	ErrNotFound:        {},
	ErrNoPrice:         {},
	ErrNoFunds:         {},
	ErrSameItem:        {},
	ErrClosed:          {},
	ErrNoRoom:          {},
	ErrPriceTooHigh:    {},
	ErrInvalidPrice:    {},
	ErrUnknownItem:     {},
	ErrCannotMove:      {},
	ErrCannotDo:        {},
	ErrDisabled:        {},
	ErrAlreadyAssigned: {},
	ErrNoTrader:        {},
	ErrAlreadyOwns:     {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// marketCodes maps market rejection codes to wire codes.
var marketCodes = map[string]string{
	"AlreadyOccupied":     ErrOccupied,
	"WouldOverlap":        ErrOverlap,
	"NotEmpty":            ErrNotEmpty,
	"NotInPlot":           ErrNotInPlot,
	"UnknownPlot":         ErrUnknownPlot,
	"NotForSale":          ErrNotForSale,
	"NotFound":            ErrNotFound,
	"NoPriceSet":          ErrNoPrice,
	"InsufficientFunds":   ErrNoFunds,
	"SamePrefabAsProduct": ErrSameItem,
	"Closed":              ErrClosed,
	"NoRoom":              ErrNoRoom,
	"PriceTooHigh":        ErrPriceTooHigh,
	"InvalidPrice":        ErrInvalidPrice,
	"CannotMove":          ErrCannotMove,
	"CannotDo":            ErrCannotDo,
	"Disabled":            ErrDisabled,
	"AlreadyAssigned":     ErrAlreadyAssigned,
	"NoTrader":            ErrNoTrader,
	"AlreadyOwnsTrader":   ErrAlreadyOwns,
	"Internal":            ErrInternal,
}

// WireCode returns the E_* code for a market rejection code. Unmapped codes
// become E_INTERNAL; the empty code stays empty.
func WireCode(code string) string {
	if code == "" {
		return ""
	}
	if c, ok := marketCodes[code]; ok {
		return c
	}
	return ErrInternal
}
