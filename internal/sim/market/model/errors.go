package model

import (
	"errors"
	"fmt"
)

// Code names one recoverable failure. Every rejection reported to a player
// carries exactly one.
type Code string

const (
	AlreadyOccupied Code = "AlreadyOccupied"
	WouldOverlap    Code = "WouldOverlap"
	NotEmpty        Code = "NotEmpty"
	NotInPlot       Code = "NotInPlot"
	UnknownPlot     Code = "UnknownPlot"

	NotForSale          Code = "NotForSale"
	NotFound            Code = "NotFound"
	NoPriceSet          Code = "NoPriceSet"
	InsufficientFunds   Code = "InsufficientFunds"
	SamePrefabAsProduct Code = "SamePrefabAsProduct"
	Closed              Code = "Closed"
	NoRoom              Code = "NoRoom"
	PriceTooHigh        Code = "PriceTooHigh"
	InvalidPrice        Code = "InvalidPrice"

	CannotMove        Code = "CannotMove"
	CannotDo          Code = "CannotDo"
	Disabled          Code = "Disabled"
	AlreadyAssigned   Code = "AlreadyAssigned"
	NoTrader          Code = "NoTrader"
	AlreadyOwnsTrader Code = "AlreadyOwnsTrader"
	Internal          Code = "Internal"
)

type PlacementError struct {
	Code Code
	Msg  string
}

func (e *PlacementError) Error() string { return render("placement", e.Code, e.Msg) }

func (e *PlacementError) Is(target error) bool {
	t, ok := target.(*PlacementError)
	return ok && t.Code == e.Code
}

type TradeError struct {
	Code Code
	Msg  string
}

func (e *TradeError) Error() string { return render("trade", e.Code, e.Msg) }

func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	return ok && t.Code == e.Code
}

type ValidationError struct {
	Code Code
	Msg  string
}

func (e *ValidationError) Error() string { return render("validation", e.Code, e.Msg) }

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Code == e.Code
}

func render(kind string, code Code, msg string) string {
	if msg == "" {
		return kind + ": " + string(code)
	}
	return msg
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrAlreadyOccupied = &PlacementError{Code: AlreadyOccupied}
	ErrWouldOverlap    = &PlacementError{Code: WouldOverlap}
	ErrNotEmpty        = &PlacementError{Code: NotEmpty}
	ErrNotInPlot       = &PlacementError{Code: NotInPlot}
	ErrUnknownPlot     = &PlacementError{Code: UnknownPlot}

	ErrNotForSale          = &TradeError{Code: NotForSale}
	ErrNotFound            = &TradeError{Code: NotFound}
	ErrNoPriceSet          = &TradeError{Code: NoPriceSet}
	ErrInsufficientFunds   = &TradeError{Code: InsufficientFunds}
	ErrSamePrefabAsProduct = &TradeError{Code: SamePrefabAsProduct}
	ErrClosed              = &TradeError{Code: Closed}
	ErrNoRoom              = &TradeError{Code: NoRoom}
	ErrPriceTooHigh        = &TradeError{Code: PriceTooHigh}
	ErrInvalidPrice        = &TradeError{Code: InvalidPrice}

	ErrCannotMove        = &ValidationError{Code: CannotMove}
	ErrCannotDo          = &ValidationError{Code: CannotDo}
	ErrDisabled          = &ValidationError{Code: Disabled}
	ErrAlreadyAssigned   = &ValidationError{Code: AlreadyAssigned}
	ErrNoTrader          = &ValidationError{Code: NoTrader}
	ErrAlreadyOwnsTrader = &ValidationError{Code: AlreadyOwnsTrader}
	ErrInternal          = &ValidationError{Code: Internal}
)

func Placement(code Code, msg string) error { return &PlacementError{Code: code, Msg: msg} }

func Trade(code Code, format string, args ...any) error {
	return &TradeError{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Validation(code Code, msg string) error { return &ValidationError{Code: code, Msg: msg} }

// CodeOf extracts the failure code from any error in the taxonomy.
func CodeOf(err error) (Code, bool) {
	var pe *PlacementError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	var te *TradeError
	if errors.As(err, &te) {
		return te.Code, true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Code, true
	}
	return "", false
}

// Message is the player-facing text for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pe *PlacementError
	if errors.As(err, &pe) && pe.Msg != "" {
		return pe.Msg
	}
	var te *TradeError
	if errors.As(err, &te) && te.Msg != "" {
		return te.Msg
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Msg != "" {
		return ve.Msg
	}
	if code, ok := CodeOf(err); ok {
		if m, ok := defaultMessages[code]; ok {
			return m
		}
	}
	return err.Error()
}

var defaultMessages = map[Code]string{
	AlreadyOccupied:     "There's already a plot here!",
	WouldOverlap:        "Can't create a plot here - it would overlap with an existing one!",
	NotEmpty:            "This plot isn't empty. Remove the shop first.",
	NotInPlot:           "You need to be inside a plot to do that.",
	UnknownPlot:         "That plot doesn't exist.",
	NotForSale:          "This item isn't for sale.",
	NotFound:            "Couldn't find that item in the shop.",
	NoPriceSet:          "This item doesn't have a price set.",
	InsufficientFunds:   "You can't afford this item.",
	SamePrefabAsProduct: "The price can't be the same item you're selling.",
	Closed:              "This shop is closed.",
	NoRoom:              "You don't have room for that item.",
	PriceTooHigh:        "That price is too high.",
	InvalidPrice:        "The price must be at least 1.",
	CannotMove:          "You can't move that here.",
	CannotDo:            "You can't do that here.",
	Disabled:            "Close your shop before changing it.",
	AlreadyAssigned:     "Nothing to change.",
	NoTrader:            "You don't have a shop.",
	AlreadyOwnsTrader:   "You already have a shop!",
	Internal:            "Something went wrong... contact an administrator.",
}
