package dexerrors

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace is the registry namespace for every error raised by the exchange.
const Codespace = "fluxdex"

// General errors
var (
	ErrUnauthorized              = errorsmod.Register(Codespace, 2, "unauthorized access")
	ErrInvalidInputAmount        = errorsmod.Register(Codespace, 3, "invalid input amount")
	ErrInsufficientLiquidity     = errorsmod.Register(Codespace, 4, "insufficient liquidity")
	ErrOverflow                  = errorsmod.Register(Codespace, 5, "arithmetic overflow")
	ErrUnderflow                 = errorsmod.Register(Codespace, 6, "arithmetic underflow")
	ErrInvalidAccount            = errorsmod.Register(Codespace, 7, "invalid account")
	ErrAccountAlreadyInitialized = errorsmod.Register(Codespace, 8, "account already initialized")
	ErrAccountNotFound           = errorsmod.Register(Codespace, 9, "account not found")
)

// Liquidity management errors
var (
	ErrInvalidPriceRange    = errorsmod.Register(Codespace, 100, "invalid price range")
	ErrPositionNotFound     = errorsmod.Register(Codespace, 101, "position not found")
	ErrInvalidStrategyType  = errorsmod.Register(Codespace, 102, "invalid strategy type")
	ErrInvalidRiskProfile   = errorsmod.Register(Codespace, 103, "invalid risk profile")
	ErrRebalanceNotRequired = errorsmod.Register(Codespace, 104, "rebalance not required")
	ErrSlippageExceeded     = errorsmod.Register(Codespace, 105, "slippage tolerance exceeded")
)

// Trading errors
var (
	ErrInvalidFeeTier      = errorsmod.Register(Codespace, 200, "invalid fee tier")
	ErrPriceImpactTooHigh  = errorsmod.Register(Codespace, 201, "price impact too high")
	ErrMinimumOutputNotMet = errorsmod.Register(Codespace, 202, "minimum output amount not met")
)

// Math errors
var (
	ErrDivisionByZero     = errorsmod.Register(Codespace, 500, "division by zero")
	ErrInvalidCalculation = errorsmod.Register(Codespace, 501, "invalid calculation")
	ErrPriceOutOfBounds   = errorsmod.Register(Codespace, 502, "price out of bounds")
)

// ErrorKind groups registered errors by how a caller should react to them.
type ErrorKind string

const (
	KindValidation           ErrorKind = "validation"
	KindInsufficientResource ErrorKind = "insufficient_resource"
	KindSlippage             ErrorKind = "slippage"
	KindArithmetic           ErrorKind = "arithmetic"
	KindState                ErrorKind = "state"
	KindUnknown              ErrorKind = "unknown"
)

var kinds = []struct {
	err  *errorsmod.Error
	kind ErrorKind
}{
	{ErrInvalidInputAmount, KindValidation},
	{ErrInvalidFeeTier, KindValidation},
	{ErrInvalidRiskProfile, KindValidation},
	{ErrInvalidStrategyType, KindValidation},
	{ErrInvalidPriceRange, KindValidation},
	{ErrInvalidAccount, KindValidation},
	{ErrInsufficientLiquidity, KindInsufficientResource},
	{ErrSlippageExceeded, KindSlippage},
	{ErrMinimumOutputNotMet, KindSlippage},
	{ErrPriceImpactTooHigh, KindSlippage},
	{ErrOverflow, KindArithmetic},
	{ErrUnderflow, KindArithmetic},
	{ErrDivisionByZero, KindArithmetic},
	{ErrInvalidCalculation, KindArithmetic},
	{ErrPriceOutOfBounds, KindArithmetic},
	{ErrUnauthorized, KindState},
	{ErrAccountAlreadyInitialized, KindState},
	{ErrAccountNotFound, KindState},
	{ErrPositionNotFound, KindState},
	{ErrRebalanceNotRequired, KindState},
}

// Kind classifies err against the registered errors. Wrapped errors are unwrapped.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// Code returns the registered ABCI code of err, or 0 when err is not one of ours.
func Code(err error) uint32 {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.ABCICode()
		}
	}
	return 0
}
