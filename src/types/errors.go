package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ERR_NOT_FOUND                    ErrorKind = "NotFound"
	ERR_UNAUTHORIZED                 ErrorKind = "Unauthorized"
	ERR_INVALID_STATE                ErrorKind = "InvalidState"
	ERR_INVALID_OR_EXPIRED_COUPON    ErrorKind = "InvalidOrExpiredCoupon"
	ERR_INVALID_OR_EXPIRED_VOUCHER   ErrorKind = "InvalidOrExpiredVoucher"
	ERR_INSUFFICIENT_POINTS          ErrorKind = "InsufficientPoints"
	ERR_INSUFFICIENT_SEATS           ErrorKind = "InsufficientSeats"
	ERR_INVALID_DISCOUNT_COMBINATION ErrorKind = "InvalidDiscountCombination"
	ERR_TRANSACTION_EXPIRED          ErrorKind = "TransactionExpired"
	ERR_VALIDATION                   ErrorKind = "ValidationError"
	ERR_INTERNAL                     ErrorKind = "Internal"
)

// DomainError carries a stable kind alongside a readable message.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Err.Error())
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, format string, args ...any) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func WrapError(kind ErrorKind, err error, format string, args ...any) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns ERR_INTERNAL for errors that carry no kind.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ERR_INTERNAL
}

func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
