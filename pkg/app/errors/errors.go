// Package errors contains helper functions and types to work with errors
package errors

import (
	"errors"
	"net/http"
)

// Category defines error category
type Category int

const (
	// CategoryNoError is used when an operation completed without error.
	CategoryNoError Category = iota
	// CategoryInvalidSignature The request carries a signature that does not
	// authenticate the expected wallet.
	CategoryInvalidSignature
	// CategoryInvalidOwner The requesting wallet does not own the claim it is
	// trying to use, or another wallet already claimed the address.
	CategoryInvalidOwner
	// CategoryBlacklisted The source wallet is on the blacklist.
	CategoryBlacklisted
	// CategoryInsufficientBalance The user's deposited balance does not cover
	// the requested amount.
	CategoryInsufficientBalance
	// CategoryInsufficientHotWallet The custodial hot wallet cannot cover the
	// payout right now. Recoverable: the job goes back to the retry ladder.
	CategoryInsufficientHotWallet
	// CategoryAlreadyProcessed The idempotency key was seen before. Not a
	// failure: callers short-circuit and return the prior result.
	CategoryAlreadyProcessed
	// CategoryResourceLocked Lock acquisition exhausted its retry budget.
	CategoryResourceLocked
	// CategoryTransactionFailed A chain-level transaction reverted or timed
	// out. Terminal for the attempt and always surfaced.
	CategoryTransactionFailed
	// CategoryGeneralError The service failed in an unexpected way
	CategoryGeneralError
)

func (c Category) String() string {
	switch c {
	case CategoryInvalidSignature:
		return "CategoryInvalidSignature"
	case CategoryInvalidOwner:
		return "CategoryInvalidOwner"
	case CategoryBlacklisted:
		return "CategoryBlacklisted"
	case CategoryInsufficientBalance:
		return "CategoryInsufficientBalance"
	case CategoryInsufficientHotWallet:
		return "CategoryInsufficientHotWallet"
	case CategoryAlreadyProcessed:
		return "CategoryAlreadyProcessed"
	case CategoryResourceLocked:
		return "CategoryResourceLocked"
	case CategoryTransactionFailed:
		return "CategoryTransactionFailed"
	default:
		return "CategoryGeneralError"
	}
}

// ServiceError represents service specific type that
// is used all over the services.
type ServiceError struct {
	Category Category
	Message  string
	Err      error
}

// Error method to comply with error interface
func (err ServiceError) Error() string {
	if err.Err != nil {
		return err.Err.Error()
	}
	return err.Message
}

// Unwrap returns the underlying error
func (err ServiceError) Unwrap() error {
	return err.Err
}

// Is implements the custom condition to check an error is equal to a service error
func (err ServiceError) Is(target error) bool {
	return err.Message == target.Error()
}

// Is checks that provided error is a ServiceError with desired Category
func Is(err error, cat Category) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) && svcErr.Category == cat {
		return true
	}
	return false
}

// IsRecoverable reports whether the error is transient: the work item should
// go back to the queue's retry/delay ladder instead of failing terminally.
func IsRecoverable(err error) bool {
	var t *terminalError
	if errors.As(err, &t) {
		return false
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		return false
	}
	return svcErr.Category == CategoryInsufficientHotWallet ||
		svcErr.Category == CategoryResourceLocked
}

// InvalidSignatureError returns an error with category InvalidSignature
// the error message provided is returned to the user
// the error object provided is logged in logger
func InvalidSignatureError(err error, message string) error {
	if err == nil {
		err = errors.New("invalid signature: " + message)
	}
	return &ServiceError{
		Category: CategoryInvalidSignature,
		Message:  message,
		Err:      err,
	}
}

// InvalidOwnerError returns an error with category InvalidOwner
func InvalidOwnerError(err error, message string) error {
	if err == nil {
		err = errors.New("invalid owner: " + message)
	}
	return &ServiceError{
		Category: CategoryInvalidOwner,
		Message:  message,
		Err:      err,
	}
}

// BlacklistedError returns an error with category Blacklisted
func BlacklistedError(err error, message string) error {
	if err == nil {
		err = errors.New("blacklisted: " + message)
	}
	return &ServiceError{
		Category: CategoryBlacklisted,
		Message:  message,
		Err:      err,
	}
}

// InsufficientBalanceError returns an error with category InsufficientBalance
func InsufficientBalanceError(err error, message string) error {
	if err == nil {
		err = errors.New("insufficient balance: " + message)
	}
	return &ServiceError{
		Category: CategoryInsufficientBalance,
		Message:  message,
		Err:      err,
	}
}

// InsufficientHotWalletError returns a recoverable error with category
// InsufficientHotWallet
func InsufficientHotWalletError(err error, message string) error {
	if err == nil {
		err = errors.New("insufficient hot wallet balance: " + message)
	}
	return &ServiceError{
		Category: CategoryInsufficientHotWallet,
		Message:  message,
		Err:      err,
	}
}

// AlreadyProcessedError returns an error with category AlreadyProcessed
func AlreadyProcessedError(err error, message string) error {
	if err == nil {
		err = errors.New("already processed: " + message)
	}
	return &ServiceError{
		Category: CategoryAlreadyProcessed,
		Message:  message,
		Err:      err,
	}
}

// ResourceLockedError returns a recoverable error with category ResourceLocked
func ResourceLockedError(err error, message string) error {
	if err == nil {
		err = errors.New("resource locked: " + message)
	}
	return &ServiceError{
		Category: CategoryResourceLocked,
		Message:  message,
		Err:      err,
	}
}

// TransactionFailedError returns an error with category TransactionFailed
func TransactionFailedError(err error, message string) error {
	if err == nil {
		err = errors.New("transaction failed: " + message)
	}
	return &ServiceError{
		Category: CategoryTransactionFailed,
		Message:  message,
		Err:      err,
	}
}

// GeneralError returns a general service error
func GeneralError(err error, message string) error {
	if err == nil {
		err = errors.New(message)
	}
	return &ServiceError{
		Category: CategoryGeneralError,
		Message:  message,
		Err:      err,
	}
}

// terminalError strips the recoverable nature of the wrapped error while
// keeping its category visible through Unwrap.
type terminalError struct {
	err error
}

func (t *terminalError) Error() string { return t.err.Error() }

func (t *terminalError) Unwrap() error { return t.err }

// Terminal marks an error as final: IsRecoverable reports false even for
// categories that normally go back to the retry ladder. Used when a
// recoverable condition has exhausted its own retry budget.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// StatusCode returns the HTTP status code for the error category
func (err ServiceError) StatusCode() int {
	switch err.Category {
	case CategoryInvalidSignature:
		return http.StatusUnauthorized
	case CategoryInvalidOwner, CategoryBlacklisted:
		return http.StatusForbidden
	case CategoryInsufficientBalance:
		return http.StatusPaymentRequired
	case CategoryInsufficientHotWallet:
		return http.StatusServiceUnavailable
	case CategoryAlreadyProcessed:
		return http.StatusConflict
	case CategoryResourceLocked:
		return http.StatusLocked
	case CategoryTransactionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
