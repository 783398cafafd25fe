package shop

import "errors"

// Kind groups errors by how the caller is expected to recover.
type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindIO         Kind = "io"
	KindDecode     Kind = "decode"
	KindUnknown    Kind = "unknown"
)

// Session / authentication
var (
	ErrEmptyField         = errors.New("required field is empty")
	ErrWeakPassword       = errors.New("password is too short")
	ErrUserExists         = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrNotLoggedIn        = errors.New("no active session")
)

// Catalog
var (
	ErrDuplicateName   = errors.New("a product with this name already exists")
	ErrInvalidValue    = errors.New("invalid product value")
	ErrProductNotFound = errors.New("product not found")
	ErrImageNotFound   = errors.New("image not found")
)

// Cart
var (
	ErrOutOfStock = errors.New("product is out of stock")
	ErrNotInCart  = errors.New("product is not in the cart")
	ErrEmptyCart  = errors.New("cart is empty")
)

// Checkout
var (
	ErrInvalidTransition  = errors.New("checkout step not allowed in current state")
	ErrUnknownMethod      = errors.New("unknown payment method")
	ErrCardDetailsMissing = errors.New("card number, expiry and cvv are required")
	ErrCardNumber         = errors.New("card number must be 13 to 19 digits")
	ErrCardExpiry         = errors.New("expiry must use the MM/AA format")
	ErrCardCVV            = errors.New("cvv must be 3 or 4 digits")
)

// Persistence
var (
	ErrIO     = errors.New("storage error")
	ErrDecode = errors.New("stored data is corrupt")
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrEmptyField, KindValidation},
	{ErrWeakPassword, KindValidation},
	{ErrInvalidValue, KindValidation},
	{ErrEmptyCart, KindValidation},
	{ErrUnknownMethod, KindValidation},
	{ErrCardDetailsMissing, KindValidation},
	{ErrCardNumber, KindValidation},
	{ErrCardExpiry, KindValidation},
	{ErrCardCVV, KindValidation},
	{ErrInvalidTransition, KindConflict},
	{ErrUserExists, KindConflict},
	{ErrDuplicateName, KindConflict},
	{ErrOutOfStock, KindConflict},
	{ErrInvalidCredentials, KindAuth},
	{ErrNotLoggedIn, KindAuth},
	{ErrProductNotFound, KindNotFound},
	{ErrImageNotFound, KindNotFound},
	{ErrNotInCart, KindNotFound},
	{ErrIO, KindIO},
	{ErrDecode, KindDecode},
}

// KindOf classifies err by the first sentinel it wraps.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}
