package shop

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"storefront/internal/models"
)

// CheckoutState is a step of the payment flow.
type CheckoutState string

const (
	StateIdle           CheckoutState = "idle"
	StateMethodSelected CheckoutState = "method_selected"
	StateDetailsEntered CheckoutState = "details_entered"
	StateConfirmed      CheckoutState = "confirmed"
)

// CardDetails are the fields entered for card payments. They are never persisted.
type CardDetails struct {
	Number string `json:"card_number"`
	Expiry string `json:"expiry"`
	CVV    string `json:"cvv"`
}

// ValidateCard applies the card rules in order and reports the first violated one.
func ValidateCard(card CardDetails) error {
	number := strings.TrimSpace(card.Number)
	expiry := strings.TrimSpace(card.Expiry)
	cvv := strings.TrimSpace(card.CVV)

	if number == "" || expiry == "" || cvv == "" {
		return ErrCardDetailsMissing
	}
	if n := utf8.RuneCountInString(number); !isDigits(number) || n < 13 || n > 19 {
		return ErrCardNumber
	}
	if utf8.RuneCountInString(expiry) != 5 || strings.Count(expiry, "/") != 1 {
		return ErrCardExpiry
	}
	for _, part := range strings.Split(expiry, "/") {
		if !isDigits(part) {
			return ErrCardExpiry
		}
	}
	if n := utf8.RuneCountInString(cvv); !isDigits(cvv) || n < 3 || n > 4 {
		return ErrCardCVV
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Checkout is the payment state machine:
// Idle -> MethodSelected -> (card methods) DetailsEntered -> Confirmed -> Idle.
type Checkout struct {
	state  CheckoutState
	method models.PaymentMethod
	card   CardDetails
}

// NewCheckout returns a flow in the Idle state.
func NewCheckout() *Checkout {
	return &Checkout{state: StateIdle}
}

// State returns the current step.
func (co *Checkout) State() CheckoutState {
	return co.state
}

// Method returns the selected payment method, if any.
func (co *Checkout) Method() models.PaymentMethod {
	return co.method
}

// SelectMethod picks a payment method. Choosing again discards entered card details.
func (co *Checkout) SelectMethod(m models.PaymentMethod) error {
	if !m.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, m)
	}
	co.method = m
	co.card = CardDetails{}
	co.state = StateMethodSelected
	return nil
}

// EnterDetails records card fields. Validation happens on Confirm.
func (co *Checkout) EnterDetails(card CardDetails) error {
	if co.state != StateMethodSelected && co.state != StateDetailsEntered {
		return fmt.Errorf("%w: %s", ErrInvalidTransition, co.state)
	}
	if !co.method.IsCard() {
		return fmt.Errorf("%w: %s takes no card details", ErrInvalidTransition, co.method)
	}
	co.card = card
	co.state = StateDetailsEntered
	return nil
}

// Validate checks that the flow can be confirmed. Cash skips every card rule.
func (co *Checkout) Validate() error {
	switch co.state {
	case StateMethodSelected, StateDetailsEntered:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidTransition, co.state)
	}
	if !co.method.IsCard() {
		return nil
	}
	if co.state == StateMethodSelected {
		return ErrCardDetailsMissing
	}
	return ValidateCard(co.card)
}

// Confirm validates the flow, builds the purchase record from the cart and hands it to commit.
// Only when commit succeeds is the cart cleared and the flow returned to Idle; any failure
// leaves cart, catalog and flow state as they were.
func (co *Checkout) Confirm(
	cart *Cart,
	cat *Catalog,
	username string,
	ids *TransactionIDs,
	now time.Time,
	commit func(models.PurchaseRecord) error,
) (models.PurchaseRecord, error) {
	if err := co.Validate(); err != nil {
		return models.PurchaseRecord{}, err
	}
	if cart.Len() == 0 {
		return models.PurchaseRecord{}, ErrEmptyCart
	}

	id, stamp := ids.Peek(now)
	record := models.PurchaseRecord{
		TransactionID: id,
		Username:      username,
		Timestamp:     models.Timestamp{Time: stamp.Truncate(time.Second)},
		PaymentMethod: co.method,
		TotalPaid:     cart.Total(cat),
		Items:         GroupLines(cart, cat),
	}

	if err := commit(record); err != nil {
		return models.PurchaseRecord{}, err
	}

	ids.Commit(stamp)
	co.state = StateConfirmed
	cart.Clear()
	co.Reset()
	return record, nil
}

// Reset abandons the flow.
func (co *Checkout) Reset() {
	co.state = StateIdle
	co.method = ""
	co.card = CardDetails{}
}

// GroupLines groups cart units by product name, summing quantities.
func GroupLines(cart *Cart, cat *Catalog) []models.LineItem {
	summary := cart.Summary(cat)
	items := make([]models.LineItem, 0, len(summary.Lines))
	index := make(map[string]int)
	for _, line := range summary.Lines {
		if i, ok := index[line.Name]; ok {
			items[i].Quantity += line.Quantity
			continue
		}
		index[line.Name] = len(items)
		items = append(items, models.LineItem{Name: line.Name, UnitPrice: line.UnitPrice, Quantity: line.Quantity})
	}
	return items
}

// TransactionIDs hands out strictly increasing time-derived transaction ids.
type TransactionIDs struct {
	last time.Time
}

// Peek returns the id for now, bumped past the last committed one if needed.
func (t *TransactionIDs) Peek(now time.Time) (string, time.Time) {
	stamp := now.Truncate(time.Microsecond)
	if !stamp.After(t.last) {
		stamp = t.last.Add(time.Microsecond)
	}
	return models.NewTransactionID(stamp), stamp
}

// Commit records stamp as used.
func (t *TransactionIDs) Commit(stamp time.Time) {
	if stamp.After(t.last) {
		t.last = stamp
	}
}
