package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// User is a registered account. The JSON names follow the users file schema.
type User struct {
	Username     string `json:"user"`
	PasswordHash string `json:"pass"`
	Photo        string `json:"foto"`
}

// Product is a catalog entry.
type Product struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"nombre"`
	Price       int64  `json:"precio"`
	Image       string `json:"imagen"`
	Stock       int    `json:"stock"`
	Description string `json:"descripcion,omitempty"`
}

// UnmarshalJSON accepts numeric fields written as floats or strings by older revisions.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string  `json:"id"`
		Name        string  `json:"nombre"`
		Price       FlexInt `json:"precio"`
		Image       string  `json:"imagen"`
		Stock       FlexInt `json:"stock"`
		Description string  `json:"descripcion"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Product{
		ID:          raw.ID,
		Name:        raw.Name,
		Price:       int64(raw.Price),
		Image:       raw.Image,
		Stock:       int(raw.Stock),
		Description: raw.Description,
	}
	return nil
}

// PaymentMethod is stored using the labels of the purchase history file.
type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "Efectivo"
	PaymentVisaCard   PaymentMethod = "Tarjeta Visa"
	PaymentMastercard PaymentMethod = "Mastercard"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentVisaCard, PaymentMastercard}

// ParsePaymentMethod resolves a stored label or an English alias.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "efectivo", "cash":
		return PaymentCash, nil
	case "tarjeta visa", "visa", "visacard", "visa_card":
		return PaymentVisaCard, nil
	case "mastercard", "master_card":
		return PaymentMastercard, nil
	}
	return "", fmt.Errorf("unknown payment method: %q", s)
}

// Valid reports whether m is one of PaymentMethods.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// IsCard reports whether the method needs card details.
func (m PaymentMethod) IsCard() bool {
	return m == PaymentVisaCard || m == PaymentMastercard
}

// LineItem is one grouped product entry of a purchase.
type LineItem struct {
	Name      string `json:"nombre"`
	UnitPrice int64  `json:"precio_unitario"`
	Quantity  int    `json:"cantidad"`
}

func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name      string  `json:"nombre"`
		UnitPrice FlexInt `json:"precio_unitario"`
		Quantity  FlexInt `json:"cantidad"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*li = LineItem{Name: raw.Name, UnitPrice: int64(raw.UnitPrice), Quantity: int(raw.Quantity)}
	return nil
}

// PurchaseRecord is written once per successful checkout and never mutated.
type PurchaseRecord struct {
	TransactionID string        `json:"id_transaccion"`
	Username      string        `json:"usuario"`
	Timestamp     Timestamp     `json:"fecha"`
	PaymentMethod PaymentMethod `json:"metodo_pago"`
	TotalPaid     int64         `json:"total_pagado"`
	Items         []LineItem    `json:"productos"`
}

func (r *PurchaseRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		TransactionID json.RawMessage `json:"id_transaccion"`
		Username      string          `json:"usuario"`
		Timestamp     *Timestamp      `json:"fecha"`
		PaymentMethod PaymentMethod   `json:"metodo_pago"`
		TotalPaid     *FlexInt        `json:"total_pagado"`
		Items         []LineItem      `json:"productos"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.TotalPaid == nil {
		return fmt.Errorf("purchase record without total_pagado")
	}
	if raw.Timestamp == nil || raw.Timestamp.IsZero() {
		return fmt.Errorf("purchase record without fecha")
	}

	*r = PurchaseRecord{
		TransactionID: rawString(raw.TransactionID),
		Username:      raw.Username,
		Timestamp:     *raw.Timestamp,
		PaymentMethod: raw.PaymentMethod,
		TotalPaid:     int64(*raw.TotalPaid),
		Items:         raw.Items,
	}
	return nil
}

// TransactionIDLayout is the time layout of transaction ids; six microsecond digits are appended.
const TransactionIDLayout = "20060102150405"

// NewTransactionID derives a transaction id from t with microsecond resolution.
func NewTransactionID(t time.Time) string {
	return fmt.Sprintf("%s%06d", t.Format(TransactionIDLayout), t.Nanosecond()/int(time.Microsecond))
}

// rawString accepts ids written either as JSON strings or as bare numbers.
func rawString(msg json.RawMessage) string {
	if len(msg) == 0 || string(msg) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(msg))
}
