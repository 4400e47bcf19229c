package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	// DefaultCategoryName is the fallback category every transaction gets
	// when none is chosen. It always exists in the store.
	DefaultCategoryName = "Uncategorized"
	DefaultCategoryIcon = "📁"
)

type (
	TransactionType string

	Money struct {
		Cents int64
	}

	Transaction struct {
		ID           int64
		Amount       Money
		Type         TransactionType
		Description  string
		CategoryName string
		ImagePath    string // opaque attachment locator, empty means none
		Timestamp    int64  // milliseconds since epoch, set at insert
	}

	Category struct {
		ID   int64
		Name string
		Icon string
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrUnknownType        = errors.New("unknown transaction type")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyCategoryName  = errors.New("empty category name")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrNameTooLong        = errors.New("category name too long (max 100 characters)")
)

// IsConstraintViolation reports whether err is a data-model constraint
// violation, as opposed to a storage fault.
func IsConstraintViolation(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownType) ||
		errors.Is(err, ErrEmptyDescription) ||
		errors.Is(err, ErrEmptyCategoryName) ||
		errors.Is(err, ErrDescriptionTooLong) ||
		errors.Is(err, ErrNameTooLong)
}

func (tt TransactionType) Validate() error {
	switch tt {
	case Income, Expense:
		return nil
	default:
		return ErrUnknownType
	}
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Type.Validate(); err != nil {
		return err
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyCategoryName
	}
	if len(c.Name) > 100 {
		return ErrNameTooLong
	}
	return nil
}

// Signed returns the transaction's contribution to the balance:
// positive for income, negative for expense.
func (t Transaction) Signed() Money {
	if t.Type == Expense {
		return Money{Cents: -t.Amount.Cents}
	}
	return Money{Cents: t.Amount.Cents}
}

// Time returns the creation instant of the transaction.
func (t Transaction) Time() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// Balance folds the signed amounts of the given transactions.
// The stored balance aggregate is defined as exactly this fold.
func Balance(ts []Transaction) Money {
	var cents int64
	for _, t := range ts {
		cents += t.Signed().Cents
	}
	return Money{Cents: cents}
}

// FilterByType returns the transactions matching tt, preserving order.
// An empty type returns the input unchanged.
func FilterByType(ts []Transaction, tt TransactionType) []Transaction {
	if tt == "" {
		return ts
	}
	out := make([]Transaction, 0, len(ts))
	for _, t := range ts {
		if t.Type == tt {
			out = append(out, t)
		}
	}
	return out
}
