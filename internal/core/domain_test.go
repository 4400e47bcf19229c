package core

import (
	"errors"
	"strings"
	"testing"
)

func TestTransactionTypeValidate(t *testing.T) {
	if err := Income.Validate(); err != nil {
		t.Fatalf("income: %v", err)
	}
	if err := Expense.Validate(); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if err := TransactionType("transfer").Validate(); !errors.Is(err, ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %v", err)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != nil {
		t.Fatalf("zero is a valid magnitude, got %v", err)
	}
	if err := (Money{Cents: -1}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount:      Money{Cents: 5000},
		Type:        Income,
		Description: "Paycheck",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"unknown type", Transaction{Amount: Money{Cents: 1}, Type: "loan", Description: "x"}, ErrUnknownType},
		{"negative amount", Transaction{Amount: Money{Cents: -1}, Type: Expense, Description: "x"}, ErrInvalidAmount},
		{"empty description", Transaction{Amount: Money{Cents: 1}, Type: Expense, Description: "  "}, ErrEmptyDescription},
		{"oversized description", Transaction{Amount: Money{Cents: 1}, Type: Expense, Description: strings.Repeat("x", 201)}, ErrDescriptionTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tx.Validate()
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			if !IsConstraintViolation(err) {
				t.Fatalf("%v should classify as constraint violation", err)
			}
		})
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Food", Icon: "🍕"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Category{Name: " "}).Validate(); !errors.Is(err, ErrEmptyCategoryName) {
		t.Fatalf("expected ErrEmptyCategoryName, got %v", err)
	}
	long := Category{Name: strings.Repeat("n", 101)}
	if err := long.Validate(); !errors.Is(err, ErrNameTooLong) {
		t.Fatalf("expected ErrNameTooLong, got %v", err)
	}
	if !IsConstraintViolation(long.Validate()) {
		t.Fatal("oversized name should classify as constraint violation")
	}
}

func TestBalanceFold(t *testing.T) {
	ts := []Transaction{
		{Amount: Money{Cents: 10000}, Type: Income},
		{Amount: Money{Cents: 4000}, Type: Expense},
	}
	if got := Balance(ts); got.Cents != 6000 {
		t.Fatalf("balance = %d, want 6000", got.Cents)
	}
	if got := Balance(nil); got.Cents != 0 {
		t.Fatalf("empty balance = %d, want 0", got.Cents)
	}
}

func TestFilterByType(t *testing.T) {
	ts := []Transaction{
		{ID: 1, Type: Income},
		{ID: 2, Type: Expense},
		{ID: 3, Type: Expense},
	}
	exp := FilterByType(ts, Expense)
	if len(exp) != 2 || exp[0].ID != 2 || exp[1].ID != 3 {
		t.Fatalf("unexpected filter result: %+v", exp)
	}
	all := FilterByType(ts, "")
	if len(all) != 3 {
		t.Fatalf("empty filter should return all, got %d", len(all))
	}
}
