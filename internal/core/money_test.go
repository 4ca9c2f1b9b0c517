package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.5", true},
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got.String(), err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "₱0.00"},
		{"5", "₱5.00"},
		{"12.5", "₱12.50"},
		{"1234.567", "₱1,234.57"},
		{"1000000", "₱1,000,000.00"},
		{"999.995", "₱1,000.00"},
		{"-50", "-₱50.00"},
		{"-1234.5", "-₱1,234.50"},
		{"10000000000000000000", "₱10,000,000,000,000,000,000.00"},
		{"-123456789012345678901.239", "-₱123,456,789,012,345,678,901.24"},
	}
	for _, tc := range cases {
		if got := FormatCurrency(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Errorf("FormatCurrency(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatCurrencyBeyondInt64(t *testing.T) {
	m, err := ParseMoney("10000000000000000000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sum := m.Decimal.Add(m.Decimal)
	if got, want := FormatCurrency(sum), "₱20,000,000,000,000,000,000.00"; got != want {
		t.Errorf("FormatCurrency(sum) = %q, want %q", got, want)
	}
}

func TestMoneyJSONIsBareNumber(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{MustMoney("1234.5")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":1234.5}` {
		t.Fatalf("unexpected json: %s", b)
	}

	var back struct {
		Amount Money `json:"amount"`
	}
	if err := json.Unmarshal([]byte(`{"amount":"7.25"}`), &back); err != nil {
		t.Fatalf("unmarshal quoted: %v", err)
	}
	if back.Amount.String() != "7.25" {
		t.Fatalf("got %s", back.Amount.String())
	}
}
