package chartlog

import (
	"encoding/json"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a given currency, used for
// profit and loss amounts.
type Money struct {
	value decimal.Decimal // as major unit value
	cur   string
}

// M returns a Money from a major-unit value and an ISO 4217 currency code.
func M[T float64 | int | int64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

func newDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case decimal.Decimal:
		return x
	default:
		panic(fmt.Sprintf("unsupported decimal source %T", v))
	}
}

// ParseMoney parses a decimal string like "-12.50" into a Money.
func ParseMoney(s, currency string) (Money, error) {
	value, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{value: value, cur: currency}, nil
}

// currency returns the full currency definition, never nil.
func (m Money) currency() money.Currency {
	return *money.New(0, m.cur).Currency()
}

// String formats the amount with its currency symbol and fraction rules.
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.cur }

// Amount returns the major-unit decimal value.
func (m Money) Amount() decimal.Decimal { return m.value }

func (m Money) IsZero() bool       { return m.value.IsZero() }
func (m Money) IsPositive() bool   { return m.value.IsPositive() }
func (m Money) IsNegative() bool   { return m.value.IsNegative() }
func (m Money) Neg() Money         { return Money{value: m.value.Neg(), cur: m.cur} }
func (m Money) Equal(n Money) bool { return m.value.Equal(n.value) && m.cur == n.cur }

// Add sums two amounts. The empty currency is weak: it takes the
// other operand's currency.
func (m Money) Add(n Money) Money {
	cur := m.cur
	if cur == "" {
		cur = n.cur
	}
	return Money{value: m.value.Add(n.value), cur: cur}
}

// jmoney is the persisted shape of a Money.
type jmoney struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// MarshalJSON encodes the money as {"amount":"12.5","currency":"USD"}.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(jmoney{Amount: m.value, Currency: m.cur})
}

// UnmarshalJSON decodes the persisted money shape.
func (m *Money) UnmarshalJSON(data []byte) error {
	var j jmoney
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	m.value = j.Amount
	m.cur = j.Currency
	return nil
}

var _ json.Marshaler = Money{}
var _ json.Unmarshaler = (*Money)(nil)
