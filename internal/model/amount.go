package model

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// AmountBits is the width of the on-chain integers the monitor tracks.
const AmountBits = 128

var maxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), AmountBits), big.NewInt(1))

// Amount is an unsigned on-chain quantity in [0, 2^128-1].
// The zero value is 0. Arithmetic never wraps: results clamp to the bounds.
// An Amount is immutable; every operation returns a new value.
type Amount struct {
	v *big.Int
}

func NewAmount(v uint64) Amount {
	return Amount{v: new(big.Int).SetUint64(v)}
}

// MaxAmount returns the largest representable Amount.
func MaxAmount() Amount {
	return Amount{v: maxAmount}
}

// ParseAmount parses a base-10 unsigned integer. Signs, fractions and values
// beyond the 128-bit ceiling are rejected.
func ParseAmount(raw string) (Amount, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Amount{}, false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < '0' || raw[i] > '9' {
			return Amount{}, false
		}
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Cmp(maxAmount) > 0 {
		return Amount{}, false
	}
	return Amount{v: v}, true
}

// MustParseAmount is ParseAmount for literals known to be valid.
func MustParseAmount(raw string) Amount {
	a, ok := ParseAmount(raw)
	if !ok {
		panic(fmt.Sprintf("invalid amount %q", raw))
	}
	return a
}

func (a Amount) big() *big.Int {
	if a.v == nil {
		return new(big.Int)
	}
	return a.v
}

// BigInt returns a copy of the underlying value.
func (a Amount) BigInt() *big.Int {
	return new(big.Int).Set(a.big())
}

func (a Amount) IsZero() bool {
	return a.big().Sign() == 0
}

func (a Amount) IsMax() bool {
	return a.big().Cmp(maxAmount) == 0
}

func (a Amount) Cmp(b Amount) int {
	return a.big().Cmp(b.big())
}

func (a Amount) Equal(b Amount) bool { return a.Cmp(b) == 0 }
func (a Amount) Less(b Amount) bool  { return a.Cmp(b) < 0 }

func clamp(v *big.Int) Amount {
	if v.Sign() < 0 {
		return Amount{v: new(big.Int)}
	}
	if v.Cmp(maxAmount) > 0 {
		return Amount{v: maxAmount}
	}
	return Amount{v: v}
}

// SaturatingAdd returns a+b, clamped at MaxAmount.
func (a Amount) SaturatingAdd(b Amount) Amount {
	return clamp(new(big.Int).Add(a.big(), b.big()))
}

// SaturatingSub returns a-b, clamped at zero.
func (a Amount) SaturatingSub(b Amount) Amount {
	return clamp(new(big.Int).Sub(a.big(), b.big()))
}

// SaturatingMul returns a*b, clamped at MaxAmount.
func (a Amount) SaturatingMul(b Amount) Amount {
	return clamp(new(big.Int).Mul(a.big(), b.big()))
}

// MulUint64 is SaturatingMul with a small constant factor.
func (a Amount) MulUint64(n uint64) Amount {
	return a.SaturatingMul(NewAmount(n))
}

// Div returns floor(a/b). Division by zero yields MaxAmount, the convention
// used for ratios whose denominator is empty.
func (a Amount) Div(b Amount) Amount {
	if b.IsZero() {
		return MaxAmount()
	}
	return Amount{v: new(big.Int).Quo(a.big(), b.big())}
}

// DivUint64 returns floor(a/n).
func (a Amount) DivUint64(n uint64) Amount {
	return a.Div(NewAmount(n))
}

// ScaledCmp compares a*m with b*n exactly, without clamping either product.
func (a Amount) ScaledCmp(m uint64, b Amount, n uint64) int {
	left := new(big.Int).Mul(a.big(), new(big.Int).SetUint64(m))
	right := new(big.Int).Mul(b.big(), new(big.Int).SetUint64(n))
	return left.Cmp(right)
}

// AbsDiff returns |a-b| without underflow.
func (a Amount) AbsDiff(b Amount) Amount {
	if a.Cmp(b) >= 0 {
		return a.SaturatingSub(b)
	}
	return b.SaturatingSub(a)
}

func (a Amount) String() string {
	return a.big().String()
}

// MarshalJSON encodes the amount as a decimal string so that values beyond
// 2^53 survive JSON consumers.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = Amount{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	v, ok := ParseAmount(raw)
	if !ok {
		return fmt.Errorf("invalid amount %q", raw)
	}
	*a = v
	return nil
}
