package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// Fixed is a two-decimal fixed point number held as hundredths.
// It maps to numeric(12,2) columns and to JSON numbers.
type Fixed int64

// FixedFromFloat rounds f to two decimals.
func FixedFromFloat(f float64) Fixed { return Fixed(math.Round(f * 100)) }

// Float returns the value as float64.
func (f Fixed) Float() float64 { return float64(f) / 100 }

// Mul multiplies two fixed values rounding half away from zero.
func (f Fixed) Mul(o Fixed) Fixed {
	p := new(big.Int).Mul(big.NewInt(int64(f)), big.NewInt(int64(o)))
	q, r := new(big.Int).QuoRem(p, big.NewInt(100), new(big.Int))
	if new(big.Int).Abs(r).Cmp(big.NewInt(50)) >= 0 {
		if p.Sign() < 0 {
			q.Sub(q, big.NewInt(1))
		} else {
			q.Add(q, big.NewInt(1))
		}
	}
	return Fixed(q.Int64())
}

func (f Fixed) String() string {
	sign := ""
	v := int64(f)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON renders the value as a JSON number with two decimals.
func (f Fixed) MarshalJSON() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalJSON accepts a JSON number or a numeric string.
func (f *Fixed) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("fixed: %w", err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("fixed: not a finite number")
	}
	*f = FixedFromFloat(v)
	return nil
}

// ScanNumeric implements pgtype.NumericScanner.
func (f *Fixed) ScanNumeric(n pgtype.Numeric) error {
	if !n.Valid {
		*f = 0
		return nil
	}
	if n.NaN || n.InfinityModifier != pgtype.Finite {
		return errors.New("fixed: cannot scan non-finite numeric")
	}
	v := new(big.Int).Set(n.Int)
	shift := int64(n.Exp) + 2
	switch {
	case shift > 0:
		v.Mul(v, new(big.Int).Exp(big.NewInt(10), big.NewInt(shift), nil))
	case shift < 0:
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(-shift), nil)
		q, r := new(big.Int).QuoRem(v, div, new(big.Int))
		if new(big.Int).Mul(new(big.Int).Abs(r), big.NewInt(2)).Cmp(div) >= 0 {
			if v.Sign() < 0 {
				q.Sub(q, big.NewInt(1))
			} else {
				q.Add(q, big.NewInt(1))
			}
		}
		v = q
	}
	if !v.IsInt64() {
		return errors.New("fixed: numeric out of range")
	}
	*f = Fixed(v.Int64())
	return nil
}

// NumericValue implements pgtype.NumericValuer.
func (f Fixed) NumericValue() (pgtype.Numeric, error) {
	return pgtype.Numeric{Int: big.NewInt(int64(f)), Exp: -2, Valid: true}, nil
}
