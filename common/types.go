package common

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/cockroachdb/apd"
)

// NativeDecimals is the number of decimal places of the native asset.
// Balances are always kept in base units (1e-9 of a whole unit).
const NativeDecimals = 9

// Amount is a quantity of the native asset in base units.
//
// It is serialized to JSON as a decimal string so that values above 2^53
// survive javascript clients.
type Amount uint64

func (a Amount) String() string {
	return strconv.FormatUint(uint64(a), 10)
}

// Decimal renders the amount in whole native units, e.g. 1500000000 -> "1.500000000".
func (a Amount) Decimal() string {
	d := apd.NewWithBigInt(new(big.Int).SetUint64(uint64(a)), -NativeDecimals)
	return d.Text('f')
}

func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	v, err := strconv.ParseUint(string(text), 10, 64)
	if err != nil {
		return fmt.Errorf("malformed amount '%s': %w", text, err)
	}
	*a = Amount(v)
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Amount) UnmarshalJSON(text []byte) error {
	// Accept both "123" and 123.
	var s string
	if err := json.Unmarshal(text, &s); err != nil {
		s = string(text)
	}
	return a.UnmarshalText([]byte(s))
}

// Key used to set values in a web request context. API uses this to set
// values, handlers use this to retrieve values.
type ContextKey string

const (
	// RequestIDContextKey is used to set a request id for tracing
	// in a request context.
	RequestIDContextKey ContextKey = "request_id"
	// CallerContextKey is used to set the authenticated caller identity
	// in a request context.
	CallerContextKey ContextKey = "caller"
)
