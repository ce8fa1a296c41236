package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Param is a single raw JSON-RPC request parameter, it's decoded lazily by
// the method handler that knows what to expect from it.
type Param struct {
	json.RawMessage
}

var (
	errMissingParameter = errors.New("parameter is missing")
	errNullParameter    = errors.New("parameter is null")
	errNotAString       = errors.New("not a string")
	errNotAnInt         = errors.New("not an integer")
	errNotAnArray       = errors.New("not an array")
)

// Params is the list of positional request parameters.
type Params []Param

// Value returns the parameter at the given position or nil if there are not
// that many of them, getters treat nil as a missing parameter.
func (p Params) Value(i int) *Param {
	if i < 0 || i >= len(p) {
		return nil
	}
	return &p[i]
}

func (p Param) String() string {
	return string(p.RawMessage)
}

// IsNull returns whether the parameter represents JSON nil value.
func (p *Param) IsNull() bool {
	return bytes.Equal(bytes.TrimSpace(p.RawMessage), []byte("null"))
}

func (p *Param) check() error {
	if p == nil {
		return errMissingParameter
	}
	if p.IsNull() {
		return errNullParameter
	}
	return nil
}

// GetString decodes the parameter as a JSON string.
func (p *Param) GetString() (string, error) {
	if err := p.check(); err != nil {
		return "", err
	}
	var str string
	if err := json.Unmarshal(p.RawMessage, &str); err != nil {
		return "", errNotAString
	}
	return str, nil
}

// GetInt decodes the parameter as an integer, a JSON number or a string
// holding a decimal one.
func (p *Param) GetInt() (int, error) {
	if err := p.check(); err != nil {
		return 0, err
	}
	var n json.Number
	if err := json.Unmarshal(p.RawMessage, &n); err != nil {
		return 0, errNotAnInt
	}
	i, err := strconv.ParseInt(n.String(), 10, strconv.IntSize)
	if err != nil {
		return 0, errNotAnInt
	}
	return int(i), nil
}

// GetArray splits JSON array parameter into its elements.
func (p *Param) GetArray() ([]Param, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	var a []Param
	if err := json.Unmarshal(p.RawMessage, &a); err != nil {
		return nil, errNotAnArray
	}
	return a, nil
}

// GetStrings returns the parameter as a list of strings, it must be an array
// of JSON strings.
func (p *Param) GetStrings() ([]string, error) {
	arr, err := p.GetArray()
	if err != nil {
		return nil, err
	}
	res := make([]string, len(arr))
	for i := range arr {
		res[i], err = arr[i].GetString()
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return res, nil
}

// GetObject unmarshals the parameter into the given value, unknown fields are
// not allowed.
func (p *Param) GetObject(v any) error {
	if err := p.check(); err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(p.RawMessage))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
