package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// StringList is an ordered list of strings persisted as JSON array text.
// A nil list is written and marshalled as "[]", never as null.
type StringList []string

// NewStringList copies values, turning nil into an empty list.
func NewStringList(values []string) StringList {
	list := make(StringList, len(values))
	copy(list, values)
	return list
}

func (l StringList) Value() (driver.Value, error) {
	payload, err := json.Marshal(l.orEmpty())
	if err != nil {
		return nil, fmt.Errorf("encode string list failed: %w", err)
	}
	return string(payload), nil
}

func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		return errors.New("decode string list failed: column is NULL")
	default:
		return fmt.Errorf("decode string list failed: unsupported type %T", value)
	}

	var decoded []string
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("decode string list failed: %w", err)
	}
	if decoded == nil {
		return fmt.Errorf("decode string list failed: %q is not a JSON array", raw)
	}
	*l = NewStringList(decoded)
	return nil
}

func (l StringList) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.orEmpty())
}

func (l StringList) orEmpty() []string {
	if l == nil {
		return []string{}
	}
	return []string(l)
}
