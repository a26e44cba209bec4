package journal

import (
	"database/sql"
	"fmt"

	"github.com/roach88/intercase/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT.
func marshalObject(obj ir.IRObject) (string, error) {
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// marshalNullableObject stores nil as SQL NULL.
func marshalNullableObject(obj ir.IRObject) (sql.NullString, error) {
	if obj == nil {
		return sql.NullString{}, nil
	}
	s, err := marshalObject(obj)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: s, Valid: true}, nil
}

// unmarshalObject parses canonical JSON TEXT into an IRObject.
// Integers stay integers; floats keep their decimal point.
func unmarshalObject(data string) (ir.IRObject, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("unmarshal object: expected object, got %T", v)
	}
	return obj, nil
}

func unmarshalNullableObject(data sql.NullString) (ir.IRObject, error) {
	if !data.Valid {
		return nil, nil
	}
	return unmarshalObject(data.String)
}
