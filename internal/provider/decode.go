package provider

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/roach88/intercase/internal/ir"
)

// DecodeExtra decodes extra fields into out, a pointer to a struct or map.
// Struct fields are matched by their yaml tag, falling back to the field
// name. Keys without a matching field are ignored.
func DecodeExtra(extra ir.IRObject, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "yaml",
	})
	if err != nil {
		return fmt.Errorf("decode extra: %w", err)
	}
	if extra == nil {
		extra = ir.IRObject{}
	}
	if err := decoder.Decode(ir.ToNative(extra)); err != nil {
		return fmt.Errorf("decode extra: %w", err)
	}
	return nil
}
