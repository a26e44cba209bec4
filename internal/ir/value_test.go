package ir

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRValueSealed(t *testing.T) {
	var _ IRValue = IRNull{}
	var _ IRValue = IRString("test")
	var _ IRValue = IRInt(42)
	var _ IRValue = IRFloat(1.5)
	var _ IRValue = IRBool(true)
	var _ IRValue = IRArray{IRString("a"), IRInt(1)}
	var _ IRValue = IRObject{"key": IRString("value")}
}

func TestIRObjectSortedKeys(t *testing.T) {
	obj := IRObject{
		"zebra":  IRString("z"),
		"apple":  IRString("a"),
		"banana": IRString("b"),
	}

	assert.Equal(t, []string{"apple", "banana", "zebra"}, obj.SortedKeys())
}

func TestIRObjectSortedKeysRFC8785Order(t *testing.T) {
	obj := IRObject{
		"a":  IRInt(1),
		"A":  IRInt(2),
		"aa": IRInt(3),
		"aA": IRInt(4),
		"Aa": IRInt(5),
		"AA": IRInt(6),
	}

	// 'A' = 65, 'a' = 97
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, obj.SortedKeys())
}

func TestIRObjectWithout(t *testing.T) {
	obj := IRObject{"request": IRObject{}, "response": IRObject{}, "fixture": IRString("f1")}

	out := obj.Without("request", "response")

	assert.Equal(t, IRObject{"fixture": IRString("f1")}, out)
	assert.Len(t, obj, 3, "original must not be modified")
}

func TestCloneIsDeep(t *testing.T) {
	orig := IRObject{
		"nested": IRObject{"list": IRArray{IRInt(1)}},
	}

	cp := CloneObject(orig)
	cp["nested"].(IRObject)["list"] = IRArray{IRInt(2)}

	assert.Equal(t, IRArray{IRInt(1)}, orig["nested"].(IRObject)["list"])
	assert.Nil(t, CloneObject(nil))
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(IRObject{"a": IRInt(1), "b": IRInt(2)}, IRObject{"b": IRInt(2), "a": IRInt(1)}))
	assert.False(t, Equal(IRInt(1), IRFloat(1)))
	assert.False(t, Equal(IRInt(1), IRString("1")))
	assert.True(t, Equal(IRNull{}, nil))
}

func TestMarshalIRValueJSON(t *testing.T) {
	obj := IRObject{
		"b":    IRFloat(2),
		"a":    IRArray{IRInt(1), IRNull{}, IRBool(false)},
		"html": IRString("<x>"),
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,null,false],"b":2.0,"html":"\u003cx\u003e"}`, string(data))
}

func TestFromNative(t *testing.T) {
	v, err := FromNative(map[string]any{
		"n":    nil,
		"i":    7,
		"u":    uint32(9),
		"f":    2.5,
		"s":    "x",
		"list": []any{true, int64(3)},
	})
	require.NoError(t, err)

	expected := IRObject{
		"n":    IRNull{},
		"i":    IRInt(7),
		"u":    IRInt(9),
		"f":    IRFloat(2.5),
		"s":    IRString("x"),
		"list": IRArray{IRBool(true), IRInt(3)},
	}
	assert.Equal(t, expected, v)
}

func TestFromNativeRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"nan", math.NaN()},
		{"inf", math.Inf(1)},
		{"uint64 overflow", uint64(math.MaxUint64)},
		{"struct", struct{}{}},
		{"nested", []any{map[string]any{"x": math.Inf(-1)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromNative(tt.input)
			require.Error(t, err)
		})
	}
}

func TestToNativeRoundTrip(t *testing.T) {
	obj := IRObject{
		"n":    IRNull{},
		"i":    IRInt(7),
		"f":    IRFloat(0.25),
		"list": IRArray{IRString("a"), IRBool(true)},
	}

	back, err := FromNative(ToNative(obj))
	require.NoError(t, err)
	assert.Equal(t, obj, back)
}

func TestUnmarshalIRValue(t *testing.T) {
	v, err := UnmarshalIRValue([]byte(`{"a":1,"b":1.0,"c":[null,"x"],"d":1e3}`))
	require.NoError(t, err)

	expected := IRObject{
		"a": IRInt(1),
		"b": IRFloat(1),
		"c": IRArray{IRNull{}, IRString("x")},
		"d": IRFloat(1000),
	}
	assert.Equal(t, expected, v)
}

func TestUnmarshalIRValueIntOverflow(t *testing.T) {
	_, err := UnmarshalIRValue([]byte(`99999999999999999999`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "int64")
}
