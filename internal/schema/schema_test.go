package schema

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/intercase/internal/ir"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestCaseShapes(t *testing.T) {
	v := newValidator(t)

	tests := []struct {
		name    string
		entry   ir.IRValue
		wantErr string
	}{
		{
			name: "minimal",
			entry: ir.IRObject{
				"request":  ir.IRObject{},
				"response": ir.IRObject{},
			},
		},
		{
			name: "extra authored keys",
			entry: ir.IRObject{
				"description": ir.IRString("lists users"),
				"request":     ir.IRObject{"method": ir.IRString("GET"), "n": ir.IRFloat(1.5)},
				"response":    ir.IRObject{"status": ir.IRInt(200), "body": ir.IRArray{ir.IRNull{}}},
			},
		},
		{
			name:    "missing response",
			entry:   ir.IRObject{"request": ir.IRObject{}},
			wantErr: "response",
		},
		{
			name:    "missing request",
			entry:   ir.IRObject{"response": ir.IRObject{}},
			wantErr: "request",
		},
		{
			name: "request not an object",
			entry: ir.IRObject{
				"request":  ir.IRString("GET /"),
				"response": ir.IRObject{},
			},
			wantErr: "request",
		},
		{
			name:    "entry not an object",
			entry:   ir.IRString("hello"),
			wantErr: "case",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Case(tt.entry)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var se *ShapeError
			require.True(t, errors.As(err, &se))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestUpdateEntryResponseOptional(t *testing.T) {
	v := newValidator(t)

	require.NoError(t, v.UpdateEntry(ir.IRObject{
		"request":   ir.IRObject{"method": ir.IRString("GET")},
		"fixtureId": ir.IRString("f1"),
	}))
	require.NoError(t, v.UpdateEntry(ir.IRObject{
		"request":  ir.IRObject{},
		"response": ir.IRObject{},
	}))
	require.Error(t, v.UpdateEntry(ir.IRObject{
		"request":  ir.IRObject{},
		"response": ir.IRInt(3),
	}))
	require.Error(t, v.UpdateEntry(ir.IRObject{"fixtureId": ir.IRString("f1")}))
}

func TestStoreShape(t *testing.T) {
	v := newValidator(t)
	id := strings.Repeat("a", 64)

	require.NoError(t, v.Store(ir.IRObject{}))
	require.NoError(t, v.Store(ir.IRObject{id: ir.IRObject{"fixtureId": ir.IRString("f1")}}))

	err := v.Store(ir.IRObject{"not-an-id": ir.IRObject{}})
	require.Error(t, err)

	err = v.Store(ir.IRObject{id: ir.IRString("scalar")})
	require.Error(t, err)
}
