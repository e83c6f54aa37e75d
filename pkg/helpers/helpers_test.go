package helpers

import (
	"math"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastResultToInteger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   [][]interface{}
		want    int64
		wantErr bool
	}{
		{name: "int64", input: [][]interface{}{{int64(150)}}, want: 150},
		{name: "int32 from count", input: [][]interface{}{{int32(7)}}, want: 7},
		{name: "int", input: [][]interface{}{{3}}, want: 3},
		{name: "int8", input: [][]interface{}{{int8(-4)}}, want: -4},
		{name: "uint32", input: [][]interface{}{{uint32(12)}}, want: 12},
		{name: "uint64", input: [][]interface{}{{uint64(99)}}, want: 99},
		{name: "uint64 overflow", input: [][]interface{}{{uint64(math.MaxUint64)}}, wantErr: true},
		{name: "numeric integer", input: [][]interface{}{{pgtype.Numeric{Int: big.NewInt(150), Valid: true}}}, want: 150},
		{name: "numeric with exponent", input: [][]interface{}{{pgtype.Numeric{Int: big.NewInt(15), Exp: 2, Valid: true}}}, want: 1500},
		{name: "numeric decimal is truncated", input: [][]interface{}{{pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}}}, want: 123},
		{name: "numeric negative decimal", input: [][]interface{}{{pgtype.Numeric{Int: big.NewInt(-275), Exp: -1, Valid: true}}}, want: -27},
		{name: "numeric null", input: [][]interface{}{{pgtype.Numeric{}}}, wantErr: true},
		{name: "numeric NaN", input: [][]interface{}{{pgtype.Numeric{NaN: true, Valid: true}}}, wantErr: true},
		{name: "numeric infinity", input: [][]interface{}{{pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}}}, wantErr: true},
		{name: "float64", input: [][]interface{}{{float64(2.9)}}, want: 2},
		{name: "bool true", input: [][]interface{}{{true}}, want: 1},
		{name: "bool false", input: [][]interface{}{{false}}, want: 0},
		{name: "numeric string", input: [][]interface{}{{"42"}}, want: 42},
		{name: "float string", input: [][]interface{}{{"42.7"}}, want: 42},
		{name: "bool string", input: [][]interface{}{{"true"}}, want: 1},
		{name: "garbage string", input: [][]interface{}{{"abc"}}, wantErr: true},
		{name: "nil value", input: [][]interface{}{{nil}}, wantErr: true},
		{name: "no rows", input: [][]interface{}{}, wantErr: true},
		{name: "multiple rows", input: [][]interface{}{{1}, {2}}, wantErr: true},
		{name: "multiple columns", input: [][]interface{}{{1, 2}}, wantErr: true},
		{name: "unsupported type", input: [][]interface{}{{[]byte("1")}}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := CastResultToInteger(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
