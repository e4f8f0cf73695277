package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseTableRef(t *testing.T) {
	tests := []struct {
		input string
		want  TableRef
	}{
		{"users", TableRef{Name: "users"}},
		{"app.users", TableRef{Schema: "app", Name: "users"}},
		{"db.dbo.users", TableRef{Catalog: "db", Schema: "dbo", Name: "users"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			ref := ParseTableRef(tt.input)
			assert.Equal(t, tt.want, ref)
			assert.Equal(t, tt.input, ref.String())
		})
	}
}

func TestKeyDescriptor(t *testing.T) {
	none := KeyDescriptor{}
	assert.True(t, none.IsNone())
	assert.Equal(t, "NONE", none.Kind.String())

	pk := KeyDescriptor{Kind: KeyPrimary, Columns: []string{"tenant", "id"}}
	assert.False(t, pk.IsNone())
	assert.True(t, pk.Contains("id"))
	assert.False(t, pk.Contains("name"))
}

func TestTypedValueNullKeepsType(t *testing.T) {
	for _, typ := range []SQLType{TypeNumeric, TypeDouble, TypeBoolean, TypeDate, TypeTimestampTZ, TypeText, TypeBinary, TypeJSON} {
		t.Run(typ.String(), func(t *testing.T) {
			v := Null(typ)
			assert.True(t, v.IsNull())
			assert.Equal(t, typ, v.Type)

			dv, err := v.Value()
			assert.NoError(t, err)
			assert.Nil(t, dv)
		})
	}
}

func TestSQLTypeIsTemporal(t *testing.T) {
	assert.True(t, TypeDate.IsTemporal())
	assert.True(t, TypeTimestampTZ.IsTemporal())
	assert.False(t, TypeVarchar.IsTemporal())
	assert.False(t, TypeJSON.IsTemporal())
}
