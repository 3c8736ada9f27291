package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDescriptor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Descriptor
	}{
		{"Empty", "", Descriptor{}},
		{"Quoted", "host='localhost',dbname='tmrm_test',user='jans'", Descriptor{"host": "localhost", "dbname": "tmrm_test", "user": "jans"}},
		{"SpaceSeparated", "host='a'  port='5432'", Descriptor{"host": "a", "port": "5432"}},
		{"Bare", "path=/tmp/x.db,mode=rw", Descriptor{"path": "/tmp/x.db", "mode": "rw"}},
		{"Escapes", `password='it\'s a \\ secret'`, Descriptor{"password": `it's a \ secret`}},
		{"QuotedComma", "dbname='a,b'", Descriptor{"dbname": "a,b"}},
		{"EmptyValue", "user=''", Descriptor{"user": ""}},
		{"RepeatedKey", "a=1,a=2", Descriptor{"a": "2"}},
		{"DashUnderscore", "ddb_table='t',access-key='k'", Descriptor{"ddb_table": "t", "access-key": "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDescriptor(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDescriptor_Errors(t *testing.T) {
	for _, in := range []string{
		"=value",
		"host",
		"host:'x'",
		"host='unterminated",
		`host='dangling\`,
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseDescriptor(in)
			var de *DescriptorError
			require.ErrorAs(t, err, &de)
		})
	}
}

func TestDescriptor_Accessors(t *testing.T) {
	d, err := ParseDescriptor("n=12,secure=true,bad=x")
	require.NoError(t, err)

	n, err := d.Int("n", 0)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	n, err = d.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	b, err := d.Bool("secure", false)
	require.NoError(t, err)
	assert.True(t, b)

	_, err = d.Int("bad", 0)
	assert.Error(t, err)
	_, err = d.Bool("bad", false)
	assert.Error(t, err)

	assert.Equal(t, "dflt", d.Get("missing", "dflt"))
}

func TestDescriptor_StringRoundTrip(t *testing.T) {
	d := Descriptor{"password": `it's \ odd`, "host": "h"}
	parsed, err := ParseDescriptor(d.String())
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}
