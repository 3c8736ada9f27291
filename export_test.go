package tmrm_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tmrm"
	"github.com/hupe1980/tmrm/model"
)

type exported struct {
	SubjectMap string                         `yaml:"subject_map"`
	Proxies    map[string][]map[string]string `yaml:"proxies"`
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	m := bootstrapped(t)

	member, err := m.Bottom("member")
	require.NoError(t, err)
	locator, err := m.Bottom("subject_locator")
	require.NoError(t, err)

	p, q := newProxy(t, m), newProxy(t, m)
	require.NoError(t, p.SetLabel(ctx, "Alice"))
	require.NoError(t, p.AddProperty(ctx, member, q))
	require.NoError(t, p.AddPropertyLiteral(ctx, locator, model.NewLiteral("http://example.org/alice", "http://www.w3.org/2001/XMLSchema#anyURI")))

	var buf bytes.Buffer
	require.NoError(t, m.Export(ctx, &buf))

	var doc exported
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "mymap", doc.SubjectMap)
	assert.Len(t, doc.Proxies, 21)

	assert.Equal(t, []map[string]string{
		{"key": "item_identifier", "literal": "Alice", "datatype": tmrm.XSDString},
		{"key": "member", "proxy": q.ID().String()},
		{"key": "subject_locator", "literal": "http://example.org/alice", "datatype": "http://www.w3.org/2001/XMLSchema#anyURI"},
	}, doc.Proxies["Alice"])

	assert.Empty(t, doc.Proxies[q.ID().String()])
	require.NotEmpty(t, doc.Proxies["bottom"])
	assert.Equal(t, map[string]string{"key": "item-identifier", "proxy": "item_identifier"}, doc.Proxies["bottom"][0])

	for _, alias := range m.Aliases() {
		assert.Contains(t, doc.Proxies, alias)
	}
}

func TestExport_Closed(t *testing.T) {
	m := newMap(t)
	require.NoError(t, m.Close())

	var buf bytes.Buffer
	require.ErrorIs(t, m.Export(context.Background(), &buf), tmrm.ErrSubjectMapClosed)
}
