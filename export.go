package tmrm

import (
	"context"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/tmrm/model"
)

// Export writes the map as a YAML document:
//
//	subject_map: <name>
//	proxies:
//	  <proxy>:
//	    - {key: <proxy>, proxy: <proxy>}
//	    - {key: <proxy>, literal: <value>, datatype: <uri>}
//
// A proxy is named by its first alias, else the local name of an ontology
// key, else its label, else its id. Alias and local-name markers are not
// exported. ImportGraph reads the same format.
func (m *SubjectMap) Export(ctx context.Context, w io.Writer) error {
	start := time.Now()
	n, err := m.export(ctx, w)
	m.logger.LogExport(ctx, n, err)
	m.metrics.RecordExport(n, time.Since(start), err)
	return err
}

func (m *SubjectMap) export(ctx context.Context, w io.Writer) (int, error) {
	if err := m.checkOpen(); err != nil {
		return 0, err
	}

	ids, err := collect(m.st.Proxies(ctx))
	if err != nil {
		return 0, err
	}
	names, err := m.exportNames(ctx, ids)
	if err != nil {
		return 0, err
	}

	proxies := &yaml.Node{Kind: yaml.MappingNode}
	for _, id := range ids {
		props, err := m.properties(ctx, id, model.NoProxy)
		if err != nil {
			return 0, err
		}

		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, p := range props {
			entry := &yaml.Node{Kind: yaml.MappingNode, Style: yaml.FlowStyle}
			entry.Content = append(entry.Content, scalar("key"), scalar(names[p.Key]))
			if v, ok := p.Value.Proxy(); ok {
				entry.Content = append(entry.Content, scalar("proxy"), scalar(names[v]))
			} else {
				l, _ := p.Value.Literal()
				if l.Datatype() == AliasDatatype || l.Datatype() == LocalNameDatatype {
					continue
				}
				entry.Content = append(entry.Content,
					scalar("literal"), scalar(l.Value()),
					scalar("datatype"), scalar(l.Datatype()))
			}
			seq.Content = append(seq.Content, entry)
		}
		proxies.Content = append(proxies.Content, scalar(names[id]), seq)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode}
	doc.Content = append(doc.Content,
		scalar("subject_map"), scalar(m.name),
		scalar("proxies"), proxies)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return 0, err
	}
	return len(ids), enc.Close()
}

// localKeyPrefix marks an exported local-name key whose plain name is
// taken by an alias.
const localKeyPrefix = "key:"

// exportNames assigns every proxy a unique name. Aliases are assigned
// first, then local names of ontology keys, then labels. Collisions fall
// back to the id.
func (m *SubjectMap) exportNames(ctx context.Context, ids []model.ProxyID) (map[model.ProxyID]string, error) {
	names := make(map[model.ProxyID]string, len(ids))
	taken := make(map[string]bool, len(ids))
	for _, id := range ids {
		taken[id.String()] = true
	}
	claim := func(id model.ProxyID, name string) bool {
		if name == "" || taken[name] {
			return false
		}
		names[id] = name
		taken[name] = true
		return true
	}

	for _, id := range ids {
		if alias, ok := m.aliasOf(id); ok {
			claim(id, alias)
		}
	}

	m.mu.RLock()
	keys := make(map[model.ProxyID]string, len(m.localNames))
	for name, id := range m.localNames {
		keys[id] = name
	}
	m.mu.RUnlock()

	for _, id := range ids {
		name, ok := keys[id]
		if _, named := names[id]; named || !ok {
			continue
		}
		if !claim(id, name) {
			claim(id, localKeyPrefix+name)
		}
	}

	for _, id := range ids {
		if _, ok := names[id]; ok {
			continue
		}
		name, err := m.label(ctx, id)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, localKeyPrefix) || !claim(id, name) {
			names[id] = id.String()
		}
	}
	return names, nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
