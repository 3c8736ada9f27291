package tmrm

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/hupe1980/tmrm/model"
	"github.com/hupe1980/tmrm/ontology"
)

// ImportResult summarizes one ontology import.
type ImportResult struct {
	// SubjectMap is the subject_map value of the document.
	SubjectMap string
	// Bound lists the aliases created by the import, in document order.
	Bound []string
	// Skipped lists aliases that were already bound.
	Skipped []string
}

// ImportOntology parses an ontology document and binds its aliases to
// bottom proxies. Aliases that are already bound are skipped, so importing
// the same document twice creates nothing the second time.
//
// A document that fails to parse leaves the map untouched.
func (m *SubjectMap) ImportOntology(ctx context.Context, r io.Reader) (*ImportResult, error) {
	doc, err := ontology.Parse(r)
	if err != nil {
		m.logger.LogImport(ctx, "", 0, 0, err)
		m.metrics.RecordImport(0, 0, 0, err)
		return nil, err
	}
	return m.ImportDocument(ctx, doc)
}

// ImportOntologyString is ImportOntology for a document held in a string.
func (m *SubjectMap) ImportOntologyString(ctx context.Context, s string) (*ImportResult, error) {
	return m.ImportOntology(ctx, strings.NewReader(s))
}

// Bootstrap imports the standard ontology.
func (m *SubjectMap) Bootstrap(ctx context.Context) (*ImportResult, error) {
	return m.ImportOntologyString(ctx, ontology.Standard)
}

// ImportDocument binds the aliases of a parsed document.
//
// A storage failure part way through leaves the rules applied so far bound;
// importing the document again completes it.
func (m *SubjectMap) ImportDocument(ctx context.Context, doc *ontology.Document) (*ImportResult, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	m.importMu.Lock()
	defer m.importMu.Unlock()

	start := time.Now()
	res := &ImportResult{SubjectMap: doc.SubjectMap}

	err := m.resolveExternals(doc)
	if err == nil {
		for _, rule := range doc.Rules {
			if m.isBound(rule.Alias) {
				res.Skipped = append(res.Skipped, rule.Alias)
				continue
			}
			if err = m.apply(ctx, rule); err != nil {
				break
			}
			res.Bound = append(res.Bound, rule.Alias)
		}
	}

	m.logger.LogImport(ctx, doc.SubjectMap, len(res.Bound), len(res.Skipped), err)
	m.metrics.RecordImport(len(res.Bound), len(res.Skipped), time.Since(start), err)
	return res, err
}

// resolveExternals checks that every base the document does not define is
// bound in m.
func (m *SubjectMap) resolveExternals(doc *ontology.Document) error {
	for _, rule := range doc.Externals() {
		if _, err := m.lookupAlias(rule.Base); err != nil {
			return undefinedBase(rule)
		}
	}
	return nil
}

func undefinedBase(rule ontology.Rule) error {
	return &OntologyParseError{
		Line:   rule.Line,
		Column: rule.Column,
		Msg:    "rule for " + rule.Alias,
		Err:    &UndefinedAliasError{Alias: rule.Base, Line: rule.Line},
	}
}

func (m *SubjectMap) apply(ctx context.Context, rule ontology.Rule) error {
	if rule.Kind == ontology.RuleRoot {
		return m.applyRoot(ctx, rule.Alias)
	}

	base, err := m.lookupAlias(rule.Base)
	if err != nil {
		return undefinedBase(rule)
	}

	key, err := m.localKey(ctx, rule.LocalName)
	if err != nil {
		return err
	}

	value, err := m.allocate(ctx)
	if err != nil {
		return err
	}
	if err := m.write(ctx, base, key, model.ProxyValue(value)); err != nil {
		return err
	}
	return m.bind(ctx, rule.Alias, value)
}

func (m *SubjectMap) applyRoot(ctx context.Context, alias string) error {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()

	if root == model.NoProxy {
		id, err := m.allocate(ctx)
		if err != nil {
			return err
		}
		if err := m.write(ctx, id, id, model.LiteralValue(model.NewLiteral(alias, AliasDatatype))); err != nil {
			return err
		}

		m.mu.Lock()
		m.root = id
		m.bindLocked(alias, id)
		m.mu.Unlock()
		return nil
	}
	return m.bind(ctx, alias, root)
}

// localKey returns the key proxy for an ontology local name, creating it on
// first use.
func (m *SubjectMap) localKey(ctx context.Context, name string) (model.ProxyID, error) {
	m.mu.RLock()
	id, ok := m.aliases[name]
	if !ok {
		id, ok = m.localNames[name]
	}
	root := m.root
	m.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := m.allocate(ctx)
	if err != nil {
		return model.NoProxy, err
	}
	if err := m.write(ctx, id, root, model.LiteralValue(model.NewLiteral(name, LocalNameDatatype))); err != nil {
		return model.NoProxy, err
	}

	m.mu.Lock()
	m.localNames[name] = id
	m.mu.Unlock()
	return id, nil
}

// bind records the alias marker on id and registers the alias.
func (m *SubjectMap) bind(ctx context.Context, alias string, id model.ProxyID) error {
	m.mu.RLock()
	root := m.root
	m.mu.RUnlock()

	if err := m.write(ctx, id, root, model.LiteralValue(model.NewLiteral(alias, AliasDatatype))); err != nil {
		return err
	}

	m.mu.Lock()
	m.bindLocked(alias, id)
	m.mu.Unlock()
	return nil
}

func (m *SubjectMap) allocate(ctx context.Context) (model.ProxyID, error) {
	start := time.Now()
	id, err := m.st.AllocateProxy(ctx)
	m.metrics.RecordProxyCreate(time.Since(start), err)
	return id, err
}

func (m *SubjectMap) write(ctx context.Context, source, key model.ProxyID, v model.Value) error {
	start := time.Now()
	err := m.st.AddProperty(ctx, model.Property{Source: source, Key: key, Value: v})
	m.metrics.RecordPropertyAdd(time.Since(start), err)
	if err != nil {
		m.logger.WithProxy(source).LogPropertyAdd(ctx, key, err)
	}
	return err
}
