// Package ontology parses bootstrap ontology documents.
//
// A document names a subject map and lists proxy aliases in order. Each
// alias maps to a rule with one of two shapes:
//
//	%YAML 1.1
//	---
//	subject_map: 'base'
//	proxies:
//	    bottom: {libtmrm_bottom: libtmrm_bottom}
//	    type: {bottom: "type"}
//	...
//
// A rule whose key equals its value is the root rule: the alias names the
// self-referential bottom proxy. Any other rule {base: local_name} says that
// the alias is the value of a property on base keyed by local_name. A base
// must be defined by an earlier rule.
//
// Standard and Classes are the embedded ontologies most subject maps start
// from.
//
// ParseGraph reads the other document shape the package knows: a subject
// map export, where every proxy name maps to a list of properties.
package ontology
