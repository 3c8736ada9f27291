package ontology

import _ "embed"

// Standard is the bootstrap ontology every Topic Maps engine needs.
//
//go:embed standard.yaml
var Standard string

// Classes adds the aliases used by type-instance and
// superclass-subclass associations.
//
//go:embed classes.yaml
var Classes string

// StandardAliases lists the aliases bound by Standard, in document order.
var StandardAliases = []string{
	"bottom",
	"item_identifier",
	"subject_identifier",
	"subject_locator",
	"member",
	"type",
	"subject",
	"scope",
	"reified",
	"reifier",
}

// ClassAliases lists the aliases bound by Classes, in document order.
var ClassAliases = []string{"bottom", "type", "instance", "superclass", "subclass"}
