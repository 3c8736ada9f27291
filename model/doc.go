// Package model defines the value types shared by the subject map core and
// the storage backends: proxy handles, typed literals and properties.
//
// The types here carry no behavior beyond identity and equality. They are
// plain values and can be copied freely.
package model
