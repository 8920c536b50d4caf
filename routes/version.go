// Package routes implements the typestate-enforced route builder:
// every route lives under an explicit API version, and /health and
// /ready are always present regardless of what versions are added.
package routes

import "strings"

// ApiVersion is the closed set of API versions a service can expose.
type ApiVersion string

const (
	V1 ApiVersion = "V1"
	V2 ApiVersion = "V2"
	V3 ApiVersion = "V3"
	V4 ApiVersion = "V4"
)

// String renders the version the way it appears in a URL path, e.g. "v1".
func (v ApiVersion) String() string {
	return strings.ToLower(string(v))
}

// Label renders the version the way it appears in metadata, e.g. "V1".
func (v ApiVersion) Label() string {
	return string(v)
}
