package config

import (
	"fmt"
	"strings"
)

// Endpoint type constants. "local" is the only type the reference
// internal/driver implementation supports today (internal/driver.Local);
// additional types are reserved for other driver.Driver implementations,
// each an external collaborator per spec.md §1/§6.
const (
	EndpointLocal = "local"
)

var validEndpointTypes = map[string]bool{
	EndpointLocal: true,
}

// endpointMaxParts bounds the colon-separated segments in an endpoint
// handle: "type:location". location itself may contain colons (e.g. a
// Windows drive letter), so splitting stops after the first separator.
const endpointMaxParts = 2

// Endpoint is a parsed source or destination handle of the form
// "type:location", e.g. "local:/home/me/docs". This is dfb's equivalent
// of the teacher's `internal/driveid.CanonicalID` — a structured,
// config-level identifier for where data lives — generalized from
// OneDrive's personal/business/sharepoint/shared account taxonomy to a
// pluggable transfer-driver namespace.
type Endpoint struct {
	Type     string
	Location string
}

// String reconstructs the "type:location" handle.
func (e Endpoint) String() string {
	return e.Type + ":" + e.Location
}

// ParseEndpoint parses a raw "type:location" handle. Returns an error if
// the handle has no colon, an empty location, or an unrecognized type.
func ParseEndpoint(raw string) (Endpoint, error) {
	parts := strings.SplitN(raw, ":", endpointMaxParts)
	if len(parts) != endpointMaxParts || parts[1] == "" {
		return Endpoint{}, fmt.Errorf("config: endpoint handle %q must be \"type:location\"", raw)
	}

	typ := parts[0]
	if !validEndpointTypes[typ] {
		return Endpoint{}, fmt.Errorf("config: endpoint handle %q has unknown type %q (valid: %s)",
			raw, typ, validEndpointTypeList())
	}

	return Endpoint{Type: typ, Location: expandTilde(parts[1])}, nil
}

func validEndpointTypeList() string {
	types := make([]string, 0, len(validEndpointTypes))
	for t := range validEndpointTypes {
		types = append(types, t)
	}

	return strings.Join(types, ", ")
}
