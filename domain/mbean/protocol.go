package mbean

// Paths of the registry protocol. A registry served over HTTP answers
//
//	GET ObjectsPath                          -> []ManagedObject
//	GET AttributePath?object=<name>&name=<a> -> AttributeReading
//
// Failures carry a ProtocolError body: 404 for unknown objects or
// attributes, 502 for attributes whose read failed.
const (
	ObjectsPath   = "/registry/v1/objects"
	AttributePath = "/registry/v1/attribute"
)

// AttributeReading is the body of a successful attribute read.
type AttributeReading struct {
	Value Value `json:"value"`
}

// ProtocolError is the body of a failed registry call.
type ProtocolError struct {
	Error string `json:"error"`
}
