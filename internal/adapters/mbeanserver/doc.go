// Package mbeanserver provides the bridge's in-process managed-object
// registry together with the bean sources that populate it: Go runtime
// platform beans, host beans, database/sql data sources and static beans
// loaded from a YAML fixture.
//
// The Server implements domain.Registry and is what a request without a
// target parameter scrapes.
package mbeanserver
