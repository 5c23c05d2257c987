// Package registry_http serves a domain.Registry over HTTP using the JSON
// registry protocol described in domain/mbean. A bridge mounts it so that
// other bridges can scrape its local registry with target=host:port.
package registry_http
