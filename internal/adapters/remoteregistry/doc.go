// Package remoteregistry connects to registries served over HTTP with the
// JSON registry protocol (see domain/mbean). Every Connect opens a private
// transport that Close tears down, so no connection outlives the request
// that opened it.
package remoteregistry
