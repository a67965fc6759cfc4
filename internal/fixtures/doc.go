// Package fixtures substitutes recorded responses for live network calls.
//
// When the configured network switch is OFF every record is read from
// <fixtures_dir>/<source>.json; when it is ON records are fetched over HTTP
// from fetch.base_url with a minimum interval between requests. Both paths
// return the same Result shape so stage handlers never branch on network
// state.
package fixtures
