// Package records provides the HTTP adapter for the remote table-oriented
// record store. It implements the engine.RecordClient interface against
// the store's table API, authenticating with basic auth and decoding the
// conventional "result" response envelope.
package records
