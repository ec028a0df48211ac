// Package errors defines the application error taxonomy and its HTTP
// mapping.
//
// Every failure surfaced by the analysis layer is an AppError carrying
// one of the fixed types:
//
//	DATA_SOURCE_UNAVAILABLE  no live connection exists or the probe failed
//	QUERY_EXECUTION_FAILED   the data source rejected or errored on a query
//	INVALID_FILTER_SET       malformed date range, states or row limit
//	STORAGE                  a fallback table could not be read
//	PARSING                  a fallback table could not be parsed
//	CONFIG                   configuration failed validation
//
// Failures are never retried; they propagate to the caller with the
// underlying cause attached so a diagnostic can be rendered. The HTTP
// layer maps the taxonomy onto status codes via FromAppError:
// unavailable source → 503, rejected query → 502, bad filter → 400.
package errors
