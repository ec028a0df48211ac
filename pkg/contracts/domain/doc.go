// Package domain holds the bond market entities and the tabular result
// contract shared by every layer.
//
// The entities mirror the relational tables the analyses read: bonds,
// issuers, bond purposes, trades, credit ratings and economic
// indicators. All of them are externally owned reference data; nothing
// in this system writes them.
//
// ResultSet is the single result shape both data paths produce, the
// live SQL executor and the in-memory fallback aggregator, so
// consumers never know which path served them.
package domain
