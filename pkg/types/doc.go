// Package types provides shared type definitions for the filescout server.
//
// This package defines the domain types that cross component boundaries:
// search matches returned by the query engine and the strategy tags that
// describe how a match was found.
//
// # Core Types
//
//   - SearchMatch: a single result from the query engine, carrying file
//     metadata, a context snippet, and the strategy that matched
//   - MatchStrategy: which of the cascading search strategies produced
//     a result (fulltext, content, filename)
package types
