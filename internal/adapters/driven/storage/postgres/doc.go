// Package postgres provides a pgvector-backed driven.VectorIndex.
//
// Similarity is computed by the database with the cosine distance operator
// (<=>); ranking ties fall back to insertion order through the seq column.
// The schema is embedded and applied idempotently on connect, and requires
// the vector extension to be installable by the connecting role.
package postgres
