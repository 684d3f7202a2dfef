// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: document records and processing status
//   - VectorIndex: chunk embeddings with exact cosine ranking
//   - ConversationStore: per-session message history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.docchat/data/docchat.db
//
// # Thread Safety
//
// All operations are thread-safe. Reads rely on SQLite WAL mode; writes are
// serialised by the store so multi-statement transactions never contend.
package sqlite
