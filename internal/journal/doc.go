// Package journal records every inbound backend message to PostgreSQL.
//
// Pipeline:
//   - Recorder is a connection listener; it copies each envelope into a
//     bounded growable buffer and never blocks dispatch
//   - Writer drains the buffer in batches (size or interval, whichever
//     comes first) and hands them to a Store
//   - PostgresStore inserts batches into ws_messages with pgx.Batch
//
// The journal is append-only. When the buffer is full, new records are
// dropped and counted.
package journal
