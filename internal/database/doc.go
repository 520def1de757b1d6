// Package database provides the PostgreSQL connection pool for the message
// journal.
//
// The pool is created once at startup, pinged before use, and shared by the
// journal writer and the health endpoint.
package database
