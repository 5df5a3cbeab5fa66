// Package store drives insert, select, update, delete and restore against a
// single-column JSON document table, journaling every mutation to a
// companion audit table.
//
// A Driver owns a connection provider and a dialect (§6); every public call
// acquires one transaction, runs entirely on it, and releases it on return,
// including on error. Tables are created on first write demand, not
// up front.
package store
