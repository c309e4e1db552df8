// Package storage is the persistence layer for events, memo items, category
// options, the multimedia catalog and the channel resource registry.
//
// It is backed by a single SQLite file accessed through sqlx. Every
// operation is one statement (or one short transaction) committed before it
// returns. Timestamps are written in a fixed seconds-precision UTC form so
// that string comparison in SQL matches chronological order.
package storage
