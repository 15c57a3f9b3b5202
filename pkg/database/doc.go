// Package database holds the PostgreSQL plumbing shared by the control and
// tenant databases: pool setup, a versioned migration runner, transaction
// helpers and driver error classification.
package database
