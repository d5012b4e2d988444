// Package repository holds the MySQL persistence layer.  Repositories are
// thin wrappers around hand-written SQL; they know nothing about who is
// calling or why.  Ownership and lifecycle rules live in the service
// layer, which translates the sentinel errors below into typed failures.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update violates a unique key
// (email, phone, appointment number, favorite pair).
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a conditional update matched no row because
// the record is no longer in the expected state, such as deciding a
// request that another admin already decided.
var ErrConflict = errors.New("conflict")

// Scope controls whether a lookup hides non-public records.
type Scope uint8

const (
	// ScopeActiveOnly restricts lookups to records the public may see.
	ScopeActiveOnly Scope = iota
	// ScopeAll returns records in any status (admin overrides, owners).
	ScopeAll
)

const mysqlDuplicateEntry = 1062

func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
