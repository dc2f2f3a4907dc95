// Package repository holds the MySQL-backed stores: the ledger state the
// program runs against and the gate operator accounts.
package repository

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/evo-ticket-ledger/internal/ledger"
	"github.com/iliyamo/evo-ticket-ledger/internal/model"
)

// ErrConflict is returned when a unique key is already taken, such as a
// duplicate operator username. Handlers translate it into HTTP 409.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers the repositories react to.
const (
	errDuplicateKey = 1062
	errOutOfRange   = 1690
	errLockWait     = 1205
	errDeadlock     = 1213
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == errDuplicateKey }

// classify maps storage failures that are safe to retry onto
// ledger.ErrTransient and unsigned overflow (a balance past 2^64-1) onto
// model.ErrInvalidInput. Everything else passes through.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch mysqlCode(err) {
	case errDeadlock, errLockWait:
		return ledger.NewError(ledger.ErrTransient, []string{err.Error()})
	case errOutOfRange:
		return fmt.Errorf("%w: %v", model.ErrInvalidInput, err)
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return ledger.NewError(ledger.ErrTransient, []string{err.Error()})
	}
	return err
}
