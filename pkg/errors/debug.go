package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE classes the order and payment paths care about.
var sqlStateConditions = map[string]string{
	"23503": "foreign_key_violation",
	"23505": "unique_violation",
	"23514": "check_violation",
	"40001": "serialization_failure",
	"40P01": "deadlock_detected",
	"55P03": "lock_not_available",
	"57014": "query_canceled",
}

// DBError is the driver-neutral view of a Postgres error.
type DBError struct {
	Code       string
	Condition  string
	Constraint string
	Table      string
	Column     string
	Detail     string
	Message    string
}

// ErrorDump flattens an error chain for request logs.
type ErrorDump struct {
	Message string
	Code    Code
	Chain   []string
	DB      *DBError
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{Message: err.Error(), DB: dbErrorOf(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields returns the log fields for the dump. Database fields are only
// present when the chain carried a driver error.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.DB == nil {
		return fields
	}
	fields["pg_code"] = d.DB.Code
	for key, val := range map[string]string{
		"pg_condition":  d.DB.Condition,
		"pg_constraint": d.DB.Constraint,
		"pg_table":      d.DB.Table,
		"pg_column":     d.DB.Column,
		"pg_detail":     d.DB.Detail,
		"pg_message":    d.DB.Message,
	} {
		if val != "" {
			fields[key] = val
		}
	}
	return fields
}

// SQLState returns the SQLSTATE code carried by err, or "" when the chain has
// no Postgres error.
func SQLState(err error) string {
	if dbErr := dbErrorOf(err); dbErr != nil {
		return dbErr.Code
	}
	return ""
}

func dbErrorOf(err error) *DBError {
	var out *DBError

	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		out = &DBError{
			Code:       pgxErr.Code,
			Constraint: pgxErr.ConstraintName,
			Table:      pgxErr.TableName,
			Column:     pgxErr.ColumnName,
			Detail:     pgxErr.Detail,
			Message:    pgxErr.Message,
		}
	case errors.As(err, &pqErr):
		out = &DBError{
			Code:       string(pqErr.Code),
			Constraint: pqErr.Constraint,
			Table:      pqErr.Table,
			Column:     pqErr.Column,
			Detail:     pqErr.Detail,
			Message:    pqErr.Message,
		}
	default:
		return nil
	}
	out.Condition = sqlStateConditions[out.Code]
	return out
}
