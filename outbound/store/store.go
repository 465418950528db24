// Package store is the hand-written query layer over pgx. It keeps the
// shape of a generated querier (New, WithTx, one method per statement) so
// handlers stay thin and tests can drive it with pgxmock.
//
// Every state transition in here is a single conditional UPDATE whose
// WHERE clause encodes the expected current state. Callers inspect
// RowsAffected to learn whether the transition applied; there is never a
// separate read followed by a separate write.
package store

import (
	"gatepass/common/contract"

	"github.com/jackc/pgx/v5"
)

type Queries struct {
	db contract.DbConn
}

func New(db contract.DbConn) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}
