package service

import (
	"context"
	"time"

	gws "option_terminal/internal/modules/gateway/service"
	"option_terminal/pkg/db"

	"github.com/jackc/pgx/v5"
	pkgerrors "github.com/pkg/errors"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS settled_contracts (
	contract_id   BIGINT PRIMARY KEY,
	symbol        TEXT NOT NULL,
	contract_type TEXT NOT NULL,
	buy_price     DOUBLE PRECISION NOT NULL,
	payout        DOUBLE PRECISION NOT NULL,
	profit        DOUBLE PRECISION NOT NULL,
	status        TEXT NOT NULL,
	settled_at    TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
INSERT INTO settled_contracts
	(contract_id, symbol, contract_type, buy_price, payout, profit, status, settled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (contract_id) DO NOTHING`

// Journal persists settled contracts — the rows behind every panel's
// history view. With no database configured it degrades to a no-op so the
// terminal still trades.
type Journal struct {
	txm db.TxManager
}

func NewJournal(txm db.TxManager) *Journal {
	return &Journal{txm: txm}
}

func (j *Journal) Enabled() bool { return j != nil && j.txm != nil }

func (j *Journal) EnsureSchema(ctx context.Context) error {
	if !j.Enabled() {
		return nil
	}
	_, err := j.txm.Conn().Exec(ctx, createTableSQL)
	return pkgerrors.Wrap(err, "ensure settled_contracts schema")
}

// Settled records one terminal contract snapshot.
func (j *Journal) Settled(ctx context.Context, c gws.ContractSnapshot) error {
	if !j.Enabled() {
		return nil
	}
	err := j.txm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertSQL,
			c.ContractID, c.Symbol, c.ContractType,
			c.BuyPrice, c.Payout, c.Profit, c.Status, time.Now().UTC(),
		)
		return err
	})
	return pkgerrors.Wrap(err, "insert settled contract")
}
