package walletdb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"walletstore/internal/platform/sqlite"
	"walletstore/internal/shared"
)

// ErrAccountNotFound is returned when no account matches the lookup.
var ErrAccountNotFound = fmt.Errorf("%w: account", shared.ErrNotFound)

var accountColumns = strings.Join(accountsTable.ColumnNames(), ", ")

// Accounts reads and writes the accounts table.
type Accounts struct {
	store *Store
}

// Add inserts an account and returns its id. A duplicate address fails with kind Constraint.
func (a *Accounts) Add(ctx context.Context, walletID int64, address string, typ AccountType) (int64, error) {
	if address == "" {
		return 0, shared.Validationf("account address is empty")
	}

	var id int64
	err := a.store.write(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
		res, err := tx.Exec(ctx,
			"INSERT INTO accounts (walletId, address, version, revision) VALUES (?, ?, ?, ?)",
			walletID, address, typ.Version, typ.Revision)
		if err != nil {
			return err
		}
		id = res.LastInsertID
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("add account: %w", err)
	}
	return id, nil
}

func (a *Accounts) Count(ctx context.Context) (int, error) {
	rs, err := a.store.db.Read(ctx, "SELECT COUNT(*) AS n FROM accounts")
	if err != nil {
		return 0, err
	}
	n, err := rs.Int64(0, "n")
	return int(n), err
}

func (a *Accounts) Get(ctx context.Context, address string) (Account, error) {
	return a.one(ctx, "address = ?", address)
}

func (a *Accounts) GetByID(ctx context.Context, id int64) (Account, error) {
	return a.one(ctx, "_id = ?", id)
}

// Address returns the address of the wallet's account of the given type.
func (a *Accounts) Address(ctx context.Context, walletID int64, typ AccountType) (string, error) {
	acc, err := a.one(ctx, "walletId = ? AND version = ? AND revision = ?", walletID, typ.Version, typ.Revision)
	if err != nil {
		return "", err
	}
	return acc.Address, nil
}

// ID returns the id of the first account of the given type.
func (a *Accounts) ID(ctx context.Context, typ AccountType) (int64, error) {
	acc, err := a.one(ctx, "version = ? AND revision = ?", typ.Version, typ.Revision)
	if err != nil {
		return 0, err
	}
	return acc.ID, nil
}

func (a *Accounts) All(ctx context.Context) ([]Account, error) {
	return a.list(ctx, "", 0, nil)
}

// SetBalance stores the synced balance of the account.
func (a *Accounts) SetBalance(ctx context.Context, address string, balance int64) error {
	return a.update(ctx, address, "balance = ?", balance)
}

// SetLastTransaction stores the cursor of the last seen transaction.
func (a *Accounts) SetLastTransaction(ctx context.Context, address string, id int64, hash []byte) error {
	return a.update(ctx, address, "lastTransactionId = ?, lastTransactionHash = ?", id, hash)
}

// RemoveWallet deletes every account of the wallet. Their connections go with them.
func (a *Accounts) RemoveWallet(ctx context.Context, walletID int64) (int64, error) {
	var removed int64
	err := a.store.write(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
		res, err := tx.Exec(ctx, "DELETE FROM accounts WHERE walletId = ?", walletID)
		if err != nil {
			return err
		}
		removed = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remove wallet %d: %w", walletID, err)
	}

	a.store.log.Debug("wallet removed", "wallet_id", walletID, "accounts", removed)
	return removed, nil
}

func (a *Accounts) update(ctx context.Context, address, set string, args ...any) error {
	err := a.store.write(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
		res, err := tx.Exec(ctx, "UPDATE accounts SET "+set+" WHERE address = ?", append(args, address)...)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update account %s: %w", address, err)
	}
	return nil
}

func (a *Accounts) one(ctx context.Context, where string, args ...any) (Account, error) {
	accounts, err := a.list(ctx, where, 1, args)
	if err != nil {
		return Account{}, err
	}
	if len(accounts) == 0 {
		return Account{}, ErrAccountNotFound
	}
	return accounts[0], nil
}

func (a *Accounts) list(ctx context.Context, where string, limit int, args []any) ([]Account, error) {
	query := "SELECT " + accountColumns + " FROM accounts"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY _id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rs, err := a.store.db.Read(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		acc, err := scanAccount(rs, i)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

func scanAccount(rs *sqlite.ResultSet, row int) (Account, error) {
	var (
		acc    Account
		lastID sql.NullInt64
	)
	err := rs.Scan(row,
		&acc.ID, &acc.WalletID, &acc.Address, &acc.Type.Version, &acc.Type.Revision,
		&acc.Balance, &lastID, &acc.LastTransactionHash)
	if err != nil {
		return Account{}, err
	}
	if lastID.Valid {
		acc.LastTransactionID = &lastID.Int64
	}
	return acc, nil
}
