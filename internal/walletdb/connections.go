package walletdb

import (
	"context"
	"fmt"

	"walletstore/internal/platform/sqlite"
	"walletstore/internal/shared"
)

// ErrConnectionNotFound is returned when the account has no session with the client.
var ErrConnectionNotFound = fmt.Errorf("%w: connection", shared.ErrNotFound)

const connectionColumns = "accountId, clientId, publicKey, secretKey, requestId"

// Connections reads and writes dApp sessions.
type Connections struct {
	store *Store
}

// Add stores a new session. RequestID starts at -1 regardless of c.RequestID.
// The account must exist.
func (c *Connections) Add(ctx context.Context, conn Connection) error {
	switch {
	case conn.ClientID == "":
		return shared.Validationf("connection client id is empty")
	case conn.PublicKey == "" || conn.SecretKey == "":
		return shared.Validationf("connection keys are empty")
	}

	err := c.store.write(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
		_, err := tx.Exec(ctx,
			"INSERT INTO connect (accountId, clientId, publicKey, secretKey) VALUES (?, ?, ?, ?)",
			conn.AccountID, conn.ClientID, conn.PublicKey, conn.SecretKey)
		return err
	})
	if err != nil {
		return fmt.Errorf("add connection: %w", err)
	}

	c.store.log.Debug("connection added", "connection", conn)
	return nil
}

// List returns the account's sessions in insertion order.
func (c *Connections) List(ctx context.Context, accountID int64) ([]Connection, error) {
	rs, err := c.store.db.Read(ctx,
		"SELECT "+connectionColumns+" FROM connect WHERE accountId = ? ORDER BY rowid", accountID)
	if err != nil {
		return nil, err
	}
	return scanConnections(rs)
}

func (c *Connections) Get(ctx context.Context, accountID int64, clientID string) (Connection, error) {
	rs, err := c.store.db.Read(ctx,
		"SELECT "+connectionColumns+" FROM connect WHERE accountId = ? AND clientId = ? ORDER BY rowid LIMIT 1",
		accountID, clientID)
	if err != nil {
		return Connection{}, err
	}
	conns, err := scanConnections(rs)
	if err != nil {
		return Connection{}, err
	}
	if len(conns) == 0 {
		return Connection{}, ErrConnectionNotFound
	}
	return conns[0], nil
}

func (c *Connections) Has(ctx context.Context, accountID int64, clientID string) (bool, error) {
	rs, err := c.store.db.Read(ctx,
		"SELECT EXISTS(SELECT 1 FROM connect WHERE accountId = ? AND clientId = ?) AS found",
		accountID, clientID)
	if err != nil {
		return false, err
	}
	found, err := rs.Int64(0, "found")
	return found != 0, err
}

// UpdateRequestID stores the id of the last request answered in the session.
func (c *Connections) UpdateRequestID(ctx context.Context, accountID int64, clientID string, requestID int64) error {
	return c.exec(ctx, "update connection",
		"UPDATE connect SET requestId = ? WHERE accountId = ? AND clientId = ?",
		requestID, accountID, clientID)
}

func (c *Connections) Remove(ctx context.Context, accountID int64, clientID string) error {
	return c.exec(ctx, "remove connection",
		"DELETE FROM connect WHERE accountId = ? AND clientId = ?",
		accountID, clientID)
}

func (c *Connections) exec(ctx context.Context, op, query string, args ...any) error {
	err := c.store.write(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
		res, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return ErrConnectionNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func scanConnections(rs *sqlite.ResultSet) ([]Connection, error) {
	out := make([]Connection, 0, rs.Len())
	for i := 0; i < rs.Len(); i++ {
		var conn Connection
		if err := rs.Scan(i, &conn.AccountID, &conn.ClientID, &conn.PublicKey, &conn.SecretKey, &conn.RequestID); err != nil {
			return nil, err
		}
		out = append(out, conn)
	}
	return out, nil
}
