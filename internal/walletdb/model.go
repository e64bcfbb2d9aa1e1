package walletdb

import "log/slog"

// AccountType identifies a wallet contract by version and revision.
type AccountType struct {
	Version  int
	Revision int
}

// Account is a row of the accounts table.
type Account struct {
	ID       int64
	WalletID int64
	Address  string
	Type     AccountType
	// Balance is -1 until the first sync
	Balance             int64
	LastTransactionID   *int64
	LastTransactionHash []byte
}

// Connection is a dApp session bound to an account.
type Connection struct {
	AccountID int64
	ClientID  string
	PublicKey string
	SecretKey string
	RequestID int64
}

// LogValue keeps the session secret out of logs.
func (c Connection) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("account_id", c.AccountID),
		slog.String("client_id", c.ClientID),
		slog.Int64("request_id", c.RequestID),
	)
}
