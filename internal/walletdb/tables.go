package walletdb

import (
	"walletstore/internal/platform/sqlite"
)

// Version is the schema version of the wallet database file.
const Version = 1

const (
	tableAccounts   = "accounts"
	tableFiatPrices = "fiatPrices"
	tableConnect    = "connect"
)

// Accounts columns
const (
	colID                  = "_id"
	colWalletID            = "walletId"
	colAddress             = "address"
	colVersion             = "version"
	colRevision            = "revision"
	colBalance             = "balance"
	colLastTransactionID   = "lastTransactionId"
	colLastTransactionHash = "lastTransactionHash"
)

// Connect columns
const (
	colAccountID = "accountId"
	colClientID  = "clientId"
	colPublicKey = "publicKey"
	colSecretKey = "secretKey"
	colRequestID = "requestId"
)

const colTokenID = "tokenId"

// nativeTokenID is the row of fiatPrices holding prices of the native coin.
const nativeTokenID = 0

var accountsTable = sqlite.MustDefineTable(tableAccounts,
	sqlite.Column(colID, sqlite.TypeInteger, sqlite.PrimaryKey(), sqlite.AutoIncrement(), sqlite.NotNull()),
	sqlite.Column(colWalletID, sqlite.TypeInteger, sqlite.NotNull()),
	sqlite.Column(colAddress, sqlite.TypeText, sqlite.NotNull(), sqlite.Unique()),
	sqlite.Column(colVersion, sqlite.TypeInteger, sqlite.NotNull()),
	sqlite.Column(colRevision, sqlite.TypeInteger, sqlite.NotNull()),
	sqlite.Column(colBalance, sqlite.TypeInteger, sqlite.Default("-1")),
	sqlite.Column(colLastTransactionID, sqlite.TypeInteger),
	sqlite.Column(colLastTransactionHash, sqlite.TypeBlob),
)

var fiatPricesTable = sqlite.MustDefineTable(tableFiatPrices, fiatPriceColumns()...)

func fiatPriceColumns() []sqlite.ColumnSpec {
	cols := []sqlite.ColumnSpec{sqlite.Column(colTokenID, sqlite.TypeInteger, sqlite.NotNull())}
	for _, c := range currencies {
		cols = append(cols, sqlite.Column(string(c.code), sqlite.TypeReal, sqlite.NotNull(), sqlite.Default("0")))
	}
	return cols
}

var connectTable = sqlite.MustDefineTable(tableConnect,
	sqlite.Column(colAccountID, sqlite.TypeInteger, sqlite.NotNull(),
		sqlite.References(tableAccounts, colID, sqlite.RefCascade, sqlite.RefNoAction)),
	sqlite.Column(colClientID, sqlite.TypeText, sqlite.NotNull()),
	sqlite.Column(colPublicKey, sqlite.TypeText, sqlite.NotNull()),
	sqlite.Column(colSecretKey, sqlite.TypeText, sqlite.NotNull()),
	sqlite.Column(colRequestID, sqlite.TypeInteger, sqlite.NotNull(), sqlite.Default("-1")),
)

// Tables returns the schema of every table in creation order.
func Tables() []*sqlite.TableSchema {
	return []*sqlite.TableSchema{accountsTable, fiatPricesTable, connectTable}
}
