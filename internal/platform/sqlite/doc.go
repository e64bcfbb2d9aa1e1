// Package sqlite предоставляет встраиваемый слой доступа к SQLite.
//
// Основные возможности:
// - Декларативное описание таблиц (DefineTable, Column) с детерминированным DDL
// - Жизненный цикл файла: создание, миграция по PRAGMA user_version, открытие
// - Один поток записи (горутина, закреплённая за OS-потоком), на котором выполняются все транзакции
// - Пул соединений чтения с query_only
// - Таксономия ошибок StorageError поверх кодов SQLite
// - Миграции: пошаговые (Migrations) и файловые через golang-migrate (FileMigrator)
//
// # Быстрый старт
//
//	accounts := sqlite.MustDefineTable("accounts",
//		sqlite.Column("_id", sqlite.TypeInteger, sqlite.PrimaryKey(), sqlite.AutoIncrement()),
//		sqlite.Column("address", sqlite.TypeText, sqlite.NotNull(), sqlite.Unique()),
//	)
//
//	db, err := sqlite.Open(ctx, "wallet.db", 1, sqlite.NewTablesCallback(accounts), sqlite.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer db.Close(ctx)
//
// # Транзакции
//
// Транзакция захватывает поток записи до BEGIN и освобождает его после COMMIT/ROLLBACK.
// Выражения двух транзакций никогда не перемежаются:
//
//	err = db.WithTransaction(ctx, func(ctx context.Context, tx *sqlite.Tx) error {
//		_, err := tx.Exec(ctx, "INSERT INTO accounts (address) VALUES (?)", "EQ...")
//		return err
//	})
//
// Вложенный WithTransaction из fn возвращает ErrNestedTransaction; для частичного
// отката используйте tx.Savepoint.
//
// Отмена ctx до выдачи тикета не оставляет поток записи занятым.
// При переполнении очереди или после Close возвращается ошибка вида Unavailable.
//
// # Чтение
//
//	rs, err := db.Read(ctx, "SELECT address FROM accounts")
//	for i := 0; i < rs.Len(); i++ {
//		addr, _ := rs.String(i, "address")
//	}
//
// # Ошибки
//
// SQLITE_BUSY и SQLITE_LOCKED возвращаются как вид Busy и не повторяются автоматически.
// Вызывающий код повторяет их через pkg/retry:
//
//	err = retry.Do(ctx, cfg, func() error { return db.WithTransaction(ctx, fn) })
//
// # Тестирование
//
//	func TestSomething(t *testing.T) {
//		db := sqlite.NewTestDatabase(t, sqlite.NewTablesCallback(accounts))
//		sqlite.MustExec(t, db, "INSERT INTO accounts (address) VALUES ('a')")
//	}
package sqlite
