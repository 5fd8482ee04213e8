package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-loans/internal/adapters"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	defaultItemsTable   = "items"
	defaultLoansTable   = "loans"
	defaultMembersTable = "members"
	dialectPostgres     = "postgres"

	colID              = "id"
	colTitle           = "title"
	colAuthor          = "author"
	colISBN            = "isbn"
	colTotalCopies     = "total_copies"
	colAvailableCopies = "available_copies"
	colMemberID        = "member_id"
	colItemID          = "item_id"
	colBorrowDate      = "borrow_date"
	colDueDate         = "due_date"
	colReturnDate      = "return_date"

	logMsgBuildQueryFailed  = "failed to build sql query"
	logMsgDBQueryFailed     = "database query execution failed"
	logMsgDBExecFailed      = "database statement execution failed"
	logMsgScanRowFailed     = "failed to scan database row"
	logMsgCloseRowsFailed   = "failed to close database rows"
	logMsgRollbackFailed    = "failed to roll back transaction"
	logMsgBeginTxFailed     = "failed to begin transaction"
	logMsgCommitTxFailed    = "failed to commit transaction"
	logMsgTxCommitted       = "transaction committed"
	logMsgTxRolledBack      = "transaction rolled back"
	logMsgTransientConflict = "transient conflict detected"
	logMsgLoansRead         = "loans read"
	logMsgSQLExecuted       = "executed sql for: "
	logAttrError            = "error"
	logAttrQuery            = "query"
	logAttrDurationMS       = "duration_ms"
	logAttrLoanCount        = "loan_count"
	logAttrStatements       = "statements"
	logAttrConsistency      = "consistency"
)

var ErrEmptyTableNameSupplied = errors.New("empty table name supplied")
var ErrBuildingQueryFailed = errors.New("building the sql query failed")
var ErrQueryingFailed = errors.New("querying the database failed")
var ErrExecutingStatementFailed = errors.New("executing the sql statement failed")
var ErrScanningDBRowFailed = errors.New("scanning a database row failed")
var ErrBeginningTxFailed = errors.New("beginning the transaction failed")
var ErrCommittingTxFailed = errors.New("committing the transaction failed")

// LoanStore is the PostgreSQL implementation of loanstore.Store.
type LoanStore struct {
	db               adapters.DBAdapter
	itemsTable       string
	loansTable       string
	membersTable     string
	logger           loanstore.Logger
	contextualLogger loanstore.ContextualLogger
	metricsCollector loanstore.MetricsCollector
	tracingCollector loanstore.TracingCollector
}

// NewLoanStoreFromPGXPool creates a new LoanStore using a pgx Pool with optional configuration.
func NewLoanStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*LoanStore, error) {
	if db == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewPGXAdapter(db), options...)
}

// NewLoanStoreFromPGXPoolAndReplica creates a new LoanStore whose eventually consistent reads go to the replica pool.
func NewLoanStoreFromPGXPoolAndReplica(primary *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*LoanStore, error) {
	if primary == nil || replica == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewPGXAdapterWithReplica(primary, replica), options...)
}

// NewLoanStoreFromSQLDB creates a new LoanStore using a sql.DB with optional configuration.
func NewLoanStoreFromSQLDB(db *sql.DB, options ...Option) (*LoanStore, error) {
	if db == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewSQLAdapter(db), options...)
}

// NewLoanStoreFromSQLX creates a new LoanStore using a sqlx.DB with optional configuration.
func NewLoanStoreFromSQLX(db *sqlx.DB, options ...Option) (*LoanStore, error) {
	if db == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newLoanStore(adapters.NewSQLXAdapter(db), options...)
}

func newLoanStore(db adapters.DBAdapter, options ...Option) (*LoanStore, error) {
	s := &LoanStore{
		db:           db,
		itemsTable:   defaultItemsTable,
		loansTable:   defaultLoansTable,
		membersTable: defaultMembersTable,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// RunInTx runs fn inside one read-committed transaction and commits if fn returns nil.
// Any error from fn, or a failed commit, rolls the transaction back.
func (s *LoanStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx loanstore.Tx) error) error {
	start := time.Now()
	ctx, span := s.startSpan(ctx, spanNameTx, nil)

	dbTx, beginErr := s.db.BeginTx(ctx)
	if beginErr != nil {
		err := s.classify(ErrBeginningTxFailed, beginErr)
		s.logError(ctx, logMsgBeginTxFailed, beginErr)
		s.finishTx(ctx, span, start, 0, err)

		return err
	}

	tx := &pgTx{store: s, dbTx: dbTx}

	if fnErr := fn(ctx, tx); fnErr != nil {
		s.rollback(ctx, dbTx)
		s.finishTx(ctx, span, start, tx.statements, fnErr)

		return fnErr
	}

	if commitErr := dbTx.Commit(ctx); commitErr != nil {
		err := s.classify(ErrCommittingTxFailed, commitErr)
		s.logError(ctx, logMsgCommitTxFailed, commitErr)
		s.rollback(ctx, dbTx)
		s.finishTx(ctx, span, start, tx.statements, err)

		return err
	}

	s.finishTx(ctx, span, start, tx.statements, nil)

	return nil
}

// rollback runs on a context that survives cancellation of the caller's context.
func (s *LoanStore) rollback(ctx context.Context, dbTx adapters.DBTx) {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := dbTx.Rollback(rollbackCtx); err != nil && !errors.Is(err, sql.ErrTxDone) {
		s.logWarn(ctx, logMsgRollbackFailed, logAttrError, err.Error())
	}
}

// Item reads an item without locking it.
func (s *LoanStore) Item(ctx context.Context, itemID int64) (loanstore.Item, error) {
	return s.selectItem(ctx, s.db, itemID, false)
}

// LoansByMember returns the member's loans filtered by status, ordered by loan id.
func (s *LoanStore) LoansByMember(
	ctx context.Context,
	memberID int64,
	status loanstore.LoanStatus,
	asOf time.Time,
) (loanstore.Loans, error) {

	return s.readLoans(ctx, spanNameLoansByMember, goqu.C(colMemberID).Eq(memberID), status, asOf)
}

// LoansByItem returns the item's loans filtered by status, ordered by loan id.
func (s *LoanStore) LoansByItem(
	ctx context.Context,
	itemID int64,
	status loanstore.LoanStatus,
	asOf time.Time,
) (loanstore.Loans, error) {

	return s.readLoans(ctx, spanNameLoansByItem, goqu.C(colItemID).Eq(itemID), status, asOf)
}

// OverdueLoans returns all active loans whose due date is before asOf, oldest due date first.
func (s *LoanStore) OverdueLoans(ctx context.Context, asOf time.Time) (loanstore.Loans, error) {
	return s.readLoans(ctx, spanNameOverdueLoans, nil, loanstore.OverdueLoan, asOf)
}

func (s *LoanStore) readLoans(
	ctx context.Context,
	spanName string,
	scope exp.Expression,
	status loanstore.LoanStatus,
	asOf time.Time,
) (loanstore.Loans, error) {

	start := time.Now()
	ctx, span := s.startSpan(ctx, spanName, map[string]string{
		spanAttrStatus:      status.String(),
		spanAttrConsistency: loanstore.GetConsistencyLevel(ctx).String(),
	})

	loans, err := s.selectLoans(ctx, s.db, scope, status, asOf)
	duration := time.Since(start)
	s.finishRead(ctx, span, duration, len(loans), err)

	if err != nil {
		return nil, err
	}

	s.logInfo(ctx, logMsgLoansRead,
		logAttrLoanCount, len(loans),
		logAttrConsistency, loanstore.GetConsistencyLevel(ctx).String(),
		logAttrDurationMS, durationToMilliseconds(duration))

	return loans, nil
}

// --- statement builders and executors shared by reads and transactions ---

func (s *LoanStore) dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func itemColumns() []any {
	return []any{colID, colTitle, colAuthor, colISBN, colTotalCopies, colAvailableCopies}
}

func loanColumns() []any {
	return []any{colID, colMemberID, colItemID, colBorrowDate, colDueDate, colReturnDate}
}

func (s *LoanStore) selectItem(ctx context.Context, q adapters.Querier, itemID int64, forUpdate bool) (loanstore.Item, error) {
	ds := s.dialect().From(s.itemsTable).Select(itemColumns()...).Where(goqu.C(colID).Eq(itemID))
	if forUpdate {
		ds = ds.ForUpdate(exp.Wait)
	}

	sqlQuery, err := s.toSQL(ctx, ds)
	if err != nil {
		return loanstore.Item{}, err
	}

	rows, err := s.query(ctx, q, sqlQuery, actionSelectItem)
	if err != nil {
		return loanstore.Item{}, err
	}
	defer s.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return loanstore.Item{}, s.classify(ErrQueryingFailed, rowsErr)
		}

		return loanstore.Item{}, loanstore.ErrItemNotFound
	}

	var item loanstore.Item
	var author, isbn sql.NullString
	if scanErr := rows.Scan(&item.ID, &item.Title, &author, &isbn, &item.TotalCopies, &item.AvailableCopies); scanErr != nil {
		s.logError(ctx, logMsgScanRowFailed, scanErr)
		return loanstore.Item{}, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	item.Author = author.String
	item.ISBN = isbn.String

	return item, nil
}

func (s *LoanStore) selectLoans(
	ctx context.Context,
	q adapters.Querier,
	scope exp.Expression,
	status loanstore.LoanStatus,
	asOf time.Time,
) (loanstore.Loans, error) {

	var where []exp.Expression
	if scope != nil {
		where = append(where, scope)
	}

	switch status {
	case loanstore.ActiveLoan:
		where = append(where, goqu.C(colReturnDate).IsNull())
	case loanstore.OverdueLoan:
		where = append(where, goqu.C(colReturnDate).IsNull(), goqu.C(colDueDate).Lt(asOf.UTC()))
	}

	ds := s.dialect().From(s.loansTable).Select(loanColumns()...).Where(where...)
	if status == loanstore.OverdueLoan {
		ds = ds.Order(goqu.C(colDueDate).Asc(), goqu.C(colID).Asc())
	} else {
		ds = ds.Order(goqu.C(colID).Asc())
	}

	sqlQuery, err := s.toSQL(ctx, ds)
	if err != nil {
		return nil, err
	}

	rows, err := s.query(ctx, q, sqlQuery, actionSelectLoans)
	if err != nil {
		return nil, err
	}
	defer s.closeRows(ctx, rows)

	loans := make(loanstore.Loans, 0)
	for rows.Next() {
		loan, scanErr := s.scanLoan(ctx, rows)
		if scanErr != nil {
			return nil, scanErr
		}

		loans = append(loans, loan)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, s.classify(ErrQueryingFailed, rowsErr)
	}

	return loans, nil
}

func (s *LoanStore) scanLoan(ctx context.Context, rows adapters.DBRows) (loanstore.Loan, error) {
	var loan loanstore.Loan
	var returnDate sql.NullTime

	if err := rows.Scan(&loan.ID, &loan.MemberID, &loan.ItemID, &loan.BorrowDate, &loan.DueDate, &returnDate); err != nil {
		s.logError(ctx, logMsgScanRowFailed, err)
		return loanstore.Loan{}, errors.Join(ErrScanningDBRowFailed, err)
	}

	loan.BorrowDate = loan.BorrowDate.UTC()
	loan.DueDate = loan.DueDate.UTC()
	if returnDate.Valid {
		rd := returnDate.Time.UTC()
		loan.ReturnDate = &rd
	}

	return loan, nil
}

func (s *LoanStore) count(ctx context.Context, q adapters.Querier, table string, where ...exp.Expression) (int64, error) {
	ds := s.dialect().From(table).Select(goqu.COUNT(goqu.Star())).Where(where...)

	sqlQuery, err := s.toSQL(ctx, ds)
	if err != nil {
		return 0, err
	}

	rows, err := s.query(ctx, q, sqlQuery, actionCount)
	if err != nil {
		return 0, err
	}
	defer s.closeRows(ctx, rows)

	var n int64
	if rows.Next() {
		if scanErr := rows.Scan(&n); scanErr != nil {
			s.logError(ctx, logMsgScanRowFailed, scanErr)
			return 0, errors.Join(ErrScanningDBRowFailed, scanErr)
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return 0, s.classify(ErrQueryingFailed, rowsErr)
	}

	return n, nil
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (s *LoanStore) toSQL(ctx context.Context, ds sqlBuilder) (string, error) {
	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		s.logError(ctx, logMsgBuildQueryFailed, err)
		return "", errors.Join(ErrBuildingQueryFailed, err)
	}

	return sqlQuery, nil
}

func (s *LoanStore) query(ctx context.Context, q adapters.Querier, sqlQuery, action string) (adapters.DBRows, error) {
	start := time.Now()
	rows, err := q.Query(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)
	s.recordStatement(ctx, action, duration, err)

	if err != nil {
		s.logError(ctx, logMsgDBQueryFailed, err, logAttrQuery, sqlQuery)
		return nil, s.classify(ErrQueryingFailed, err)
	}

	return rows, nil
}

func (s *LoanStore) exec(ctx context.Context, q adapters.Querier, sqlQuery, action string) (int64, error) {
	start := time.Now()
	result, err := q.Exec(ctx, sqlQuery)
	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, action, duration)
	s.recordStatement(ctx, action, duration, err)

	if err != nil {
		s.logError(ctx, logMsgDBExecFailed, err, logAttrQuery, sqlQuery)
		return 0, s.classify(ErrExecutingStatementFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Join(ErrExecutingStatementFailed, err)
	}

	return rowsAffected, nil
}

func (s *LoanStore) closeRows(ctx context.Context, rows adapters.DBRows) {
	if err := rows.Close(); err != nil {
		s.logWarn(ctx, logMsgCloseRowsFailed, logAttrError, err.Error())
	}
}

// classify joins err with base and, for lock and serialization conflicts, with loanstore.ErrTransientConflict.
func (s *LoanStore) classify(base error, err error) error {
	if adapters.IsTransientConflict(err) {
		s.recordTransientConflict()
		return errors.Join(loanstore.ErrTransientConflict, base, err)
	}

	return errors.Join(base, err)
}
