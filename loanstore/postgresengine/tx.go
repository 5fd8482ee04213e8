package postgresengine

import (
	"context"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"

	"github.com/AntonStoeckl/library-loans/internal/adapters"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	actionSelectItem       = "select item"
	actionSelectLoans      = "select loans"
	actionCount            = "count"
	actionUpdateCopies     = "update available copies"
	actionInsertLoan       = "insert loan"
	actionMarkLoanReturned = "mark loan returned"
)

// pgTx implements loanstore.Tx on one open database transaction.
type pgTx struct {
	store      *LoanStore
	dbTx       adapters.DBTx
	statements int
}

func (t *pgTx) MemberExists(ctx context.Context, memberID int64) (bool, error) {
	t.statements++

	n, err := t.store.count(ctx, t.dbTx, t.store.membersTable, goqu.C(colID).Eq(memberID))
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (t *pgTx) HasActiveLoan(ctx context.Context, memberID, itemID int64) (bool, error) {
	t.statements++

	n, err := t.store.count(ctx, t.dbTx, t.store.loansTable,
		goqu.C(colMemberID).Eq(memberID),
		goqu.C(colItemID).Eq(itemID),
		goqu.C(colReturnDate).IsNull(),
	)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (t *pgTx) CountActiveLoans(ctx context.Context, memberID int64) (int, error) {
	t.statements++

	n, err := t.store.count(ctx, t.dbTx, t.store.loansTable,
		goqu.C(colMemberID).Eq(memberID),
		goqu.C(colReturnDate).IsNull(),
	)

	return int(n), err
}

func (t *pgTx) LockItem(ctx context.Context, itemID int64) (loanstore.Item, error) {
	t.statements++

	return t.store.selectItem(ctx, t.dbTx, itemID, true)
}

// UpdateAvailableCopies only touches the row if the new value stays within [0, total_copies].
func (t *pgTx) UpdateAvailableCopies(ctx context.Context, itemID int64, availableCopies int) error {
	t.statements++

	if availableCopies < 0 {
		return loanstore.ErrCopiesOutOfRange
	}

	ds := t.store.dialect().Update(t.store.itemsTable).
		Set(goqu.Record{colAvailableCopies: availableCopies}).
		Where(goqu.C(colID).Eq(itemID), goqu.C(colTotalCopies).Gte(availableCopies))

	sqlQuery, err := t.store.toSQL(ctx, ds)
	if err != nil {
		return err
	}

	rowsAffected, err := t.store.exec(ctx, t.dbTx, sqlQuery, actionUpdateCopies)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return loanstore.ErrCopiesOutOfRange
	}

	return nil
}

// InsertLoan leaves return_date NULL; the database assigns the id.
func (t *pgTx) InsertLoan(ctx context.Context, loan loanstore.Loan) (loanstore.Loan, error) {
	t.statements++

	ds := t.store.dialect().Insert(t.store.loansTable).
		Rows(goqu.Record{
			colMemberID:   loan.MemberID,
			colItemID:     loan.ItemID,
			colBorrowDate: loan.BorrowDate.UTC(),
			colDueDate:    loan.DueDate.UTC(),
		}).
		Returning(colID)

	sqlQuery, err := t.store.toSQL(ctx, ds)
	if err != nil {
		return loanstore.Loan{}, err
	}

	rows, err := t.store.query(ctx, t.dbTx, sqlQuery, actionInsertLoan)
	if err != nil {
		return loanstore.Loan{}, err
	}
	defer t.store.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return loanstore.Loan{}, t.store.classify(ErrExecutingStatementFailed, rowsErr)
		}

		return loanstore.Loan{}, errors.Join(ErrExecutingStatementFailed, errors.New("insert returned no id"))
	}

	if scanErr := rows.Scan(&loan.ID); scanErr != nil {
		t.store.logError(ctx, logMsgScanRowFailed, scanErr)
		return loanstore.Loan{}, errors.Join(ErrScanningDBRowFailed, scanErr)
	}

	loan.ReturnDate = nil

	return loan, nil
}

func (t *pgTx) LockLoan(ctx context.Context, loanID int64) (loanstore.Loan, error) {
	t.statements++

	ds := t.store.dialect().From(t.store.loansTable).
		Select(loanColumns()...).
		Where(goqu.C(colID).Eq(loanID)).
		ForUpdate(exp.Wait)

	sqlQuery, err := t.store.toSQL(ctx, ds)
	if err != nil {
		return loanstore.Loan{}, err
	}

	rows, err := t.store.query(ctx, t.dbTx, sqlQuery, actionSelectLoans)
	if err != nil {
		return loanstore.Loan{}, err
	}
	defer t.store.closeRows(ctx, rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return loanstore.Loan{}, t.store.classify(ErrQueryingFailed, rowsErr)
		}

		return loanstore.Loan{}, loanstore.ErrLoanNotFound
	}

	return t.store.scanLoan(ctx, rows)
}

// MarkLoanReturned only updates an active loan; an unknown or already returned loan yields ErrLoanNotFound.
func (t *pgTx) MarkLoanReturned(ctx context.Context, loanID int64, returnDate time.Time) error {
	t.statements++

	ds := t.store.dialect().Update(t.store.loansTable).
		Set(goqu.Record{colReturnDate: returnDate.UTC()}).
		Where(goqu.C(colID).Eq(loanID), goqu.C(colReturnDate).IsNull())

	sqlQuery, err := t.store.toSQL(ctx, ds)
	if err != nil {
		return err
	}

	rowsAffected, err := t.store.exec(ctx, t.dbTx, sqlQuery, actionMarkLoanReturned)
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return loanstore.ErrLoanNotFound
	}

	return nil
}
