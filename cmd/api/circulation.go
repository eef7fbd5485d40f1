package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aoideee/libmgs/internal/circulation"
)

// issueFormHandler handles GET /issue/.
func (app *applicationDependencies) issueFormHandler(w http.ResponseWriter, r *http.Request, _ circulation.Staff) {
	form := envelope{
		"action": "/issue/",
		"fields": []envelope{
			{"name": "isbn", "type": "text", "required": true, "max_length": 13},
			{"name": "membership_id", "type": "text", "required": true},
			{"name": "expected_return_date", "type": "datetime", "required": false},
		},
		"default_loan_days": app.config.circulation.loanDays,
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"form": form}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// issueBookHandler handles POST /issue/. An unknown ISBN or membership ID is
// a 404 and a book with no copies left a 409.
func (app *applicationDependencies) issueBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	var input circulation.IssueRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	txn, err := app.service.IssueBook(r.Context(), staff, input)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	message := fmt.Sprintf("Book '%s' issued to member %s.", txn.BookTitle, txn.MembershipID)
	err = app.writeJSON(w, http.StatusCreated, envelope{"transaction": txn, "message": message}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// returnBookHandler handles POST /return/:id/. Returning a loan twice is not
// an error: the second call answers 200 with a warning and changes nothing.
func (app *applicationDependencies) returnBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	txn, err := app.service.ReturnBook(r.Context(), staff, id)
	switch {
	case errors.Is(err, circulation.ErrAlreadyReturned):
		err = app.writeJSON(w, http.StatusOK, envelope{"transaction": txn, "warning": "This book has already been returned."}, nil)
	case err != nil:
		app.circulationErrorResponse(w, r, err)
		return
	default:
		message := fmt.Sprintf("Book returned. Fine: $%s", txn.FineAmount.StringFixed(2))
		err = app.writeJSON(w, http.StatusOK, envelope{"transaction": txn, "message": message}, nil)
	}
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// activeLoansHandler handles GET /transactions/.
func (app *applicationDependencies) activeLoansHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	txns, err := app.service.ActiveLoans(r.Context(), staff)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"transactions": txns}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
