// cmd/api/handlers.go
// This file contains the staff book management handlers. Each handler is
// wrapped in requireStaff and receives the staff capability it passes on to
// the circulation service.
package main

import (
	"fmt"
	"net/http"

	"github.com/aoideee/libmgs/internal/circulation"
	"github.com/aoideee/libmgs/internal/data"
)

// bookFormFields describes the add and edit forms to clients.
var bookFormFields = []envelope{
	{"name": "title", "type": "text", "required": true, "max_length": 255},
	{"name": "author", "type": "text", "required": true, "max_length": 255},
	{"name": "isbn", "type": "text", "required": true, "length": 13},
	{"name": "genre", "type": "text", "required": true, "max_length": 100},
	{"name": "total_copies", "type": "integer", "required": false, "default": 1},
	{"name": "available_copies", "type": "integer", "required": false, "default": 1},
	{"name": "cover_image_url", "type": "url", "required": false},
}

// listBooksHandler handles GET /books/manage/.
// Supports ?page=, ?page_size= and ?sort= (title, author, genre or
// available_copies, prefixed with "-" for descending).
func (app *applicationDependencies) listBooksHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	books, metadata, err := app.service.ListBooks(r.Context(), staff, app.readFilters(r.URL.Query()))
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"books": books, "metadata": metadata}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// addBookFormHandler handles GET /books/add/.
func (app *applicationDependencies) addBookFormHandler(w http.ResponseWriter, r *http.Request, _ circulation.Staff) {
	err := app.writeJSON(w, http.StatusOK, envelope{"form": envelope{"action": "/books/add/", "fields": bookFormFields}}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// createBookHandler handles POST /books/add/ and responds 201 with the new
// book. A taken ISBN is a 409.
func (app *applicationDependencies) createBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	var input data.BookInput

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	book, err := app.service.AddBook(r.Context(), staff, input)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	headers := make(http.Header)
	headers.Set("Location", fmt.Sprintf("/books/edit/%d/", book.ID))

	err = app.writeJSON(w, http.StatusCreated, envelope{"book": book, "message": "Book added."}, headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// showBookHandler handles GET /books/edit/:id/ and returns the current values.
func (app *applicationDependencies) showBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	book, err := app.service.GetBook(r.Context(), staff, id)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"book": book, "form": envelope{"action": fmt.Sprintf("/books/edit/%d/", id), "fields": bookFormFields}}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// updateBookHandler handles POST /books/edit/:id/. The body replaces every
// editable field; omitted copy counts fall back to 1.
func (app *applicationDependencies) updateBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	var input data.BookInput
	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	book, err := app.service.EditBook(r.Context(), staff, id, input)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"book": book, "message": "Book updated."}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// confirmDeleteBookHandler handles GET /books/delete/:id/.
func (app *applicationDependencies) confirmDeleteBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	book, err := app.service.GetBook(r.Context(), staff, id)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	confirm := fmt.Sprintf("Are you sure you want to delete %q? Its loan history is deleted with it.", book.Title)
	err = app.writeJSON(w, http.StatusOK, envelope{"book": book, "confirm": confirm}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// deleteBookHandler handles POST /books/delete/:id/.
func (app *applicationDependencies) deleteBookHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	id, err := app.readIDParam(r)
	if err != nil {
		app.notFoundResponse(w, r)
		return
	}

	err = app.service.DeleteBook(r.Context(), staff, id)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"message": "book successfully deleted"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
