// cmd/api/routes.go
package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// routes registers all HTTP endpoints and returns the router wrapped in the
// middleware chain.
//
// Middleware chain (outermost → innermost):
//
//	recoverPanic → rateLimit → authenticate → router
//
// Staff-only handlers are additionally wrapped in requireStaff, which
// passes them the circulation.Staff capability.
func (app *applicationDependencies) routes() http.Handler {
	router := httprouter.New()

	router.NotFound = http.HandlerFunc(app.notFoundResponse)
	router.MethodNotAllowed = http.HandlerFunc(app.methodNotAllowedResponse)

	// Public
	router.HandlerFunc(http.MethodGet, "/", app.catalogHandler)
	router.HandlerFunc(http.MethodGet, "/healthcheck/", app.healthcheckHandler)
	router.HandlerFunc(http.MethodGet, "/signup/", app.signupFormHandler)
	router.HandlerFunc(http.MethodPost, "/signup/", app.signupHandler)
	router.HandlerFunc(http.MethodPost, "/accounts/login/", app.loginHandler)

	// Any signed-in account
	router.HandlerFunc(http.MethodPost, "/accounts/logout/", app.requireAuthenticatedUser(app.logoutHandler))
	router.HandlerFunc(http.MethodGet, "/dashboard/", app.requireAuthenticatedUser(app.dashboardHandler))

	// Staff
	router.HandlerFunc(http.MethodGet, "/admin-dashboard/", app.requireStaff(app.adminDashboardHandler))
	router.HandlerFunc(http.MethodGet, "/issue/", app.requireStaff(app.issueFormHandler))
	router.HandlerFunc(http.MethodPost, "/issue/", app.requireStaff(app.issueBookHandler))
	router.HandlerFunc(http.MethodPost, "/return/:id/", app.requireStaff(app.returnBookHandler))
	router.HandlerFunc(http.MethodGet, "/transactions/", app.requireStaff(app.activeLoansHandler))

	router.HandlerFunc(http.MethodGet, "/books/manage/", app.requireStaff(app.listBooksHandler))
	router.HandlerFunc(http.MethodGet, "/books/add/", app.requireStaff(app.addBookFormHandler))
	router.HandlerFunc(http.MethodPost, "/books/add/", app.requireStaff(app.createBookHandler))
	router.HandlerFunc(http.MethodGet, "/books/edit/:id/", app.requireStaff(app.showBookHandler))
	router.HandlerFunc(http.MethodPost, "/books/edit/:id/", app.requireStaff(app.updateBookHandler))
	router.HandlerFunc(http.MethodGet, "/books/delete/:id/", app.requireStaff(app.confirmDeleteBookHandler))
	router.HandlerFunc(http.MethodPost, "/books/delete/:id/", app.requireStaff(app.deleteBookHandler))

	// recoverPanic is outermost so it catches panics from everything below.
	return app.recoverPanic(app.rateLimit(app.authenticate(router)))
}
