package main

import (
	"net/http"

	"github.com/aoideee/libmgs/internal/circulation"
)

// catalogHandler handles GET /?q=. A blank or missing q lists the whole
// catalog by title.
func (app *applicationDependencies) catalogHandler(w http.ResponseWriter, r *http.Request) {
	query := app.readString(r.URL.Query(), "q", "")

	books, err := app.service.Search(r.Context(), query)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"books": books, "query": query}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// healthcheckHandler handles GET /healthcheck/.
func (app *applicationDependencies) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	env := envelope{
		"status": "available",
		"system_info": envelope{
			"environment": app.config.environment,
			"version":     appVersion,
		},
	}

	err := app.writeJSON(w, http.StatusOK, env, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// dashboardHandler handles GET /dashboard/. Staff are sent on to the staff
// dashboard; members see their own loans.
func (app *applicationDependencies) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	user := app.contextGetUser(r)
	if user.IsStaff {
		http.Redirect(w, r, "/admin-dashboard/", http.StatusSeeOther)
		return
	}

	dashboard, err := app.service.MemberDashboard(r.Context(), user)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"member": dashboard.Member, "transactions": dashboard.Transactions}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// adminDashboardHandler handles GET /admin-dashboard/.
func (app *applicationDependencies) adminDashboardHandler(w http.ResponseWriter, r *http.Request, staff circulation.Staff) {
	summary, err := app.service.StaffDashboard(r.Context(), staff)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, envelope{"summary": summary}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
