package main

import (
	"net/http"

	"github.com/aoideee/libmgs/internal/circulation"
)

// signupFormHandler handles GET /signup/.
func (app *applicationDependencies) signupFormHandler(w http.ResponseWriter, r *http.Request) {
	form := envelope{
		"action": "/signup/",
		"fields": []envelope{
			{"name": "username", "type": "text", "required": true, "max_length": 150},
			{"name": "email", "type": "email", "required": true},
			{"name": "first_name", "type": "text", "required": false, "max_length": 150},
			{"name": "last_name", "type": "text", "required": false, "max_length": 150},
			{"name": "password", "type": "password", "required": true, "min_length": 8},
			{"name": "password_confirm", "type": "password", "required": true},
			{"name": "phone_number", "type": "text", "required": true, "max_length": 15},
			{"name": "address", "type": "textarea", "required": true},
		},
	}

	err := app.writeJSON(w, http.StatusOK, envelope{"form": form}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// signupHandler handles POST /signup/. On success the new member is signed
// in: the token is returned in the body and set as the session cookie.
func (app *applicationDependencies) signupHandler(w http.ResponseWriter, r *http.Request) {
	var input circulation.SignupRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	session, err := app.service.SignUp(r.Context(), input)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	app.setSessionCookie(w, session.Token)
	err = app.writeJSON(w, http.StatusCreated, envelope{
		"user":                 session.User,
		"member":               session.Member,
		"authentication_token": session.Token,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// loginHandler handles POST /accounts/login/.
func (app *applicationDependencies) loginHandler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	session, err := app.service.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		app.circulationErrorResponse(w, r, err)
		return
	}

	app.setSessionCookie(w, session.Token)
	err = app.writeJSON(w, http.StatusCreated, envelope{
		"user":                 session.User,
		"authentication_token": session.Token,
	}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// logoutHandler handles POST /accounts/logout/ and ends every session of
// the caller.
func (app *applicationDependencies) logoutHandler(w http.ResponseWriter, r *http.Request) {
	err := app.service.Logout(r.Context(), app.contextGetUser(r))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	app.clearSessionCookie(w)
	err = app.writeJSON(w, http.StatusOK, envelope{"message": "you have been logged out"}, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
