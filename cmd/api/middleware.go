// cmd/api/middleware.go
// This file contains HTTP middleware used to wrap the router and individual
// handlers.
package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aoideee/libmgs/internal/circulation"
	"github.com/aoideee/libmgs/internal/data"
)

// sessionCookie is the cookie a browser client carries its session token in.
const sessionCookie = "session_token"

// recoverPanic catches any runtime panic that occurs in a downstream handler
// and turns it into a 500 response instead of a dropped connection.
func (app *applicationDependencies) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// client holds a per-IP rate limiter and the time it was last seen.
// lastSeen lets us evict old entries so the map does not grow forever.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimit implements per-IP token-bucket rate limiting using
// golang.org/x/time/rate, sized by the -limiter-rps and -limiter-burst flags.
// A background goroutine cleans up entries not seen in 3 minutes.
func (app *applicationDependencies) rateLimit(next http.Handler) http.Handler {
	if !app.config.limiter.enabled {
		return next
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
	)

	go func() {
		for {
			time.Sleep(time.Minute)
			mu.Lock()
			for ip, c := range clients {
				if time.Since(c.lastSeen) > 3*time.Minute {
					delete(clients, ip)
				}
			}
			mu.Unlock()
		}
	}()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		mu.Lock()
		if _, found := clients[ip]; !found {
			clients[ip] = &client{
				limiter: rate.NewLimiter(rate.Limit(app.config.limiter.rps), app.config.limiter.burst),
			}
		}
		clients[ip].lastSeen = time.Now()

		if !clients[ip].limiter.Allow() {
			mu.Unlock()
			app.rateLimitExceededResponse(w, r)
			return
		}
		mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the session token from the Authorization header or,
// failing that, the session cookie. Requests without one continue as
// data.AnonymousUser; a bad token is rejected outright.
func (app *applicationDependencies) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		token, fromCookie, ok := sessionToken(r)
		if !ok {
			app.invalidAuthenticationTokenResponse(w, r)
			return
		}
		if token == "" {
			next.ServeHTTP(w, app.contextSetUser(r, data.AnonymousUser))
			return
		}

		user, err := app.service.Authenticate(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, circulation.ErrInvalidCredentials) && fromCookie:
				// A cookie left behind by an expired or logged-out session
				// must not lock the browser out of public pages.
				app.clearSessionCookie(w)
				next.ServeHTTP(w, app.contextSetUser(r, data.AnonymousUser))
			case errors.Is(err, circulation.ErrInvalidCredentials):
				app.invalidAuthenticationTokenResponse(w, r)
			default:
				app.serverErrorResponse(w, r, err)
			}
			return
		}

		next.ServeHTTP(w, app.contextSetUser(r, user))
	})
}

// sessionToken returns the presented token, "" when there is none, and
// ok false for a malformed Authorization header. fromCookie reports whether
// the token came from the session cookie.
func sessionToken(r *http.Request) (token string, fromCookie, ok bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, found := strings.Cut(header, " ")
		if !found || scheme != "Bearer" || token == "" {
			return "", false, false
		}
		return token, false, true
	}
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		return cookie.Value, true, true
	}
	return "", false, true
}

func (app *applicationDependencies) requireAuthenticatedUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if app.contextGetUser(r).IsAnonymous() {
			app.authenticationRequiredResponse(w, r)
			return
		}
		next(w, r)
	}
}

// requireStaff hands the staff capability to next. Anonymous callers get a
// 401 and member accounts a 403.
func (app *applicationDependencies) requireStaff(next func(http.ResponseWriter, *http.Request, circulation.Staff)) http.HandlerFunc {
	return app.requireAuthenticatedUser(func(w http.ResponseWriter, r *http.Request) {
		staff, err := circulation.Authorize(app.contextGetUser(r))
		if err != nil {
			app.staffRequiredResponse(w, r)
			return
		}
		next(w, r, staff)
	})
}
