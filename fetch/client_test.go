package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body><form id="loginForm"></form></body></html>`

// portalStub mimics the session behavior: pages render the login form
// until a login POST sets the session cookie.
type portalStub struct {
	mux        *http.ServeMux
	logins     int
	gridServes int
}

func newPortalStub() *portalStub {
	p := &portalStub{mux: http.NewServeMux()}

	p.mux.HandleFunc("/login.aspx", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("username") != "watch" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		p.logins++
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok"})
	})

	p.mux.HandleFunc("/schedule.aspx", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			w.Write([]byte(loginPage))
			return
		}
		p.gridServes++
		w.Write([]byte(`<table id="gridAvail">day ` + r.URL.Query().Get("date") + `</table>`))
	})

	p.mux.HandleFunc("/stationdisplay.aspx", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			w.Write([]byte(loginPage))
			return
		}
		w.Write([]byte(`<table id="gvOnDuty"></table>`))
	})

	return p
}

func newTestClient(t *testing.T, srv *httptest.Server, user string) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, Credentials{Username: user, Password: "x"}, zerolog.Nop())
	require.NoError(t, err)
	return c
}

func TestGridHTML_EstablishesSessionLazily(t *testing.T) {
	stub := newPortalStub()
	srv := httptest.NewServer(stub.mux)
	defer srv.Close()

	c := newTestClient(t, srv, "watch")
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	html, err := c.GridHTML(context.Background(), day)
	require.NoError(t, err)
	require.Contains(t, html, "02/03/2026", "date travels in DD/MM/YYYY")
	require.Equal(t, 1, stub.logins, "first fetch triggers exactly one login")
	require.Equal(t, 1, stub.gridServes)
}

func TestGridHTML_ReusesSession(t *testing.T) {
	stub := newPortalStub()
	srv := httptest.NewServer(stub.mux)
	defer srv.Close()

	c := newTestClient(t, srv, "watch")
	ctx := context.Background()
	day := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	_, err := c.GridHTML(ctx, day)
	require.NoError(t, err)
	_, err = c.GridHTML(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Equal(t, 1, stub.logins, "cookie jar keeps the session alive")
}

func TestGridHTML_BadCredentials(t *testing.T) {
	stub := newPortalStub()
	srv := httptest.NewServer(stub.mux)
	defer srv.Close()

	c := newTestClient(t, srv, "wrong")
	_, err := c.GridHTML(context.Background(), time.Now())
	require.Error(t, err)
	require.Contains(t, err.Error(), "login rejected")
}

func TestGetWithSession_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "watch")
	body, err := c.getWithSession(context.Background(), srv.URL+"/x")
	require.NoError(t, err)
	require.Equal(t, "recovered", body)
	require.Equal(t, 3, attempts)
}

func TestGetWithSession_ClientErrorIsTerminal(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, "watch")
	_, err := c.getWithSession(context.Background(), srv.URL+"/x")
	require.Error(t, err)
	require.Equal(t, 1, attempts, "4xx is not retried")
}

func TestStationDisplayHTML(t *testing.T) {
	stub := newPortalStub()
	srv := httptest.NewServer(stub.mux)
	defer srv.Close()

	c := newTestClient(t, srv, "watch")
	html, err := c.StationDisplayHTML(context.Background())
	require.NoError(t, err)
	require.Contains(t, html, "gvOnDuty")
}
