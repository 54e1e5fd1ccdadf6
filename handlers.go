package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/example/apicatalog/internal/account"
	"github.com/example/apicatalog/internal/token"
)

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}

func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	tok, err := a.Sessions.Login(r.Context(), in.UserName, in.Password)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: tok.AccessToken, RefreshToken: tok.RefreshToken, Expiration: tok.Expiration})
}

func (a *App) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in account.Registration
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	_, err := a.Accounts.Register(r.Context(), in)
	switch {
	case errors.Is(err, account.ErrExists):
		writeStatus(w, http.StatusConflict, "Error", "User already exists!")
	case errors.Is(err, account.ErrInvalidInput):
		a.writeServiceError(w, r, err)
	case err != nil:
		a.Logger.ErrorContext(r.Context(), "user creation failed", "user", in.UserName, "err", err)
		writeStatus(w, http.StatusInternalServerError, "Error", "User creation failed.")
	default:
		writeStatus(w, http.StatusOK, "Success", "User created successfully!")
	}
}

func (a *App) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var in tokenPair
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid client request")
		return
	}
	if in.AccessToken == "" || in.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Access token and refresh token are required")
		return
	}
	tok, err := a.Sessions.Refresh(r.Context(), in.AccessToken, in.RefreshToken)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken})
}

func (a *App) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	err := a.Sessions.Revoke(r.Context(), username)
	switch {
	case errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid username")
	case err != nil:
		a.writeServiceError(w, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// roleInput reads the role request from the JSON body, falling back to the
// query string. A body that is not valid JSON is an error.
func roleInput(w http.ResponseWriter, r *http.Request) (userRoleRequest, error) {
	var in userRoleRequest
	if r.ContentLength != 0 {
		if err := decode(w, r, &in); err != nil && !errors.Is(err, io.EOF) {
			return in, err
		}
	}
	q := r.URL.Query()
	if in.RoleName == "" {
		in.RoleName = q.Get("roleName")
	}
	if in.Email == "" {
		in.Email = q.Get("email")
	}
	return in, nil
}

func (a *App) HandleCreateRole(w http.ResponseWriter, r *http.Request) {
	in, err := roleInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	err = a.Accounts.CreateRole(r.Context(), in.RoleName)
	switch {
	case errors.Is(err, account.ErrInvalidInput):
		writeStatus(w, http.StatusBadRequest, "Error", "Role name is required.")
	case errors.Is(err, account.ErrExists):
		writeStatus(w, http.StatusBadRequest, "Error", "Role already exists")
	case err != nil:
		a.Logger.ErrorContext(r.Context(), "role creation failed", "role", in.RoleName, "err", err)
		writeStatus(w, http.StatusBadRequest, "Error", "Issue adding the new "+in.RoleName+" role")
	default:
		writeStatus(w, http.StatusOK, "Success", "Role "+in.RoleName+" added successfully")
	}
}

func (a *App) HandleAddUserToRole(w http.ResponseWriter, r *http.Request) {
	in, err := roleInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	id, err := a.Accounts.AddUserToRole(r.Context(), in.Email, in.RoleName)
	switch {
	case errors.Is(err, account.ErrNotFound):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Unable to find user")
	case err != nil:
		if !errors.Is(err, account.ErrRoleNotFound) {
			a.Logger.ErrorContext(r.Context(), "adding user to role failed", "email", in.Email, "role", in.RoleName, "err", err)
		}
		writeStatus(w, http.StatusBadRequest, "Error", "Unable to add user "+in.Email+" to the "+in.RoleName+" role")
	default:
		writeStatus(w, http.StatusOK, "Success", "User "+id.Email+" added to the "+in.RoleName+" role")
	}
}

// HandleTokenValidate reports the claims of the bearer token BearerAuth
// already accepted.
func (a *App) HandleTokenValidate(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	email, _ := claims.First(token.ClaimEmail)
	jti, _ := claims.First(token.ClaimJTI)
	roles := claims.Roles()
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, tokenInfo{Valid: true, Name: claims.Name(), Email: email, JTI: jti, Roles: roles})
}
