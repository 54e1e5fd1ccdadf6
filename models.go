package main

import "time"

// loginRequest is the body of POST /auth/login
type loginRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

// loginResponse carries the access token and the refresh token that
// replaces any previous one.
type loginResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refreshToken"`
	Expiration   time.Time `json:"expiration"`
}

// tokenPair is both the request and the response of POST /auth/refresh-token
type tokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type userRoleRequest struct {
	Email    string `json:"email"`
	RoleName string `json:"roleName"`
}

// tokenInfo is what GET /auth/validate reports about the caller's token.
type tokenInfo struct {
	Valid bool     `json:"valid"`
	Name  string   `json:"name"`
	Email string   `json:"email,omitempty"`
	JTI   string   `json:"jti,omitempty"`
	Roles []string `json:"roles"`
}
