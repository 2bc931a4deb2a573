// Package main provides authentication for the NestDB TCP server.
package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthConfig configures server authentication.
type AuthConfig struct {
	// Enabled enables authentication. If false, connections run anonymously.
	Enabled bool

	// JWTSecret is the shared secret for HS256 JWT validation.
	JWTSecret string

	// Issuer is the expected "iss" claim in JWTs.
	Issuer string

	// Audience is the expected "aud" claim in JWTs (optional).
	Audience string

	// NameClaim is the JWT claim for the user's name (default: "name").
	NameClaim string

	// EmailClaim is the JWT claim for the user's email (default: "email").
	EmailClaim string
}

// identity is who a connection authenticated as.
type identity struct {
	Name  string
	Email string
}

func (id identity) String() string {
	if id.Email == "" {
		return id.Name
	}
	return fmt.Sprintf("%s <%s>", id.Name, id.Email)
}

// ConnectionState tracks per-connection session state: authentication plus
// the connection's own database context.
type ConnectionState struct {
	identity      *identity
	authenticated bool
	tokenExpiry   time.Time

	// database is this connection's active database; a USE on one
	// connection never leaks into another
	database string
}

// IsAuthenticated returns true if the connection has been authenticated.
func (cs *ConnectionState) IsAuthenticated() bool {
	return cs.authenticated
}

// Identity returns the connection's identity, or nil if not authenticated.
func (cs *ConnectionState) Identity() *identity {
	return cs.identity
}

// validateJWT checks the token signature and claims against the server's
// auth config and returns the identity it asserts.
func (s *Server) validateJWT(tokenString string) (identity, time.Time, error) {
	var none identity
	cfg := s.authConfig
	if cfg == nil {
		return none, time.Time{}, errors.New("authentication not configured")
	}

	keyfunc := func(token *jwt.Token) (interface{}, error) {
		if cfg.JWTSecret == "" {
			return nil, errors.New("no JWT secret configured")
		}
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}
	token, err := jwt.Parse(tokenString, keyfunc,
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return none, time.Time{}, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return none, time.Time{}, errors.New("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return none, time.Time{}, errors.New("invalid token claims")
	}

	if err := cfg.checkIssuer(claims); err != nil {
		return none, time.Time{}, err
	}
	if err := cfg.checkAudience(claims); err != nil {
		return none, time.Time{}, err
	}

	id, err := cfg.identityFromClaims(claims)
	if err != nil {
		return none, time.Time{}, err
	}

	var expiresAt time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	return id, expiresAt, nil
}

func (cfg *AuthConfig) checkIssuer(claims jwt.MapClaims) error {
	if cfg.Issuer == "" {
		return nil
	}
	issuer, _ := claims.GetIssuer()
	if issuer != cfg.Issuer {
		return fmt.Errorf("invalid issuer: expected %s, got %s", cfg.Issuer, issuer)
	}
	return nil
}

func (cfg *AuthConfig) checkAudience(claims jwt.MapClaims) error {
	if cfg.Audience == "" {
		return nil
	}
	audiences, _ := claims.GetAudience()
	for _, aud := range audiences {
		if aud == cfg.Audience {
			return nil
		}
	}
	return fmt.Errorf("invalid audience: expected %s", cfg.Audience)
}

func (cfg *AuthConfig) identityFromClaims(claims jwt.MapClaims) (identity, error) {
	nameClaim := cfg.NameClaim
	if nameClaim == "" {
		nameClaim = "name"
	}
	emailClaim := cfg.EmailClaim
	if emailClaim == "" {
		emailClaim = "email"
	}

	name, _ := claims[nameClaim].(string)
	email, _ := claims[emailClaim].(string)
	if name == "" && email == "" {
		return identity{}, fmt.Errorf("token missing identity claims (%s or %s)", nameClaim, emailClaim)
	}
	return identity{Name: name, Email: email}, nil
}

// parseAuthCommand parses an AUTH command and returns the auth type and token.
// Supported formats:
//   - AUTH JWT <token>
func parseAuthCommand(line string) (authType, token string, err error) {
	line = strings.TrimSpace(line)

	if !strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
		return "", "", errors.New("not an AUTH command")
	}

	parts := strings.Fields(line)
	if len(parts) < 3 {
		return "", "", errors.New("invalid AUTH command: expected AUTH <type> <credentials>")
	}

	authType = strings.ToUpper(parts[1])
	token = parts[2]

	switch authType {
	case "JWT":
		return authType, token, nil
	default:
		return "", "", fmt.Errorf("unsupported auth type: %s", authType)
	}
}

// handleAuth processes an AUTH command and returns the response.
func (s *Server) handleAuth(line string, state *ConnectionState) Response {
	authType, token, err := parseAuthCommand(line)
	if err != nil {
		return Response{Success: false, Type: "auth", Error: err.Error()}
	}

	switch authType {
	case "JWT":
		id, expiresAt, err := s.validateJWT(token)
		if err != nil {
			return Response{Success: false, Type: "auth", Error: err.Error()}
		}

		state.identity = &id
		state.authenticated = true
		state.tokenExpiry = expiresAt

		ar := &AuthResponse{
			Authenticated: true,
			Identity:      id.String(),
		}
		if !expiresAt.IsZero() {
			ar.ExpiresIn = int(time.Until(expiresAt).Seconds())
		}
		return Response{Success: true, Type: "auth", Auth: ar}

	default:
		return Response{Success: false, Type: "auth", Error: fmt.Sprintf("unsupported auth type: %s", authType)}
	}
}
