package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	incidentdomainerrors "reefwatch/contexts/incident-tracking/incident-service/domain/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleIncidentRead  = "INCIDENT_READ"
	RoleIncidentWrite = "INCIDENT_WRITE"
)

type accessClaims struct {
	PreferredUsername string   `json:"preferred_username"`
	OrganizationID    string   `json:"organization_id"`
	Roles             []string `json:"roles"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller identity threaded into handlers.
type Principal struct {
	Username       string
	OrganizationID string
	Roles          []string
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Authenticator validates HS256 bearer tokens. A nil Authenticator disables
// auth entirely; every request then runs as the anonymous principal with
// full access, which is the local-development mode.
type Authenticator struct {
	signingKey []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	if strings.TrimSpace(signingKey) == "" {
		return nil
	}
	return &Authenticator{signingKey: []byte(signingKey)}
}

func (a *Authenticator) Authenticate(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return Principal{}, errors.New("missing bearer token")
	}
	raw := strings.TrimPrefix(header, "Bearer ")

	parsed, err := jwt.ParseWithClaims(raw, &accessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return a.signingKey, nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, errors.New("invalid token")
	}

	claims, ok := parsed.Claims.(*accessClaims)
	if !ok {
		return Principal{}, errors.New("invalid token claims")
	}
	username := strings.TrimSpace(claims.PreferredUsername)
	if username == "" {
		username = strings.TrimSpace(claims.Subject)
	}
	return Principal{
		Username:       username,
		OrganizationID: strings.TrimSpace(claims.OrganizationID),
		Roles:          claims.Roles,
	}, nil
}

func (s *Server) withRole(role string, next func(http.ResponseWriter, *http.Request, Principal)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			next(w, r, Principal{
				Username: "anonymous",
				Roles:    []string{RoleIncidentRead, RoleIncidentWrite},
			})
			return
		}

		principal, err := s.auth.Authenticate(r)
		if err != nil {
			writeIncidentDomainError(w, fmt.Errorf("%w: %v", incidentdomainerrors.ErrUnauthorized, err))
			return
		}
		if !principal.HasRole(role) {
			writeIncidentDomainError(w, fmt.Errorf("%w %s", incidentdomainerrors.ErrForbidden, role))
			return
		}
		next(w, r, principal)
	}
}
