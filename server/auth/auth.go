// Package auth issues and checks the bearer tokens that guard the websocket
// endpoint. Accounts live in the profiles table of the row store.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spacedan/server/store"
	"spacedan/shared/logging"
	"spacedan/shared/protocol"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

const tokenTTL = 24 * time.Hour

// Identity is what a valid token resolves to.
type Identity struct {
	UserID   string
	Username string
}

type ctxKey struct{}

// FromContext returns the identity RequireAuth attached to the request.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

type Auth struct {
	db     *store.DB
	jwtKey []byte
	issuer string
	log    zerolog.Logger
}

// NewAuth loads the signing key from keyPath, generating one on first start.
func NewAuth(db *store.DB, keyPath string) (*Auth, error) {
	_ = os.MkdirAll(filepath.Dir(keyPath), 0o755)
	key, err := os.ReadFile(keyPath)
	if err != nil || len(key) < 32 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, err
		}
	}
	return &Auth{db: db, jwtKey: key, issuer: "space-dan", log: logging.For("auth")}, nil
}

func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req protocol.RegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < 6 || req.Password != req.PasswordConfirm {
		http.Error(w, "invalid username or password mismatch / too short", http.StatusBadRequest)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "hash failed", http.StatusInternalServerError)
		return
	}
	p, err := a.db.CreateProfile(r.Context(), req.Username, string(hash), protocol.StartingBalance)
	if errors.Is(err, store.ErrUsernameUsed) {
		http.Error(w, "username already exists", http.StatusConflict)
		return
	}
	if err != nil {
		a.log.Error().Err(err).Msg("register failed")
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	a.log.Info().Str("user", p.Username).Str("id", p.ID).Msg("registered")
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(protocol.RegisterResp{OK: true})
}

func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req protocol.LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	p, hash, err := a.db.ProfileByUsername(r.Context(), req.Username)
	if err != nil || bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		a.log.Warn().Str("user", req.Username).Msg("login rejected")
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	signed, err := a.Issue(p.ID, p.Username)
	if err != nil {
		http.Error(w, "token failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(protocol.LoginResp{Token: signed, Username: p.Username, Profile: *p})
}

// Issue signs a token for a profile.
func (a *Auth) Issue(userID, username string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": username,
		"iss":  a.issuer,
		"iat":  now.Unix(),
		"exp":  now.Add(tokenTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtKey)
}

func (a *Auth) ParseToken(tok string) (Identity, error) {
	if tok == "" {
		return Identity{}, ErrMissingToken
	}
	t, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		return a.jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(a.issuer))
	if err != nil || !t.Valid {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	if sub == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: sub, Username: name}, nil
}

// RequireAuth accepts a bearer header or a token query parameter (browsers
// cannot set headers on websocket upgrades).
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var tok string
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			tok = strings.TrimPrefix(h, "Bearer ")
		} else {
			tok = r.URL.Query().Get("token")
		}
		id, err := a.ParseToken(tok)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}
