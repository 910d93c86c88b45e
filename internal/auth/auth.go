package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/example/takeover-week/internal/apperr"
	"github.com/example/takeover-week/internal/db"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/bcrypt"
)

// Admins looks up and stores dashboard accounts.
type Admins interface {
	Create(ctx context.Context, username, passwordHash string) (uuid.UUID, error)
	Credentials(ctx context.Context, username string) (id uuid.UUID, passwordHash string, err error)
}

type Store struct {
	sc     *securecookie.SecureCookie
	admins Admins
}

type ctxKey string

const adminIDKey ctxKey = "adminID"

const sessionTTL = 12 * time.Hour

func NewStore(admins Admins, hashKey, blockKey []byte) *Store {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(int(sessionTTL.Seconds()))
	return &Store{sc: sc, admins: admins}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func CheckPassword(hash, pw string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	return err == nil
}

func (s *Store) CreateAdmin(ctx context.Context, username, password string) (uuid.UUID, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 8 {
		return uuid.Nil, apperr.Validation("username is required and password must be at least 8 characters")
	}
	hash, err := HashPassword(password)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := s.admins.Create(ctx, username, hash)
	if db.IsUniqueViolation(err) {
		return uuid.Nil, apperr.Conflict("admin %q already exists", username)
	}
	return id, err
}

// Authenticate returns the admin id for valid credentials. Unknown users and
// wrong passwords yield the same auth error.
func (s *Store) Authenticate(ctx context.Context, username, password string) (uuid.UUID, error) {
	id, hash, err := s.admins.Credentials(ctx, strings.TrimSpace(username))
	if err != nil {
		if db.IsNotFound(err) {
			return uuid.Nil, apperr.Auth("Invalid username or password")
		}
		return uuid.Nil, err
	}
	if !CheckPassword(hash, password) {
		return uuid.Nil, apperr.Auth("Invalid username or password")
	}
	return id, nil
}

type Session struct {
	AdminID uuid.UUID
}

const cookieName = "takeover_admin"

func (s *Store) SetSession(w http.ResponseWriter, r *http.Request, adminID uuid.UUID) error {
	val := map[string]string{"uid": adminID.String()}
	encoded, err := s.sc.Encode(cookieName, val)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https",
		MaxAge:   int(sessionTTL.Seconds()),
	})
	return nil
}

func (s *Store) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func (s *Store) GetSession(r *http.Request) (Session, bool) {
	c, err := r.Cookie(cookieName)
	if err != nil {
		return Session{}, false
	}
	val := map[string]string{}
	if err := s.sc.Decode(cookieName, c.Value, &val); err != nil {
		return Session{}, false
	}
	id, err := uuid.Parse(val["uid"])
	if err != nil || id == uuid.Nil {
		return Session{}, false
	}
	return Session{AdminID: id}, true
}

// RequireAuth rejects requests without a valid session cookie. The rejection
// is written by onFail so the caller controls the response format.
func (s *Store) RequireAuth(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := s.GetSession(r)
			if !ok {
				onFail(w, r, apperr.Auth("Unauthorized"))
				return
			}
			ctx := context.WithValue(r.Context(), adminIDKey, sess.AdminID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func AdminIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(adminIDKey).(uuid.UUID)
	return id, ok
}

// PGAdmins stores admins in the admins table.
type PGAdmins struct{ DB db.Querier }

func (p PGAdmins) Create(ctx context.Context, username, passwordHash string) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.DB.QueryRow(ctx, `INSERT INTO admins(username, password_bcrypt) VALUES ($1,$2) RETURNING id`, username, passwordHash).Scan(&id)
	return id, err
}

func (p PGAdmins) Credentials(ctx context.Context, username string) (uuid.UUID, string, error) {
	var (
		id   uuid.UUID
		hash string
	)
	err := p.DB.QueryRow(ctx, `SELECT id, password_bcrypt FROM admins WHERE username=$1`, username).Scan(&id, &hash)
	if err != nil {
		return uuid.Nil, "", db.WrapNotFound(err)
	}
	return id, hash, nil
}
