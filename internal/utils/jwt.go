package utils // package utils provides helpers for tokens, hashing and codes

import (
    "crypto/rand"   // secure random bytes for refresh tokens
    "crypto/sha256" // refresh tokens are only kept as digests
    "encoding/hex"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5" // signed access tokens
    "github.com/google/uuid"       // source of QR codes
)

// AccessToken is a signed JWT plus its expiry.  Staff clients send it in the
// Authorization header; websocket clients pass it as ?token=.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is the opaque session token handed to the client.  Only its
// SHA‑256 digest is used as a key in the session store.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// NewAccessToken signs an HS256 JWT whose subject is the store id of the
// user.  The role claim is informational; capability checks always reload
// the user so changes to accesos apply immediately.
func NewAccessToken(secret, userID, role string, ttlMin int) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  now.Unix(),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies raw with secret and returns the subject and role
// claims.
func ParseAccessToken(secret, raw string) (sub, role string, err error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, jwt.ErrSignatureInvalid
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return "", "", jwt.ErrTokenInvalidClaims
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", "", jwt.ErrTokenInvalidClaims
    }
    sub, _ = claims["sub"].(string)
    role, _ = claims["role"].(string)
    if sub == "" {
        return "", "", jwt.ErrTokenInvalidClaims
    }
    return sub, role, nil
}

// NewRefreshToken returns 96 hex chars of randomness valid for ttlDays.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
    raw, err := randomHex(48)
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{
        Raw: raw,
        Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
    }, nil
}

// HashRefreshRaw returns the hex SHA‑256 digest of a raw refresh token.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}

// NewQRToken returns a short opaque table code: the first group of a random
// UUID (8 hex chars).  Uniqueness across tables is not guaranteed.
func NewQRToken() string {
    return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
