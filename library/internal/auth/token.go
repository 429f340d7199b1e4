package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/Astemirdum/lending-service/library/config"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

type Claims struct {
	Permissions model.Permissions `json:"permissions"`
	jwt.RegisteredClaims
}

// Identity is the acting user as stated by a verified credential.
type Identity struct {
	UserID      string
	Permissions model.Permissions
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(cfg config.Auth) *Issuer {
	return &Issuer{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// Issue signs a credential carrying the user's id and a snapshot of the permissions granted right now.
func (i *Issuer) Issue(user model.User) (string, time.Time, error) {
	iat := i.now().UTC().Truncate(time.Second)
	exp := iat.Add(i.ttl)
	claims := Claims{
		Permissions: user.Permissions.Granted(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(iat),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign token")
	}
	return token, exp, nil
}

func (i *Issuer) Parse(raw string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, errors.Wrap(err, "parse token")
	}
	if claims.Subject == "" {
		return Identity{}, errors.New("token without subject")
	}
	return Identity{
		UserID:      claims.Subject,
		Permissions: claims.Permissions.Granted(),
	}, nil
}
