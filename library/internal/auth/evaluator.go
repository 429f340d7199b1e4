package auth

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

const bearerPrefix = "Bearer "

type UserReader interface {
	GetUser(ctx context.Context, id string) (model.User, error)
}

// Evaluator decides whether the bearer of a credential may perform a mutation.
// Every refusal is errs.ErrUnauthorized; the cause is only logged.
type Evaluator struct {
	issuer *Issuer
	users  UserReader
	log    *zap.Logger
}

func NewEvaluator(issuer *Issuer, users UserReader, log *zap.Logger) *Evaluator {
	return &Evaluator{
		issuer: issuer,
		users:  users,
		log:    log.Named("auth"),
	}
}

// Authorize admits the caller when it holds perm, or when targetUserID is set and names the caller.
func (e *Evaluator) Authorize(ctx context.Context, header string, perm model.Permission, targetUserID string) (Identity, error) {
	id, err := e.AuthorizeSelf(ctx, header)
	if err != nil {
		return Identity{}, err
	}
	if targetUserID != "" && targetUserID == id.UserID {
		return id, nil
	}
	if id.Permissions.Grants(perm) {
		return id, nil
	}
	e.log.Info("permission denied",
		zap.String("user", id.UserID),
		zap.String("permission", string(perm)),
		zap.String("target", targetUserID))
	return Identity{}, errs.ErrUnauthorized
}

// AuthorizeSelf admits any enabled user holding a valid credential.
func (e *Evaluator) AuthorizeSelf(ctx context.Context, header string) (Identity, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		e.log.Debug("missing bearer credential")
		return Identity{}, errs.ErrUnauthorized
	}
	id, err := e.issuer.Parse(strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)))
	if err != nil {
		e.log.Info("rejected credential", zap.Error(err))
		return Identity{}, errs.ErrUnauthorized
	}
	// the snapshot is trusted for permissions only; enablement is re-read
	user, err := e.users.GetUser(ctx, id.UserID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			e.log.Error("resolve identity", zap.String("user", id.UserID), zap.Error(err))
		}
		return Identity{}, errs.ErrUnauthorized
	}
	if user.Disabled {
		e.log.Info("disabled user", zap.String("user", id.UserID))
		return Identity{}, errs.ErrUnauthorized
	}
	return id, nil
}
