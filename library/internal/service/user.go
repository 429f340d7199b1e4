package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/lending-service/library/internal/auth"
	"github.com/Astemirdum/lending-service/library/internal/errs"
	"github.com/Astemirdum/lending-service/library/internal/model"
)

func (s *Service) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.User, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return model.User{}, errors.Wrap(errs.ErrValidation, "name, email and password are required")
	}
	hash, err := auth.HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return model.User{}, err
	}
	user, err := s.users.CreateUser(ctx, model.User{
		Name:        req.Name,
		Email:       req.Email,
		Password:    hash,
		Permissions: model.Permissions{},
	})
	if err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return model.User{}, errors.Wrapf(err, "email %s is already registered", req.Email)
		}
		s.log.Error("CreateUser", zap.Error(err))
		return model.User{}, errors.Wrap(err, "create user")
	}
	return user, nil
}

// Login reports errs.ErrInvalidCredentials for an unknown email, a wrong password or a disabled user.
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (model.LoginResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.LoginResponse{}, errs.ErrInvalidCredentials
		}
		s.log.Error("Login", zap.Error(err))
		return model.LoginResponse{}, errors.Wrap(err, "login")
	}
	if user.Disabled || !auth.VerifyPassword(user.Password, req.Password) {
		return model.LoginResponse{}, errs.ErrInvalidCredentials
	}
	token, exp, err := s.issuer.Issue(user)
	if err != nil {
		return model.LoginResponse{}, err
	}
	history, err := s.reservations.ListReservations(ctx, model.ReservationFilter{UserID: user.ID})
	if err != nil {
		s.log.Error("Login history", zap.String("user", user.ID), zap.Error(err))
		return model.LoginResponse{}, errors.Wrapf(err, "reservation history of user %s", user.ID)
	}
	return model.LoginResponse{
		Token:              token,
		ExpiresAt:          exp,
		User:               user,
		ReservationHistory: history,
	}, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, upd model.UserUpdate) (model.User, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" ||
		upd.Email != nil && strings.TrimSpace(*upd.Email) == "" ||
		upd.Password != nil && *upd.Password == "" {
		return model.User{}, errors.Wrap(errs.ErrValidation, "name, email and password cannot be empty")
	}
	if err := upd.Permissions.Validate(); err != nil {
		return model.User{}, err
	}
	if upd.Password != nil {
		hash, err := auth.HashPassword(*upd.Password, s.bcryptCost)
		if err != nil {
			return model.User{}, err
		}
		upd.Password = &hash
	}
	if _, err := s.users.GetUser(ctx, id); err != nil {
		return model.User{}, errors.Wrapf(err, "update user %s", id)
	}
	user, err := s.users.UpdateUser(ctx, id, upd)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) && !errors.Is(err, errs.ErrConflict) {
			s.log.Error("UpdateUser", zap.String("user", id), zap.Error(err))
		}
		return model.User{}, errors.Wrapf(err, "update user %s", id)
	}
	return user, nil
}

// DisableUser is idempotent.
func (s *Service) DisableUser(ctx context.Context, id string) error {
	if err := s.users.DisableUser(ctx, id); err != nil {
		return errors.Wrapf(err, "disable user %s", id)
	}
	s.log.Info("user disabled", zap.String("user", id))
	return nil
}

// GrantPermissions adds perms to the user's permission set.
func (s *Service) GrantPermissions(ctx context.Context, email string, perms ...model.Permission) (model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return model.User{}, errors.Wrapf(err, "user %s", email)
	}
	granted := user.Permissions.Granted()
	for _, p := range perms {
		if !p.Valid() {
			return model.User{}, errors.Wrapf(errs.ErrValidation, "unknown permission %q", p)
		}
		granted[p] = true
	}
	return s.users.UpdateUser(ctx, user.ID, model.UserUpdate{Permissions: granted})
}
