package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cottageplayer/backend/internal/authz"
	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/pkg/logger"
)

// AccountService is the account directory: lookup, provisioning, role and
// activity management. Users are never hard-deleted; deactivation is the
// deletion mechanism.
type AccountService struct {
	DB     *gorm.DB
	Signup config.SignupConfig
}

func NewAccountService(db *gorm.DB, signup config.SignupConfig) *AccountService {
	return &AccountService{DB: db, Signup: signup}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) Resolve(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "email = ?", normalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AccountService) ResolveByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Provision resolves a verified identity to a user record, creating one when
// policy allows. Existing users get their display name and picture refreshed
// from the provider. New identities from the initial-admin list become
// admins; otherwise auto-signup must be enabled or provisioning fails with
// ErrSignupDisabled.
func (s *AccountService) Provision(ctx context.Context, profile *Profile) (*models.User, error) {
	email := normalizeEmail(profile.Email)

	var user models.User
	err := s.DB.WithContext(ctx).First(&user, "email = ?", email).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{}
		if profile.Name != "" && profile.Name != user.Name {
			updates["name"] = profile.Name
		}
		if profile.Picture != "" && (user.Picture == nil || *user.Picture != profile.Picture) {
			updates["picture"] = profile.Picture
		}
		if len(updates) > 0 {
			if err := s.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
				return nil, err
			}
		}
		return &user, nil

	case errors.Is(err, gorm.ErrRecordNotFound):
		role := models.UserRoleViewer
		if s.isInitialAdmin(email) {
			role = models.UserRoleAdmin
		} else if !s.Signup.AllowAutoSignup {
			return nil, ErrSignupDisabled
		}

		user = models.User{Email: email, Name: profile.Name, Role: role, Active: true}
		if profile.Picture != "" {
			picture := profile.Picture
			user.Picture = &picture
		}
		if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
			return nil, err
		}
		logger.Info("user_provisioned", map[string]interface{}{
			"email": email,
			"role":  string(role),
		})
		return &user, nil

	default:
		return nil, err
	}
}

func (s *AccountService) isInitialAdmin(email string) bool {
	for _, admin := range s.Signup.InitialAdminEmails {
		if normalizeEmail(admin) == email {
			return true
		}
	}
	return false
}

func (s *AccountService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if d := authz.Authorize(actor, authz.CapManageUsers); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// SetRole changes the target's role. Demoting the last active admin is
// rejected with ErrInvariantViolation before anything is written.
func (s *AccountService) SetRole(ctx context.Context, actor *models.User, targetID uuid.UUID, role models.UserRole) (*models.User, error) {
	if d := authz.Authorize(actor, authz.CapManageUsers); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	var target models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		demotion := target.Role == models.UserRoleAdmin && role != models.UserRoleAdmin
		if demotion && target.Active {
			if err := ensureAnotherActiveAdmin(tx, target.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(&target).Update("role", role).Error; err != nil {
			return err
		}
		target.Role = role
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(actor.ID.String(), "user_role_changed", map[string]interface{}{
		"target": target.Email,
		"role":   string(role),
	})
	return &target, nil
}

// SetActive toggles the active flag. Deactivating the last active admin is
// rejected with ErrInvariantViolation.
func (s *AccountService) SetActive(ctx context.Context, actor *models.User, targetID uuid.UUID, active bool) (*models.User, error) {
	if d := authz.Authorize(actor, authz.CapManageUsers); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	var target models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&target, "id = ?", targetID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !active && target.Active && target.Role == models.UserRoleAdmin {
			if err := ensureAnotherActiveAdmin(tx, target.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(&target).Update("active", active).Error; err != nil {
			return err
		}
		target.Active = active
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(actor.ID.String(), "user_active_changed", map[string]interface{}{
		"target": target.Email,
		"active": active,
	})
	return &target, nil
}

// AddOrActivate lets an admin authorize an account ahead of its first login,
// or reactivate one that was turned off.
func (s *AccountService) AddOrActivate(ctx context.Context, actor *models.User, email, name string, role models.UserRole) (*models.User, error) {
	if d := authz.Authorize(actor, authz.CapManageUsers); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	normalized := normalizeEmail(email)
	if normalized == "" {
		return nil, fmt.Errorf("%w: email is required", ErrNotFound)
	}

	var user models.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&user, "email = ?", normalized).Error
		switch {
		case err == nil:
			updates := map[string]interface{}{"active": true, "role": role}
			if name != "" {
				updates["name"] = name
			}
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return err
			}
			user.Active = true
			user.Role = role
			if name != "" {
				user.Name = name
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			user = models.User{Email: normalized, Name: name, Role: role, Active: true}
			return tx.Create(&user).Error
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ReconcileAdmins is the idempotent boot step that makes every configured
// admin email an active admin. Re-running it reactivates a deactivated admin
// and re-promotes a demoted one; it never touches accounts outside the list.
func (s *AccountService) ReconcileAdmins(ctx context.Context, emails []string) error {
	for _, email := range emails {
		normalized := normalizeEmail(email)
		if normalized == "" {
			continue
		}

		err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var user models.User
			err := tx.First(&user, "email = ?", normalized).Error
			switch {
			case err == nil:
				return tx.Model(&user).Updates(map[string]interface{}{
					"role":   models.UserRoleAdmin,
					"active": true,
				}).Error
			case errors.Is(err, gorm.ErrRecordNotFound):
				return tx.Create(&models.User{
					Email:  normalized,
					Role:   models.UserRoleAdmin,
					Active: true,
				}).Error
			default:
				return err
			}
		})
		if err != nil {
			return fmt.Errorf("reconciling admin %s: %w", normalized, err)
		}
	}

	logger.Info("admins_reconciled", map[string]interface{}{
		"count": len(emails),
	})
	return nil
}

func ensureAnotherActiveAdmin(tx *gorm.DB, excluding uuid.UUID) error {
	var remaining int64
	if err := tx.Model(&models.User{}).
		Where("role = ? AND active = ? AND id <> ?", models.UserRoleAdmin, true, excluding).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining == 0 {
		return ErrInvariantViolation
	}
	return nil
}
