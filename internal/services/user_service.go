package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"airdrop-backend/internal/apperr"
	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
	"airdrop-backend/internal/utils"
)

// UserService handles user-related business logic
type UserService struct {
	db      *gorm.DB
	catalog *config.PlanCatalog
}

// NewUserService creates a new UserService
func NewUserService(db *gorm.DB, catalog *config.PlanCatalog) *UserService {
	return &UserService{db: db, catalog: catalog}
}

// GetUserByUID retrieves a user by their id
func (s *UserService) GetUserByUID(uid string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("uid = ?", uid).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.NotFound, "USER_NOT_FOUND", "user %s not found", uid)
		}
		return nil, err
	}
	return &user, nil
}

// EnsureUser returns the user, creating it on the lowest tier if this is
// the first authenticated action for this uid.
func (s *UserService) EnsureUser(uid string) (*models.User, error) {
	var user *models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		user, txErr = ensureUser(tx, uid, s.catalog)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ensureUser loads or lazily creates a user inside an existing transaction.
// New accounts start on the lowest-tier plan and get a unique referral
// code; code collisions are retried against the unique index.
func ensureUser(tx *gorm.DB, uid string, catalog *config.PlanCatalog) (*models.User, error) {
	if uid == "" {
		return nil, apperr.New(apperr.Unauthenticated, "MISSING_UID", "caller identity is required")
	}

	var user models.User
	err := tx.Where("uid = ?", uid).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	plan := catalog.LowestTier()

	const maxCodeAttempts = 5
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := utils.GenerateReferralCode()
		if err != nil {
			return nil, err
		}

		user = models.User{
			UID:            uid,
			PlanID:         plan.ID,
			MaxDailyClaims: plan.MaxDailyClaims,
			ReferralCode:   code,
		}

		// Nested transaction -> savepoint, so a unique-index failure
		// does not poison the caller's transaction on Postgres.
		err = tx.Transaction(func(inner *gorm.DB) error {
			return inner.Create(&user).Error
		})
		if err == nil {
			return &user, nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}

		// Either the referral code collided or another request created
		// this user concurrently. Re-check before retrying the code.
		if lookupErr := tx.Where("uid = ?", uid).First(&user).Error; lookupErr == nil {
			return &user, nil
		}
	}

	return nil, fmt.Errorf("failed to allocate a unique referral code for %s", uid)
}
