package services

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"airdrop-backend/internal/config"
	"airdrop-backend/internal/models"
)

// AuthService handles authentication business logic
type AuthService struct {
	db              *gorm.DB
	catalog         *config.PlanCatalog
	referralService *ReferralService
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB, catalog *config.PlanCatalog, referralService *ReferralService) *AuthService {
	return &AuthService{db: db, catalog: catalog, referralService: referralService}
}

// ProcessWalletLogin finds or creates a user by wallet address. An
// optional referral code is redeemed through the referral engine; a bad
// code does not block the login.
func (s *AuthService) ProcessWalletLogin(walletAddress, referralCode string) (*models.User, error) {
	var user models.User
	err := s.db.Where("uid = ?", walletAddress).First(&user).Error

	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return nil, err
	}

	if isNew {
		created, err := s.ensure(walletAddress)
		if err != nil {
			return nil, err
		}
		user = *created
		log.Printf("New user created: uid=%s referralCode=%s", user.UID, user.ReferralCode)

		if referralCode != "" {
			if _, err := s.referralService.Redeem(referralCode, user.UID); err != nil {
				log.Printf("Warning: signup referral code %q not applied for %s: %v",
					referralCode, user.UID, err)
			} else {
				// Reload so the response reflects the signup bonus.
				if err := s.db.Where("uid = ?", user.UID).First(&user).Error; err != nil {
					return nil, err
				}
			}
		}
	} else {
		log.Printf("User logged in: uid=%s", user.UID)
	}

	return &user, nil
}

// ensure creates the user document inside its own transaction
func (s *AuthService) ensure(uid string) (*models.User, error) {
	var user *models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		user, txErr = ensureUser(tx, uid, s.catalog)
		return txErr
	})
	return user, err
}

// GetUserByUID retrieves a user by their id
func (s *AuthService) GetUserByUID(uid string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("uid = ?", uid).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
