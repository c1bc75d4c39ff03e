package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/config"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	db            *gorm.DB
	users         *repository.UserRepo
	ledger        *LedgerService
	jwtCfg        config.JWTConfig
	referralBonus decimal.Decimal
}

func NewUserService(db *gorm.DB, users *repository.UserRepo, ledger *LedgerService, jwtCfg config.JWTConfig, referral config.ReferralConfig) (*UserService, error) {
	bonus, err := decimal.NewFromString(referral.Bonus)
	if err != nil {
		return nil, fmt.Errorf("invalid referral bonus %q: %w", referral.Bonus, err)
	}
	return &UserService{
		db:            db,
		users:         users,
		ledger:        ledger,
		jwtCfg:        jwtCfg,
		referralBonus: bonus,
	}, nil
}

// Register creates a user with a fresh invite code. A referrer's code
// links the accounts and pays the referrer a fixed UBT bonus in the same
// transaction.
func (s *UserService) Register(ctx context.Context, email, phone, password, inviteCode string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Phone:        strings.TrimSpace(phone),
		PasswordHash: string(hash),
		InviteCode:   newInviteCode(),
		Balance:      decimal.Zero,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)

		var referrer *model.User
		if code := strings.TrimSpace(inviteCode); code != "" {
			referrer, err = users.GetByInviteCode(ctx, code)
			if err != nil {
				return err
			}
			user.ReferrerID = &referrer.ID
		}

		if err := users.Create(ctx, user); err != nil {
			return err
		}

		if referrer != nil && s.referralBonus.IsPositive() {
			note := fmt.Sprintf("referral bonus for inviting user %d", user.ID)
			if _, err := s.ledger.creditTx(ctx, tx, referrer.ID, model.LedgerReferralBonus, s.referralBonus, note); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("user registered", zap.Uint64("userID", user.ID), zap.Bool("referred", user.ReferrerID != nil))
	return user, nil
}

// Login verifies credentials and issues an HS256 token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, *model.User, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, apperr.ErrUserNotFound) {
		return "", nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, apperr.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": fmt.Sprintf("%d", user.ID),
		"adm": user.IsAdmin,
		"iat": now.Unix(),
		"exp": now.Add(s.jwtCfg.TTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwtCfg.Secret))
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return s.users.GetByID(ctx, id)
}

func newInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
