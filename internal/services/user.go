package services

import (
	"context"
	"errors"
	"fmt"

	"chatforms-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewUserService(db *gorm.DB, log *zap.Logger) *UserService {
	return &UserService{db: db, log: log}
}

// CreateUserIfNotExists returns the user for identityID, creating the row on
// first sight. The bool reports whether a row was created.
func (s *UserService) CreateUserIfNotExists(ctx context.Context, identityID, email, name string) (*models.User, bool, error) {
	if identityID == "" {
		return nil, false, ErrUnauthorized
	}

	user := models.User{IdentityID: identityID, Email: email, Name: name}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "identity_id"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		s.log.Error("failed to create user", zap.String("identity_id", identityID), zap.Error(res.Error))
		return nil, false, fmt.Errorf("create user: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		s.log.Info("user created", zap.String("identity_id", identityID))
		return &user, true, nil
	}

	existing, err := s.GetByIdentityID(ctx, identityID)
	if err != nil {
		s.log.Error("failed to look up user", zap.String("identity_id", identityID), zap.Error(err))
		return nil, false, err
	}
	return existing, false, nil
}

func (s *UserService) GetByIdentityID(ctx context.Context, identityID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("identity_id = ?", identityID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
