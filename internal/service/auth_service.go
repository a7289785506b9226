package service

import (
	"context"
	"time"

	"hackathon_backend/internal/config"
	"hackathon_backend/internal/model"
	"hackathon_backend/internal/repository"
	"hackathon_backend/internal/util"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const passwordResetTTL = 15 * time.Minute

type AuthService struct {
	UserRepo *repository.UserRepository
	Redis    *redis.Client
	Notifier *NotificationService
	Config   *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, rdb *redis.Client, notifier *NotificationService, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Redis:    rdb,
		Notifier: notifier,
		Config:   cfg,
	}
}

func (s *AuthService) Register(firstName, lastName, email, password string, role model.UserRole) (*model.User, error) {
	if _, err := s.UserRepo.FindByEmail(email); err == nil {
		return nil, util.ConflictError("Email is already registered")
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Password:  string(hashed),
		Role:      role,
	}
	if err := s.UserRepo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login 校验凭证并签发JWT，登录成功刷新 last_login
func (s *AuthService) Login(email, password string) (string, *model.User, error) {
	user, err := s.UserRepo.FindByEmail(email)
	if err == gorm.ErrRecordNotFound {
		return "", nil, util.BadRequestError("Invalid email or password")
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return "", nil, util.BadRequestError("Invalid email or password")
	}

	token, err := util.GenerateJWT(user, s.Config.JWT.Secret, s.Config.JWT.ExpireTime)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	user.LastLogin = &now
	if err := s.UserRepo.Update(user); err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// RequestPasswordReset 生成一次性令牌并邮件投递
// 邮箱不存在时静默返回，避免账号枚举
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.UserRepo.FindByEmail(email)
	if err == gorm.ErrRecordNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.New().String()
	if err := s.Redis.Set(ctx, passwordResetKey(token), user.ID, passwordResetTTL).Err(); err != nil {
		return err
	}

	s.Notifier.Dispatch([]Event{{
		Type:  EventPasswordReset,
		Email: user.Email,
		Token: token,
	}})
	return nil
}

// ConfirmPasswordReset 用令牌换取一次密码重置，令牌用后即焚
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	key := passwordResetKey(token)
	userID, err := s.Redis.Get(ctx, key).Uint64()
	if err == redis.Nil {
		return util.BadRequestError("Invalid or expired reset token")
	}
	if err != nil {
		return err
	}

	user, err := s.UserRepo.FindByID(uint(userID))
	if err == gorm.ErrRecordNotFound {
		return util.BadRequestError("Invalid or expired reset token")
	}
	if err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.Password = string(hashed)
	if err := s.UserRepo.Update(user); err != nil {
		return err
	}

	return s.Redis.Del(ctx, key).Err()
}

func passwordResetKey(token string) string {
	return "password_reset:" + token
}
