package service

import (
	"hackathon_backend/internal/model"
	"hackathon_backend/internal/repository"
	"hackathon_backend/internal/util"

	"gorm.io/gorm"
)

type UserService struct {
	UserRepo *repository.UserRepository
	TeamRepo *repository.TeamRepository
}

func NewUserService(userRepo *repository.UserRepository, teamRepo *repository.TeamRepository) *UserService {
	return &UserService{UserRepo: userRepo, TeamRepo: teamRepo}
}

func (s *UserService) GetProfile(userID uint) (*model.User, error) {
	user, err := s.UserRepo.FindByID(userID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundError("User not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) UpdateProfile(userID uint, firstName, lastName string) (*model.User, error) {
	user, err := s.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	if firstName != "" {
		user.FirstName = firstName
	}
	if lastName != "" {
		user.LastName = lastName
	}
	if err := s.UserRepo.Update(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ResolveActor 把JWT声明落实成授权主体：角色加队伍成员事实
func (s *UserService) ResolveActor(claims *util.Claims) (model.Actor, error) {
	actor := model.Actor{
		UserID:   claims.UserID,
		IsMentor: claims.Role == model.Mentor,
	}

	member, err := s.TeamRepo.FindMemberByUser(claims.UserID)
	if err == gorm.ErrRecordNotFound {
		return actor, nil
	}
	if err != nil {
		return actor, err
	}

	actor.TeamID = &member.TeamID
	actor.IsCaptain = member.IsCaptain()
	return actor, nil
}
