package service

import (
	"hackathon_backend/internal/model"
	"hackathon_backend/internal/repository"
	"hackathon_backend/internal/util"

	"gorm.io/gorm"
)

type TeamService struct {
	TeamRepo    *repository.TeamRepository
	UserRepo    *repository.UserRepository
	ProjectRepo *repository.ProjectRepository
}

func NewTeamService(teamRepo *repository.TeamRepository, userRepo *repository.UserRepository, projectRepo *repository.ProjectRepository) *TeamService {
	return &TeamService{TeamRepo: teamRepo, UserRepo: userRepo, ProjectRepo: projectRepo}
}

func (s *TeamService) Create(name string, projectID *uint, actor model.Actor) (*model.Team, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}

	if projectID != nil {
		if _, err := s.ProjectRepo.FindByID(*projectID, false, false); err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundError("Project not found")
		} else if err != nil {
			return nil, err
		}
		// 一个项目只能绑定一个队伍
		if _, err := s.TeamRepo.FindByProject(*projectID); err == nil {
			return nil, util.ConflictError("Project already has a team")
		} else if err != gorm.ErrRecordNotFound {
			return nil, err
		}
	}

	team := &model.Team{Name: name, ProjectID: projectID}
	if err := s.TeamRepo.Create(team); err != nil {
		return nil, err
	}
	return team, nil
}

func (s *TeamService) Get(teamID uint) (*model.Team, error) {
	team, err := s.TeamRepo.FindByID(teamID, true)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundError("Team not found")
	}
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (s *TeamService) List(page, limit int) ([]model.Team, int64, error) {
	return s.TeamRepo.List(page, limit)
}

func (s *TeamService) Update(teamID uint, name string, projectID *uint, actor model.Actor) (*model.Team, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}

	team, err := s.Get(teamID)
	if err != nil {
		return nil, err
	}

	if name != "" {
		team.Name = name
	}
	if projectID != nil {
		if _, err := s.ProjectRepo.FindByID(*projectID, false, false); err == gorm.ErrRecordNotFound {
			return nil, util.NotFoundError("Project not found")
		} else if err != nil {
			return nil, err
		}
		if existing, err := s.TeamRepo.FindByProject(*projectID); err == nil && existing.ID != teamID {
			return nil, util.ConflictError("Project already has a team")
		} else if err != nil && err != gorm.ErrRecordNotFound {
			return nil, err
		}
		team.ProjectID = projectID
	}

	if err := s.TeamRepo.Update(team); err != nil {
		return nil, err
	}
	return team, nil
}

// Delete 解散队伍，绑定的项目及其评审记录保留
func (s *TeamService) Delete(teamID uint, actor model.Actor) error {
	if err := RequireMentor(actor); err != nil {
		return err
	}
	if _, err := s.Get(teamID); err != nil {
		return err
	}
	return s.TeamRepo.Delete(teamID)
}

func (s *TeamService) AddMember(teamID, userID uint, roleName string, actor model.Actor) (*model.TeamMember, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}

	if _, err := s.Get(teamID); err != nil {
		return nil, err
	}

	user, err := s.UserRepo.FindByID(userID)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundError("User not found")
	}
	if err != nil {
		return nil, err
	}
	if user.IsMentor() {
		return nil, util.BadRequestError("Mentors cannot join teams")
	}

	// 用户同时只能在一个队伍
	if _, err := s.TeamRepo.FindMemberByUser(userID); err == nil {
		return nil, util.ConflictError("User is already a member of a team")
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	member := &model.TeamMember{
		TeamID:   teamID,
		UserID:   userID,
		RoleName: roleName,
	}
	if err := s.TeamRepo.AddMember(member); err != nil {
		return nil, err
	}
	member.User = *user
	return member, nil
}

func (s *TeamService) RemoveMember(teamID, memberID uint, actor model.Actor) error {
	if err := RequireMentor(actor); err != nil {
		return err
	}
	if _, err := s.Get(teamID); err != nil {
		return err
	}
	return s.TeamRepo.RemoveMember(teamID, memberID)
}
