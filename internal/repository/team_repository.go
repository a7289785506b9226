package repository

import (
	"hackathon_backend/internal/model"

	"gorm.io/gorm"
)

type TeamRepository struct {
	DB *gorm.DB
}

func NewTeamRepository(db *gorm.DB) *TeamRepository {
	return &TeamRepository{DB: db}
}

func (r *TeamRepository) Create(team *model.Team) error {
	return r.DB.Create(team).Error
}

func (r *TeamRepository) FindByID(id uint, withMembers bool) (*model.Team, error) {
	query := r.DB
	if withMembers {
		query = query.Preload("Members").Preload("Members.User")
	}
	var team model.Team
	err := query.First(&team, id).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *TeamRepository) FindByProject(projectID uint) (*model.Team, error) {
	var team model.Team
	err := r.DB.Where("project_id = ?", projectID).First(&team).Error
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *TeamRepository) List(page, limit int) ([]model.Team, int64, error) {
	var teams []model.Team
	var total int64
	if err := r.DB.Model(&model.Team{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.DB.Preload("Members").Preload("Members.User").
		Offset((page - 1) * limit).Limit(limit).Find(&teams).Error
	return teams, total, err
}

func (r *TeamRepository) Update(team *model.Team) error {
	return r.DB.Save(team).Error
}

// Delete 只删除队伍和成员，项目保留
func (r *TeamRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", id).Delete(&model.TeamMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Team{}, id).Error
	})
}

func (r *TeamRepository) AddMember(member *model.TeamMember) error {
	return r.DB.Create(member).Error
}

func (r *TeamRepository) RemoveMember(teamID, memberID uint) error {
	return r.DB.Where("team_id = ?", teamID).Delete(&model.TeamMember{}, memberID).Error
}

// FindMemberByUser 查找用户的队伍成员记录，一个用户最多属于一个队伍
func (r *TeamRepository) FindMemberByUser(userID uint) (*model.TeamMember, error) {
	var member model.TeamMember
	err := r.DB.Where("user_id = ?", userID).First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

// FindMemberUsers 返回队伍所有成员的用户记录，用于评审结果通知
func (r *TeamRepository) FindMemberUsers(teamID uint) ([]model.User, error) {
	var users []model.User
	err := r.DB.
		Joins("JOIN team_members ON team_members.user_id = users.id").
		Where("team_members.team_id = ? AND team_members.deleted_at IS NULL", teamID).
		Find(&users).Error
	return users, err
}
