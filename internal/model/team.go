package model

import "strings"

// 队长通过成员角色名识别，而不是单独的布尔标志
const CaptainRolePrefix = "captain"

type Team struct {
	BaseModel
	Name      string       `gorm:"size:250;not null" json:"name"`
	ProjectID *uint        `gorm:"index" json:"projectId,omitempty"`
	Members   []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

func (Team) TableName() string {
	return "teams"
}

type TeamMember struct {
	BaseModel
	TeamID   uint   `gorm:"index;not null" json:"teamId"`
	UserID   uint   `gorm:"index;not null" json:"userId"`
	RoleName string `gorm:"size:100;not null" json:"roleName"`
	User     User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (TeamMember) TableName() string {
	return "team_members"
}

func (m *TeamMember) IsCaptain() bool {
	return strings.HasPrefix(strings.ToLower(m.RoleName), CaptainRolePrefix)
}
