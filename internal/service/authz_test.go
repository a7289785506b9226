package service

import (
	"testing"

	"hackathon_backend/internal/model"
	"hackathon_backend/internal/util"

	"github.com/stretchr/testify/assert"
)

func TestRequireMentor(t *testing.T) {
	assert.NoError(t, RequireMentor(model.Actor{IsMentor: true}))

	err := RequireMentor(model.Actor{UserID: 1})
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestRequireCaptain(t *testing.T) {
	teamID := uint(3)

	assert.NoError(t, RequireCaptain(model.Actor{UserID: 1, TeamID: &teamID, IsCaptain: true}))

	// 导师不是参赛者，即便想代劳也不行
	err := RequireCaptain(model.Actor{UserID: 2, IsMentor: true})
	assert.True(t, util.IsKind(err, util.KindForbidden))

	// 普通队员
	err = RequireCaptain(model.Actor{UserID: 3, TeamID: &teamID})
	assert.True(t, util.IsKind(err, util.KindForbidden))

	// 无队伍
	err = RequireCaptain(model.Actor{UserID: 4, IsCaptain: true})
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestRequireSameTeam(t *testing.T) {
	teamID := uint(3)
	otherTeam := uint(5)

	assert.NoError(t, RequireSameTeam(model.Actor{TeamID: &teamID}, teamID))

	err := RequireSameTeam(model.Actor{TeamID: &otherTeam}, teamID)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	err = RequireSameTeam(model.Actor{}, teamID)
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestRequireTeamMemberOrMentor(t *testing.T) {
	teamID := uint(3)

	assert.NoError(t, RequireTeamMemberOrMentor(model.Actor{IsMentor: true}, teamID))
	assert.NoError(t, RequireTeamMemberOrMentor(model.Actor{TeamID: &teamID}, teamID))

	// 不属于任何队伍的参赛者
	err := RequireTeamMemberOrMentor(model.Actor{UserID: 9}, teamID)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	otherTeam := uint(5)
	err = RequireTeamMemberOrMentor(model.Actor{TeamID: &otherTeam}, teamID)
	assert.True(t, util.IsKind(err, util.KindForbidden))
}
