package service

import (
	"hackathon_backend/internal/model"
	"hackathon_backend/internal/util"
)

// 授权判定为纯函数，只看 Actor 中的角色事实

func RequireMentor(actor model.Actor) error {
	if !actor.IsMentor {
		return util.ForbiddenError("Mentor privileges required")
	}
	return nil
}

// RequireCaptain 开始/提交步骤只允许队长，导师不参赛
func RequireCaptain(actor model.Actor) error {
	if actor.IsMentor {
		return util.ForbiddenError("Not for mentors")
	}
	if actor.TeamID == nil || !actor.IsCaptain {
		return util.ForbiddenError("Only the captain can perform this action")
	}
	return nil
}

func RequireSameTeam(actor model.Actor, teamID uint) error {
	if !actor.InTeam(teamID) {
		return util.ForbiddenError("You are not authorized to access this step")
	}
	return nil
}

func RequireTeamMemberOrMentor(actor model.Actor, teamID uint) error {
	if actor.IsMentor {
		return nil
	}
	if actor.TeamID == nil {
		return util.NotFoundError("The user is not a member of any team")
	}
	return RequireSameTeam(actor, teamID)
}
