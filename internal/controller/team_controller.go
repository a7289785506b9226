package controller

import (
	"math"

	"hackathon_backend/internal/service"
	"hackathon_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TeamController struct {
	TeamService *service.TeamService
	UserService *service.UserService
}

func NewTeamController(teamService *service.TeamService, userService *service.UserService) *TeamController {
	return &TeamController{TeamService: teamService, UserService: userService}
}

type TeamRequest struct {
	Name      string `json:"name" binding:"required"`
	ProjectID *uint  `json:"projectId"`
}

// Create godoc
// @Summary 创建队伍
// @Description 导师创建队伍，可选绑定项目
// @Tags 队伍
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body TeamRequest true "队伍信息"
// @Success 201 {object} util.Response{data=model.Team} "创建成功"
// @Failure 409 {object} util.Response "项目已有队伍"
// @Router /api/teams [post]
func (c *TeamController) Create(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req TeamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	team, err := c.TeamService.Create(req.Name, req.ProjectID, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, team)
}

// Get godoc
// @Summary 获取队伍详情
// @Tags 队伍
// @Produce  json
// @Security ApiKeyAuth
// @Param   teamId path int true "队伍ID"
// @Success 200 {object} util.Response{data=model.Team} "成功"
// @Router /api/teams/{teamId} [get]
func (c *TeamController) Get(ctx *gin.Context) {
	team, err := c.TeamService.Get(util.MustParseUint(ctx.Param("teamId")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, team)
}

// List godoc
// @Summary 队伍分页列表
// @Tags 队伍
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/teams [get]
func (c *TeamController) List(ctx *gin.Context) {
	page := util.ParsePositiveInt(ctx.Query("page"), 1)
	limit := util.ParsePositiveInt(ctx.Query("limit"), 20)

	teams, total, err := c.TeamService.List(page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:       teams,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		Page:       page,
		Limit:      limit,
	})
}

// Update godoc
// @Summary 更新队伍
// @Tags 队伍
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   teamId path int true "队伍ID"
// @Param   body body TeamRequest true "队伍信息"
// @Success 200 {object} util.Response{data=model.Team} "成功"
// @Router /api/teams/{teamId} [put]
func (c *TeamController) Update(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req struct {
		Name      string `json:"name"`
		ProjectID *uint  `json:"projectId"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	team, err := c.TeamService.Update(util.MustParseUint(ctx.Param("teamId")), req.Name, req.ProjectID, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, team)
}

// Delete godoc
// @Summary 解散队伍
// @Description 删除队伍及成员关系，项目数据保留
// @Tags 队伍
// @Produce  json
// @Security ApiKeyAuth
// @Param   teamId path int true "队伍ID"
// @Success 204 "删除成功"
// @Router /api/teams/{teamId} [delete]
func (c *TeamController) Delete(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	if err := c.TeamService.Delete(util.MustParseUint(ctx.Param("teamId")), actor); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}

type AddMemberRequest struct {
	UserID   uint   `json:"userId" binding:"required"`
	RoleName string `json:"roleName" binding:"required"`
}

// AddMember godoc
// @Summary 添加队伍成员
// @Description 角色名以 captain 开头的成员视为队长
// @Tags 队伍
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   teamId path int true "队伍ID"
// @Param   body body AddMemberRequest true "成员信息"
// @Success 201 {object} util.Response{data=model.TeamMember} "添加成功"
// @Failure 409 {object} util.Response "用户已在其他队伍"
// @Router /api/teams/{teamId}/members [post]
func (c *TeamController) AddMember(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	member, err := c.TeamService.AddMember(util.MustParseUint(ctx.Param("teamId")), req.UserID, req.RoleName, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, member)
}

// RemoveMember godoc
// @Summary 移除队伍成员
// @Tags 队伍
// @Produce  json
// @Security ApiKeyAuth
// @Param   teamId path int true "队伍ID"
// @Param   memberId path int true "成员记录ID"
// @Success 204 "移除成功"
// @Router /api/teams/{teamId}/members/{memberId} [delete]
func (c *TeamController) RemoveMember(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	err := c.TeamService.RemoveMember(
		util.MustParseUint(ctx.Param("teamId")),
		util.MustParseUint(ctx.Param("memberId")),
		actor,
	)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}
