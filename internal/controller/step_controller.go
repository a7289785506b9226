package controller

import (
	"strconv"

	"hackathon_backend/internal/service"
	"hackathon_backend/internal/util"
	"hackathon_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

type StepController struct {
	StepService *service.StepService
	UserService *service.UserService
}

func NewStepController(stepService *service.StepService, userService *service.UserService) *StepController {
	return &StepController{StepService: stepService, UserService: userService}
}

func stepParams(ctx *gin.Context) (uint, int, bool) {
	projectID := util.MustParseUint(ctx.Param("projectId"))
	stepNum, err := strconv.Atoi(ctx.Param("stepNumber"))
	if err != nil {
		util.BadRequest(ctx, "Invalid step number")
		return 0, 0, false
	}
	return projectID, stepNum, true
}

// Get godoc
// @Summary 获取步骤详情
// @Description 返回步骤及其尝试、文件和评论；参赛者只能查看本队项目
// @Tags 步骤
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Success 200 {object} util.Response{data=model.Step} "成功"
// @Failure 403 {object} util.Response "无权访问"
// @Failure 404 {object} util.Response "步骤不存在"
// @Router /api/projects/{projectId}/steps/{stepNumber} [get]
func (c *StepController) Get(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	step, err := c.StepService.GetStep(projectID, stepNum, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, step)
}

// Start godoc
// @Summary 开始步骤
// @Description 队长开始步骤，创建计时尝试；上一步必须已验收
// @Tags 步骤
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Success 200 {object} util.Response{data=model.Step} "成功"
// @Failure 403 {object} util.Response "仅限队长"
// @Failure 409 {object} util.Response "上一步未完成或步骤已开始"
// @Router /api/projects/{projectId}/steps/{stepNumber}/start [post]
func (c *StepController) Start(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	step, err := c.StepService.StartStep(projectID, stepNum, actor)
	monitoring.ObserveStepTransition("start", err)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, step)
}

type SetTimerRequest struct {
	TimerMinutes int `json:"timerMinutes" binding:"required,gte=1"`
}

// SetTimer godoc
// @Summary 设置步骤计时
// @Description 导师调整步骤计时；步骤进行中时同步推后当前尝试的截止时间
// @Tags 步骤
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Param   body body SetTimerRequest true "计时分钟数"
// @Success 200 {object} util.Response{data=model.Step} "成功"
// @Failure 403 {object} util.Response "仅限导师"
// @Router /api/projects/{projectId}/steps/{stepNumber}/timer [post]
func (c *StepController) SetTimer(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req SetTimerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	step, err := c.StepService.SetStepTimer(projectID, stepNum, req.TimerMinutes, actor)
	monitoring.ObserveStepTransition("set_timer", err)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, step)
}

// Submit godoc
// @Summary 提交步骤
// @Description 队长提交步骤答案；超时判定只发生在提交这一刻。
// @Description 表单字段：text（答案文本）、files（新增文件，最多10个）、removeFileIds（要移除的已有文件ID）
// @Tags 步骤
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Success 200 {object} util.Response{data=model.Step} "成功"
// @Failure 400 {object} util.Response "文件不合法"
// @Failure 409 {object} util.Response "步骤未开始"
// @Router /api/projects/{projectId}/steps/{stepNumber}/submit [post]
func (c *StepController) Submit(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	text := ctx.PostForm("text")

	var removeFileIDs []uint
	for _, raw := range ctx.PostFormArray("removeFileIds") {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			util.BadRequest(ctx, "Invalid file id: "+raw)
			return
		}
		removeFileIDs = append(removeFileIDs, uint(id))
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	files := form.File["files"]

	step, err := c.StepService.SubmitStep(ctx.Request.Context(), projectID, stepNum, text, files, removeFileIDs, actor)
	monitoring.ObserveStepTransition("submit", err)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, step)
}

type AcceptRequest struct {
	Score int `json:"score" binding:"gte=0"`
}

// Accept godoc
// @Summary 验收步骤
// @Description 导师验收并打分，步骤进入终态，项目总分重算
// @Tags 步骤
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Param   body body AcceptRequest true "得分"
// @Success 200 {object} util.Response{data=model.Step} "成功"
// @Failure 409 {object} util.Response "步骤未提交"
// @Router /api/projects/{projectId}/steps/{stepNumber}/accept [post]
func (c *StepController) Accept(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req AcceptRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	step, err := c.StepService.AcceptStep(projectID, stepNum, req.Score, actor)
	monitoring.ObserveStepTransition("accept", err)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, step)
}

type RejectRequest struct {
	TimerMinutes *int `json:"timerMinutes"`
}

// Reject godoc
// @Summary 驳回步骤
// @Description 导师驳回步骤，回到未开始状态等待重试；
// @Description 未给新计时值时按上次提交的剩余时间推算，超时提交必须显式给值
// @Tags 步骤
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Param   body body RejectRequest false "新计时分钟数（可选）"
// @Success 200 {object} util.Response{data=model.Step} "成功"
// @Failure 409 {object} util.Response "步骤未提交或缺少计时值"
// @Router /api/projects/{projectId}/steps/{stepNumber}/reject [post]
func (c *StepController) Reject(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req RejectRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	step, err := c.StepService.RejectStep(projectID, stepNum, req.TimerMinutes, actor)
	monitoring.ObserveStepTransition("reject", err)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, step)
}

// GetComments godoc
// @Summary 步骤评论列表
// @Tags 步骤评论
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Success 200 {object} util.Response{data=[]model.StepComment} "成功"
// @Router /api/projects/{projectId}/steps/{stepNumber}/comments [get]
func (c *StepController) GetComments(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	comments, err := c.StepService.GetComments(projectID, stepNum, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, comments)
}

// CreateComment godoc
// @Summary 发表步骤评论
// @Description 表单字段：text（评论内容）、files（附件，最多5个）；步骤开始后才能评论
// @Tags 步骤评论
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Success 201 {object} util.Response{data=model.StepComment} "创建成功"
// @Failure 409 {object} util.Response "步骤未开始"
// @Router /api/projects/{projectId}/steps/{stepNumber}/comments [post]
func (c *StepController) CreateComment(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	text := ctx.PostForm("text")
	if text == "" {
		util.BadRequest(ctx, "text is required")
		return
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	files := form.File["files"]

	comment, err := c.StepService.CreateComment(ctx.Request.Context(), projectID, stepNum, text, files, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, comment)
}

// DeleteComment godoc
// @Summary 删除步骤评论
// @Description 仅评论作者或导师可删除，附件一并清理
// @Tags 步骤评论
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   stepNumber path int true "步骤序号（1-15）"
// @Param   commentId path int true "评论ID"
// @Success 204 "删除成功"
// @Failure 403 {object} util.Response "只能删除自己的评论"
// @Router /api/projects/{projectId}/steps/{stepNumber}/comments/{commentId} [delete]
func (c *StepController) DeleteComment(ctx *gin.Context) {
	projectID, stepNum, ok := stepParams(ctx)
	if !ok {
		return
	}
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	err := c.StepService.DeleteComment(ctx.Request.Context(), projectID, stepNum, util.MustParseUint(ctx.Param("commentId")), actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}
