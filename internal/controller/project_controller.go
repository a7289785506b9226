package controller

import (
	"math"
	"net/http"

	"hackathon_backend/internal/service"
	"hackathon_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ProjectController struct {
	ProjectService *service.ProjectService
	UserService    *service.UserService
}

func NewProjectController(projectService *service.ProjectService, userService *service.UserService) *ProjectController {
	return &ProjectController{ProjectService: projectService, UserService: userService}
}

// Create godoc
// @Summary 创建项目
// @Description 导师创建项目，自动生成15个未开始的评审步骤，可附带项目文档
// @Tags 项目
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   name formData string true "项目名称"
// @Param   description formData string true "项目描述"
// @Param   document formData file false "项目文档（pdf/doc/docx，10MB以内）"
// @Success 201 {object} util.Response{data=model.Project} "创建成功"
// @Failure 400 {object} util.Response "文件类型或大小不合法"
// @Router /api/projects [post]
func (c *ProjectController) Create(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	name := ctx.PostForm("name")
	description := ctx.PostForm("description")
	if name == "" || description == "" {
		util.BadRequest(ctx, "name and description are required")
		return
	}

	// 文档可选
	document, err := ctx.FormFile("document")
	if err != nil {
		document = nil
	}

	project, err := c.ProjectService.Create(ctx.Request.Context(), name, description, document, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Created(ctx, project)
}

// Get godoc
// @Summary 获取项目详情
// @Description 返回项目及其全部步骤和队伍
// @Tags 项目
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Success 200 {object} util.Response{data=model.Project} "成功"
// @Failure 404 {object} util.Response "项目不存在"
// @Router /api/projects/{projectId} [get]
func (c *ProjectController) Get(ctx *gin.Context) {
	project, err := c.ProjectService.Get(util.MustParseUint(ctx.Param("projectId")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, project)
}

// List godoc
// @Summary 项目分页列表
// @Description 支持按名称模糊搜索，ordering 以 "-" 前缀表示降序
// @Tags 项目
// @Produce  json
// @Security ApiKeyAuth
// @Param   search query string false "名称关键字"
// @Param   ordering query string false "排序字段：id/name/score/createdAt"
// @Param   page query int false "页码"
// @Param   limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/projects [get]
func (c *ProjectController) List(ctx *gin.Context) {
	page := util.ParsePositiveInt(ctx.Query("page"), 1)
	limit := util.ParsePositiveInt(ctx.Query("limit"), 20)

	projects, total, err := c.ProjectService.List(ctx.Query("search"), ctx.Query("ordering"), page, limit)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{
		List:       projects,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(limit))),
		Page:       page,
		Limit:      limit,
	})
}

type UpdateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Update godoc
// @Summary 更新项目
// @Tags 项目
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   body body UpdateProjectRequest true "要更新的字段"
// @Success 200 {object} util.Response{data=model.Project} "成功"
// @Router /api/projects/{projectId} [put]
func (c *ProjectController) Update(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	var req UpdateProjectRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	project, err := c.ProjectService.Update(util.MustParseUint(ctx.Param("projectId")), req.Name, req.Description, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, project)
}

// UploadDocument godoc
// @Summary 上传项目文档
// @Description 替换项目文档，旧文档清理
// @Tags 项目
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Param   document formData file true "项目文档"
// @Success 200 {object} util.Response{data=model.Project} "成功"
// @Router /api/projects/{projectId}/document [post]
func (c *ProjectController) UploadDocument(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	document, err := ctx.FormFile("document")
	if err != nil {
		util.BadRequest(ctx, "document file is required")
		return
	}

	project, err := c.ProjectService.UploadDocument(ctx.Request.Context(), util.MustParseUint(ctx.Param("projectId")), document, actor)
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.Success(ctx, project)
}

// DownloadDocument godoc
// @Summary 下载项目文档
// @Description 重定向到文档的存储地址
// @Tags 项目
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Success 302 "重定向到文档"
// @Failure 404 {object} util.Response "项目没有文档"
// @Router /api/projects/{projectId}/document [get]
func (c *ProjectController) DownloadDocument(ctx *gin.Context) {
	project, err := c.ProjectService.Get(util.MustParseUint(ctx.Param("projectId")))
	if err != nil {
		util.RespondError(ctx, err)
		return
	}
	if project.DocumentPath == "" {
		util.Error(ctx, http.StatusNotFound, "Project has no document")
		return
	}

	ctx.Redirect(http.StatusFound, c.ProjectService.DocumentURL(project))
}

// Delete godoc
// @Summary 删除项目
// @Description 级联删除步骤、尝试、文件和评论，并清理存储产物
// @Tags 项目
// @Produce  json
// @Security ApiKeyAuth
// @Param   projectId path int true "项目ID"
// @Success 204 "删除成功"
// @Router /api/projects/{projectId} [delete]
func (c *ProjectController) Delete(ctx *gin.Context) {
	actor, ok := resolveActor(ctx, c.UserService)
	if !ok {
		return
	}

	if err := c.ProjectService.Delete(ctx.Request.Context(), util.MustParseUint(ctx.Param("projectId")), actor); err != nil {
		util.RespondError(ctx, err)
		return
	}
	util.NoContent(ctx)
}
