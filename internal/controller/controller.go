package controller

import (
	"hackathon_backend/internal/model"
	"hackathon_backend/internal/service"
	"hackathon_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// resolveActor 把当前登录用户落实为授权主体，失败时已写好响应
func resolveActor(c *gin.Context, users *service.UserService) (model.Actor, bool) {
	claims := util.GetUserFromContext(c)
	if claims == nil {
		util.Unauthorized(c)
		return model.Actor{}, false
	}
	actor, err := users.ResolveActor(claims)
	if err != nil {
		util.LogInternalError(c, err)
		return model.Actor{}, false
	}
	return actor, true
}
