package model

// Actor 当前调用者的角色事实，作为参数传入各业务操作
// 授权判定只依赖这里的字段，不依赖请求框架
type Actor struct {
	UserID    uint
	IsMentor  bool
	TeamID    *uint
	IsCaptain bool
}

func (a Actor) InTeam(teamID uint) bool {
	return a.TeamID != nil && *a.TeamID == teamID
}
