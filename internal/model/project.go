package model

import "time"

// ProjectStatus 同时作为步骤状态使用
type ProjectStatus string

const (
	StatusNotStarted   ProjectStatus = "Not started"
	StatusInProgress   ProjectStatus = "In progress"
	StatusSubmitted    ProjectStatus = "Submitted for review"
	StatusAccepted     ProjectStatus = "Accepted"
	StatusTimeExceeded ProjectStatus = "Time exceeded"
)

type Project struct {
	BaseModel
	Name          string `gorm:"size:250;not null" json:"name"`
	Description   string `gorm:"size:500;not null" json:"description"`
	DocumentPath  string `gorm:"size:500" json:"documentPath"`
	Score         int    `gorm:"default:0" json:"score"`
	NewSubmission bool   `gorm:"default:false" json:"newSubmission"`
	Steps         []Step `gorm:"foreignKey:ProjectID" json:"steps,omitempty"`
	Team          *Team  `gorm:"foreignKey:ProjectID" json:"team,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

type Step struct {
	BaseModel
	ProjectID    uint          `gorm:"not null;uniqueIndex:idx_project_step,priority:1" json:"projectId"`
	StepNumber   int           `gorm:"not null;uniqueIndex:idx_project_step,priority:2" json:"stepNumber"`
	Text         string        `gorm:"type:text" json:"text"`
	Score        int           `gorm:"default:0" json:"score"`
	TimerMinutes int           `gorm:"not null" json:"timerMinutes"`
	Status       ProjectStatus `gorm:"size:50;not null" json:"status"`
	Project      *Project      `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Attempts     []StepAttempt `gorm:"foreignKey:StepID" json:"attempts,omitempty"`
	Files        []StepFile    `gorm:"foreignKey:StepID" json:"files,omitempty"`
	Comments     []StepComment `gorm:"foreignKey:StepID" json:"comments,omitempty"`
}

func (Step) TableName() string {
	return "steps"
}

// StepAttempt 一次计时的作答会话，SubmittedAt 为空表示进行中
type StepAttempt struct {
	BaseModel
	StepID      uint       `gorm:"index;not null" json:"stepId"`
	StartedAt   time.Time  `gorm:"not null" json:"startedAt"`
	EndTimeAt   time.Time  `gorm:"not null" json:"endTimeAt"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

func (StepAttempt) TableName() string {
	return "step_attempts"
}

type StepFile struct {
	BaseModel
	StepID   uint   `gorm:"index;not null" json:"stepId"`
	Name     string `gorm:"size:250;not null" json:"name"`
	FilePath string `gorm:"size:500;not null" json:"filePath"`
	MimeType string `gorm:"size:100" json:"mimeType"`
	Size     int64  `json:"size"`
}

func (StepFile) TableName() string {
	return "step_files"
}

type StepComment struct {
	BaseModel
	StepID uint              `gorm:"index;not null" json:"stepId"`
	UserID uint              `gorm:"index;not null" json:"userId"`
	Text   string            `gorm:"type:text;not null" json:"text"`
	User   User              `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Files  []StepCommentFile `gorm:"foreignKey:CommentID" json:"files,omitempty"`
}

func (StepComment) TableName() string {
	return "step_comments"
}

type StepCommentFile struct {
	BaseModel
	CommentID uint   `gorm:"index;not null" json:"commentId"`
	Name      string `gorm:"size:250;not null" json:"name"`
	FilePath  string `gorm:"size:500;not null" json:"filePath"`
	MimeType  string `gorm:"size:100" json:"mimeType"`
	Size      int64  `json:"size"`
}

func (StepCommentFile) TableName() string {
	return "step_comment_files"
}
