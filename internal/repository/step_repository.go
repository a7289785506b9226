package repository

import (
	"time"

	"hackathon_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StepQuery 控制加载步骤时的关联预加载
type StepQuery struct {
	WithAttempts    bool
	WithFiles       bool
	WithComments    bool
	WithProject     bool
	WithTeamMembers bool
	ForUpdate       bool
}

type StepRepository struct {
	DB *gorm.DB
}

func NewStepRepository(db *gorm.DB) *StepRepository {
	return &StepRepository{DB: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *StepRepository) WithTx(tx *gorm.DB) *StepRepository {
	return &StepRepository{DB: tx}
}

// lock 行级锁，FOR UPDATE 仅在 MySQL 方言下生效
func (r *StepRepository) lock(query *gorm.DB) *gorm.DB {
	if r.DB.Dialector.Name() == "mysql" {
		return query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return query
}

func (r *StepRepository) GetStep(projectID uint, stepNum int, q StepQuery) (*model.Step, error) {
	query := r.DB.Where("project_id = ? AND step_number = ?", projectID, stepNum)

	if q.ForUpdate {
		query = r.lock(query)
	}
	if q.WithAttempts {
		query = query.Preload("Attempts", func(db *gorm.DB) *gorm.DB {
			return db.Order("started_at ASC")
		})
	}
	if q.WithFiles {
		query = query.Preload("Files")
	}
	if q.WithComments {
		query = query.Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).Preload("Comments.User").Preload("Comments.Files")
	}
	if q.WithProject || q.WithTeamMembers {
		query = query.Preload("Project").Preload("Project.Team")
	}
	if q.WithTeamMembers {
		query = query.Preload("Project.Team.Members")
	}

	var step model.Step
	if err := query.First(&step).Error; err != nil {
		return nil, err
	}
	return &step, nil
}

func (r *StepRepository) SetStepStatus(stepID uint, status model.ProjectStatus) error {
	return r.DB.Model(&model.Step{}).
		Where("id = ?", stepID).
		Update("status", status).Error
}

func (r *StepRepository) UpdateStepFields(stepID uint, fields map[string]interface{}) error {
	return r.DB.Model(&model.Step{}).
		Where("id = ?", stepID).
		Updates(fields).Error
}

func (r *StepRepository) CreateAttempt(attempt *model.StepAttempt) error {
	return r.DB.Create(attempt).Error
}

// GetOpenAttempt 返回未提交的进行中尝试，不变式保证每个步骤至多一个
func (r *StepRepository) GetOpenAttempt(stepID uint, forUpdate bool) (*model.StepAttempt, error) {
	query := r.DB.Where("step_id = ? AND submitted_at IS NULL", stepID)
	if forUpdate {
		query = r.lock(query)
	}
	var attempt model.StepAttempt
	err := query.First(&attempt).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *StepRepository) GetLastSubmittedAttempt(stepID uint) (*model.StepAttempt, error) {
	var attempt model.StepAttempt
	err := r.DB.Where("step_id = ? AND submitted_at IS NOT NULL", stepID).
		Order("submitted_at DESC").First(&attempt).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// UpdateAttemptEndTime 按新的分钟数从 started_at 重新推算截止时间
func (r *StepRepository) UpdateAttemptEndTime(attempt *model.StepAttempt, newTimerMinutes int) error {
	attempt.EndTimeAt = attempt.StartedAt.Add(time.Duration(newTimerMinutes) * time.Minute)
	return r.DB.Model(attempt).Update("end_time_at", attempt.EndTimeAt).Error
}

func (r *StepRepository) MarkAttemptSubmitted(attempt *model.StepAttempt, submittedAt time.Time) error {
	attempt.SubmittedAt = &submittedAt
	return r.DB.Model(attempt).Update("submitted_at", submittedAt).Error
}

func (r *StepRepository) CreateStepFiles(files []model.StepFile) error {
	if len(files) == 0 {
		return nil
	}
	return r.DB.Create(&files).Error
}

func (r *StepRepository) DeleteStepFilesByIDs(stepID uint, fileIDs []uint) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return r.DB.Where("step_id = ?", stepID).Delete(&model.StepFile{}, fileIDs).Error
}

func (r *StepRepository) GetComments(stepID uint) ([]model.StepComment, error) {
	var comments []model.StepComment
	err := r.DB.Where("step_id = ?", stepID).
		Order("created_at ASC").
		Preload("User").Preload("Files").
		Find(&comments).Error
	return comments, err
}

func (r *StepRepository) GetComment(commentID uint, withFiles bool) (*model.StepComment, error) {
	query := r.DB
	if withFiles {
		query = query.Preload("Files")
	}
	var comment model.StepComment
	err := query.First(&comment, commentID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *StepRepository) CreateComment(comment *model.StepComment) error {
	return r.DB.Create(comment).Error
}

func (r *StepRepository) CreateCommentFiles(files []model.StepCommentFile) error {
	if len(files) == 0 {
		return nil
	}
	return r.DB.Create(&files).Error
}

func (r *StepRepository) DeleteComment(commentID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", commentID).Delete(&model.StepCommentFile{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.StepComment{}, commentID).Error
	})
}
