package repository

import (
	"strings"

	"hackathon_backend/internal/model"

	"gorm.io/gorm"
)

type ProjectRepository struct {
	DB *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{DB: db}
}

// WithTx 返回绑定到事务的仓储副本
func (r *ProjectRepository) WithTx(tx *gorm.DB) *ProjectRepository {
	return &ProjectRepository{DB: tx}
}

func (r *ProjectRepository) Create(project *model.Project) error {
	return r.DB.Create(project).Error
}

func (r *ProjectRepository) FindByID(id uint, withSteps, withTeam bool) (*model.Project, error) {
	query := r.DB
	if withSteps {
		query = query.Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number ASC")
		})
	}
	if withTeam {
		query = query.Preload("Team")
	}
	var project model.Project
	err := query.First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// 可排序字段白名单，防止注入
var projectOrderColumns = map[string]string{
	"id":        "id",
	"name":      "name",
	"score":     "score",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// List 按名称模糊搜索并分页，ordering 以 "-" 前缀表示降序
func (r *ProjectRepository) List(search, ordering string, page, limit int) ([]model.Project, int64, error) {
	query := r.DB.Model(&model.Project{})
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		ordering = ordering[1:]
	}
	column, ok := projectOrderColumns[ordering]
	if !ok {
		column = "id"
	}

	var projects []model.Project
	err := query.Preload("Team").
		Order(column + " " + direction).
		Offset((page - 1) * limit).Limit(limit).
		Find(&projects).Error
	return projects, total, err
}

func (r *ProjectRepository) Update(project *model.Project) error {
	return r.DB.Save(project).Error
}

// SetNewSubmission 更新项目的待评审标志
func (r *ProjectRepository) SetNewSubmission(projectID uint, value bool) error {
	return r.DB.Model(&model.Project{}).
		Where("id = ?", projectID).
		Update("new_submission", value).Error
}

// Delete 级联删除项目及其步骤、尝试、文件和评论，队伍保留但解绑
func (r *ProjectRepository) Delete(projectID uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var stepIDs []uint
		if err := tx.Model(&model.Step{}).
			Where("project_id = ?", projectID).
			Pluck("id", &stepIDs).Error; err != nil {
			return err
		}

		if len(stepIDs) > 0 {
			var commentIDs []uint
			if err := tx.Model(&model.StepComment{}).
				Where("step_id IN ?", stepIDs).
				Pluck("id", &commentIDs).Error; err != nil {
				return err
			}
			if len(commentIDs) > 0 {
				if err := tx.Where("comment_id IN ?", commentIDs).Delete(&model.StepCommentFile{}).Error; err != nil {
					return err
				}
			}
			if err := tx.Where("step_id IN ?", stepIDs).Delete(&model.StepComment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("step_id IN ?", stepIDs).Delete(&model.StepFile{}).Error; err != nil {
				return err
			}
			if err := tx.Where("step_id IN ?", stepIDs).Delete(&model.StepAttempt{}).Error; err != nil {
				return err
			}
			if err := tx.Where("project_id = ?", projectID).Delete(&model.Step{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.Team{}).
			Where("project_id = ?", projectID).
			Update("project_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&model.Project{}, projectID).Error
	})
}

// StepIDs 返回项目全部步骤ID
func (r *ProjectRepository) StepIDs(projectID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Step{}).
		Where("project_id = ?", projectID).
		Pluck("id", &ids).Error
	return ids, err
}
