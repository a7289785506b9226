package service

import (
	"context"
	"mime/multipart"
	"strconv"

	"hackathon_backend/internal/model"
	"hackathon_backend/internal/repository"
	"hackathon_backend/internal/util"
	"hackathon_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProjectService struct {
	ProjectRepo *repository.ProjectRepository
	Storage     *StorageService
	DB          *gorm.DB
}

func NewProjectService(projectRepo *repository.ProjectRepository, storage *StorageService, db *gorm.DB) *ProjectService {
	return &ProjectService{ProjectRepo: projectRepo, Storage: storage, DB: db}
}

// Create 新建项目并初始化15个未开始的评审步骤
func (s *ProjectService) Create(ctx context.Context, name, description string, document *multipart.FileHeader, actor model.Actor) (*model.Project, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}

	project := &model.Project{
		Name:        name,
		Description: description,
	}
	for i := 1; i <= util.StepsPerProject; i++ {
		project.Steps = append(project.Steps, model.Step{
			StepNumber:   i,
			Status:       model.StatusNotStarted,
			TimerMinutes: util.DefaultStepTimerMinutes,
		})
	}

	var uploadedPath string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.ProjectRepo.WithTx(tx)
		if err := repo.Create(project); err != nil {
			return err
		}

		if document != nil {
			result, err := s.Storage.UploadValidated(ctx, document,
				[]string{"projects", strconv.Itoa(int(project.ID)), "documents"},
				util.ProjectDocumentMimeTypes, util.DocumentSizeLimitMB)
			if err != nil {
				return err
			}
			uploadedPath = result.RelativePath
			return tx.Model(project).Update("document_path", result.RelativePath).Error
		}
		return nil
	})
	if err != nil {
		// 文件已落盘但事务失败，补偿删除
		if uploadedPath != "" {
			if cleanupErr := s.Storage.Delete(ctx, uploadedPath); cleanupErr != nil {
				logger.Log.Error("failed to clean up project document after rollback",
					zap.String("path", uploadedPath),
					zap.Error(cleanupErr))
			}
		}
		return nil, err
	}

	return s.Get(project.ID)
}

func (s *ProjectService) Get(projectID uint) (*model.Project, error) {
	project, err := s.ProjectRepo.FindByID(projectID, true, true)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundError("Project not found")
	}
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(search, ordering string, page, limit int) ([]model.Project, int64, error) {
	return s.ProjectRepo.List(search, ordering, page, limit)
}

func (s *ProjectService) Update(projectID uint, name, description string, actor model.Actor) (*model.Project, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}

	project, err := s.Get(projectID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		project.Name = name
	}
	if description != "" {
		project.Description = description
	}
	if err := s.ProjectRepo.Update(project); err != nil {
		return nil, err
	}
	return project, nil
}

// UploadDocument 上传或替换项目文档，旧文档在落库成功后清理
func (s *ProjectService) UploadDocument(ctx context.Context, projectID uint, document *multipart.FileHeader, actor model.Actor) (*model.Project, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}

	project, err := s.Get(projectID)
	if err != nil {
		return nil, err
	}

	result, err := s.Storage.UploadValidated(ctx, document,
		[]string{"projects", strconv.Itoa(int(projectID)), "documents"},
		util.ProjectDocumentMimeTypes, util.DocumentSizeLimitMB)
	if err != nil {
		return nil, err
	}

	oldPath := project.DocumentPath
	project.DocumentPath = result.RelativePath
	if err := s.ProjectRepo.Update(project); err != nil {
		if cleanupErr := s.Storage.Delete(ctx, result.RelativePath); cleanupErr != nil {
			logger.Log.Error("failed to clean up project document after rollback",
				zap.String("path", result.RelativePath),
				zap.Error(cleanupErr))
		}
		return nil, err
	}

	if oldPath != "" {
		if err := s.Storage.Delete(ctx, oldPath); err != nil {
			logger.Log.Warn("failed to remove replaced project document",
				zap.String("path", oldPath),
				zap.Error(err))
		}
	}
	return project, nil
}

// DocumentURL 项目文档的可访问地址
func (s *ProjectService) DocumentURL(project *model.Project) string {
	return s.Storage.GetURL(project.DocumentPath)
}

// Delete 删除项目及全部评审数据，成功后清理存储产物
func (s *ProjectService) Delete(ctx context.Context, projectID uint, actor model.Actor) error {
	if err := RequireMentor(actor); err != nil {
		return err
	}
	if _, err := s.Get(projectID); err != nil {
		return err
	}
	if err := s.ProjectRepo.Delete(projectID); err != nil {
		return err
	}

	prefix := "projects/" + strconv.Itoa(int(projectID))
	if err := s.Storage.DeletePrefix(ctx, prefix); err != nil {
		logger.Log.Warn("failed to remove project files from storage",
			zap.String("prefix", prefix),
			zap.Error(err))
	}
	return nil
}
