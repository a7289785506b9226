package service

import (
	"context"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"hackathon_backend/internal/model"
	"hackathon_backend/internal/repository"
	"hackathon_backend/internal/util"
	"hackathon_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StepService 步骤评审流程的状态机
//
// 状态流转：
//
//	NOT_STARTED -> IN_PROGRESS -> {SUBMITTED, TIME_EXCEEDED} -> ACCEPTED
//	                                      |                        (终态)
//	                                      +--> NOT_STARTED (驳回重试)
//
// 不变式：
//   - 每个步骤同一时刻至多一个未提交的尝试（事务内对步骤行加锁保证）
//   - 第N步开始的前提是第N-1步已 ACCEPTED
//   - 超时只在提交时判定一次，之后不再重算
type StepService struct {
	StepRepo    *repository.StepRepository
	ProjectRepo *repository.ProjectRepository
	Storage     *StorageService
	Notifier    *NotificationService
	Clock       Clock
	DB          *gorm.DB
}

func NewStepService(
	stepRepo *repository.StepRepository,
	projectRepo *repository.ProjectRepository,
	storage *StorageService,
	notifier *NotificationService,
	db *gorm.DB,
) *StepService {
	return &StepService{
		StepRepo:    stepRepo,
		ProjectRepo: projectRepo,
		Storage:     storage,
		Notifier:    notifier,
		Clock:       RealClock{},
		DB:          db,
	}
}

func (s *StepService) getStepOr404(repo *repository.StepRepository, projectID uint, stepNum int, q repository.StepQuery) (*model.Step, error) {
	if stepNum < 1 || stepNum > util.StepsPerProject {
		return nil, util.NotFoundError("Step not found")
	}
	step, err := repo.GetStep(projectID, stepNum, q)
	if err == gorm.ErrRecordNotFound {
		return nil, util.NotFoundError("Step not found")
	}
	if err != nil {
		return nil, err
	}
	return step, nil
}

// getStepForActor 加载步骤并校验访问权：导师全量可见，参赛者必须属于项目的队伍
func (s *StepService) getStepForActor(projectID uint, stepNum int, actor model.Actor, q repository.StepQuery) (*model.Step, error) {
	q.WithProject = true
	step, err := s.getStepOr404(s.StepRepo, projectID, stepNum, q)
	if err != nil {
		return nil, err
	}
	if actor.IsMentor {
		return step, nil
	}
	if step.Project == nil || step.Project.Team == nil {
		return nil, util.NotFoundError("Team for this project is not found")
	}
	if err := RequireTeamMemberOrMentor(actor, step.Project.Team.ID); err != nil {
		return nil, err
	}
	return step, nil
}

// reload 操作完成后重新加载完整的步骤聚合
func (s *StepService) reload(projectID uint, stepNum int) (*model.Step, error) {
	return s.getStepOr404(s.StepRepo, projectID, stepNum, repository.StepQuery{
		WithAttempts: true,
		WithFiles:    true,
		WithComments: true,
	})
}

// StartStep 队长开始一个步骤：创建新尝试并启动计时
func (s *StepService) StartStep(projectID uint, stepNum int, actor model.Actor) (*model.Step, error) {
	if err := RequireCaptain(actor); err != nil {
		return nil, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.StepRepo.WithTx(tx)

		step, err := s.getStepOr404(repo, projectID, stepNum, repository.StepQuery{
			WithProject: true,
			ForUpdate:   true,
		})
		if err != nil {
			return err
		}

		// 顺序解锁：上一步必须已验收
		if stepNum > 1 {
			previous, err := s.getStepOr404(repo, projectID, stepNum-1, repository.StepQuery{})
			if util.IsKind(err, util.KindNotFound) {
				return util.NotFoundError("Previous step not found")
			}
			if err != nil {
				return err
			}
			if previous.Status != model.StatusAccepted {
				return util.ConflictError("Cannot start the new step until the previous step is finished")
			}
		}

		if step.Project == nil || step.Project.Team == nil {
			return util.NotFoundError("Team for this project is not found")
		}
		if err := RequireSameTeam(actor, step.Project.Team.ID); err != nil {
			return err
		}

		if step.Status != model.StatusNotStarted {
			return util.ConflictError("Step is already started")
		}

		// 行锁之下再查一次，防止并发 start 造出两个未提交尝试
		open, err := repo.GetOpenAttempt(step.ID, false)
		if err != nil {
			return err
		}
		if open != nil {
			return util.ConflictError("Step is already started")
		}

		now := s.Clock.Now()
		attempt := &model.StepAttempt{
			StepID:    step.ID,
			StartedAt: now,
			EndTimeAt: ComputeEndTime(now, step.TimerMinutes),
		}
		if err := repo.CreateAttempt(attempt); err != nil {
			return err
		}

		return repo.SetStepStatus(step.ID, model.StatusInProgress)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(projectID, stepNum)
}

// SetStepTimer 导师调整步骤计时；步骤进行中时同步推后当前尝试的截止时间
func (s *StepService) SetStepTimer(projectID uint, stepNum, timerMinutes int, actor model.Actor) (*model.Step, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}
	if timerMinutes < 1 {
		return nil, util.BadRequestError("Timer must be at least 1 minute")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.StepRepo.WithTx(tx)

		step, err := s.getStepOr404(repo, projectID, stepNum, repository.StepQuery{ForUpdate: true})
		if err != nil {
			return err
		}

		if err := repo.UpdateStepFields(step.ID, map[string]interface{}{"timer_minutes": timerMinutes}); err != nil {
			return err
		}

		if step.Status != model.StatusInProgress {
			return nil
		}

		open, err := repo.GetOpenAttempt(step.ID, true)
		if err != nil {
			return err
		}
		if open == nil {
			// 没有进行中的尝试，只更新计时字段
			return nil
		}
		return repo.UpdateAttemptEndTime(open, timerMinutes)
	})
	if err != nil {
		return nil, err
	}

	return s.reload(projectID, stepNum)
}

// SubmitStep 队长提交步骤：关闭当前尝试，超时判定只发生在这一刻
func (s *StepService) SubmitStep(
	ctx context.Context,
	projectID uint,
	stepNum int,
	text string,
	addFiles []*multipart.FileHeader,
	removeFileIDs []uint,
	actor model.Actor,
) (*model.Step, error) {
	if err := RequireCaptain(actor); err != nil {
		return nil, err
	}
	if len(addFiles) > util.MaxStepFiles {
		return nil, util.BadRequestError(fmt.Sprintf("Too many files to send. Maximum is %d", util.MaxStepFiles))
	}

	var uploaded []*FileUploadResult
	var removedPaths []string
	var events []Event

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.StepRepo.WithTx(tx)

		step, err := s.getStepOr404(repo, projectID, stepNum, repository.StepQuery{
			WithProject: true,
			WithFiles:   true,
			ForUpdate:   true,
		})
		if err != nil {
			return err
		}

		if step.Project == nil || step.Project.Team == nil {
			return util.NotFoundError("Team for this project is not found")
		}
		if err := RequireSameTeam(actor, step.Project.Team.ID); err != nil {
			return err
		}

		if step.Status != model.StatusInProgress {
			return util.ConflictError("Cannot submit step. First, start the step")
		}

		open, err := repo.GetOpenAttempt(step.ID, true)
		if err != nil {
			return err
		}
		if open == nil {
			return util.ConflictError("No active attempt to submit")
		}

		// 待删除文件必须都属于当前步骤
		filesToRemove, err := resolveFilesToRemove(step.Files, removeFileIDs)
		if err != nil {
			return err
		}

		now := s.Clock.Now()
		newStatus := model.StatusSubmitted
		if IsAttemptExceeded(open, now) {
			newStatus = model.StatusTimeExceeded
		}

		if err := repo.MarkAttemptSubmitted(open, now); err != nil {
			return err
		}
		if err := repo.UpdateStepFields(step.ID, map[string]interface{}{
			"text":   text,
			"status": newStatus,
		}); err != nil {
			return err
		}

		if len(filesToRemove) > 0 {
			if err := repo.DeleteStepFilesByIDs(step.ID, removeFileIDs); err != nil {
				return err
			}
			for _, f := range filesToRemove {
				removedPaths = append(removedPaths, f.FilePath)
			}
		}

		// 新文件先落盘，提交失败后补偿删除
		pathSegments := []string{"projects", strconv.Itoa(int(projectID)), "steps", strconv.Itoa(stepNum)}
		var newRecords []model.StepFile
		for _, fh := range addFiles {
			result, err := s.Storage.UploadValidated(ctx, fh, pathSegments, util.StepFileMimeTypes, util.StepFileSizeLimitMB)
			if err != nil {
				return err
			}
			uploaded = append(uploaded, result)
			newRecords = append(newRecords, model.StepFile{
				StepID:   step.ID,
				Name:     result.Name,
				FilePath: result.RelativePath,
				MimeType: result.MimeType,
				Size:     result.Size,
			})
		}
		if err := repo.CreateStepFiles(newRecords); err != nil {
			return err
		}

		if err := s.ProjectRepo.WithTx(tx).SetNewSubmission(projectID, true); err != nil {
			return err
		}

		events = append(events, Event{
			Type:        EventStepSubmitted,
			ProjectID:   projectID,
			ProjectName: step.Project.Name,
			StepNumber:  stepNum,
		})
		return nil
	})
	if err != nil {
		// 补偿清理：事务失败时删掉刚写入的文件，不留孤儿
		for _, f := range uploaded {
			if cleanupErr := s.Storage.Delete(ctx, f.RelativePath); cleanupErr != nil {
				logger.Log.Error("failed to clean up uploaded file after rollback",
					zap.String("path", f.RelativePath),
					zap.Error(cleanupErr))
			}
		}
		return nil, err
	}

	// 被移除文件的存储产物在提交成功后清理
	for _, p := range removedPaths {
		if err := s.Storage.Delete(ctx, p); err != nil {
			logger.Log.Warn("failed to remove step file from storage",
				zap.String("path", p),
				zap.Error(err))
		}
	}

	s.Notifier.Dispatch(events)
	return s.reload(projectID, stepNum)
}

func resolveFilesToRemove(existing []model.StepFile, removeFileIDs []uint) ([]model.StepFile, error) {
	if len(removeFileIDs) == 0 {
		return nil, nil
	}
	byID := make(map[uint]model.StepFile, len(existing))
	for _, f := range existing {
		byID[f.ID] = f
	}
	var invalid []string
	var result []model.StepFile
	for _, id := range removeFileIDs {
		f, ok := byID[id]
		if !ok {
			invalid = append(invalid, strconv.Itoa(int(id)))
			continue
		}
		result = append(result, f)
	}
	if len(invalid) > 0 {
		return nil, util.BadRequestError("Some files do not belong to this step: " + strings.Join(invalid, ", "))
	}
	return result, nil
}

// AcceptStep 导师验收步骤并打分，步骤进入终态
func (s *StepService) AcceptStep(projectID uint, stepNum, score int, actor model.Actor) (*model.Step, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}
	if score < 0 {
		return nil, util.BadRequestError("Score must not be negative")
	}

	var events []Event

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.StepRepo.WithTx(tx)

		step, err := s.getStepOr404(repo, projectID, stepNum, repository.StepQuery{
			WithProject: true,
			ForUpdate:   true,
		})
		if err != nil {
			return err
		}

		if step.Status != model.StatusSubmitted && step.Status != model.StatusTimeExceeded {
			return util.ConflictError("Step has not been submitted")
		}

		if err := repo.UpdateStepFields(step.ID, map[string]interface{}{
			"score":  score,
			"status": model.StatusAccepted,
		}); err != nil {
			return err
		}

		// 项目总分 = 各步骤得分之和
		var totalScore int
		if err := tx.Model(&model.Step{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(SUM(score), 0)").
			Scan(&totalScore).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Project{}).
			Where("id = ?", projectID).
			Updates(map[string]interface{}{
				"score":          totalScore,
				"new_submission": false,
			}).Error; err != nil {
			return err
		}

		if step.Project != nil && step.Project.Team != nil {
			events = append(events, Event{
				Type:        EventStepAccepted,
				ProjectID:   projectID,
				ProjectName: step.Project.Name,
				StepNumber:  stepNum,
				TeamID:      step.Project.Team.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Dispatch(events)
	return s.reload(projectID, stepNum)
}

// RejectStep 导师驳回步骤，步骤回到 NOT_STARTED 等待重试
//
// 计时推算规则：未显式给新计时且状态为 SUBMITTED 时，
// 把上次提交剩余的时间带入重试；TIME_EXCEEDED 没有剩余时间可推算，必须显式给值
func (s *StepService) RejectStep(projectID uint, stepNum int, timerMinutes *int, actor model.Actor) (*model.Step, error) {
	if err := RequireMentor(actor); err != nil {
		return nil, err
	}
	if timerMinutes != nil && *timerMinutes < 1 {
		return nil, util.BadRequestError("Timer must be at least 1 minute")
	}

	var events []Event

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.StepRepo.WithTx(tx)

		step, err := s.getStepOr404(repo, projectID, stepNum, repository.StepQuery{
			WithProject: true,
			ForUpdate:   true,
		})
		if err != nil {
			return err
		}

		if step.Status != model.StatusSubmitted && step.Status != model.StatusTimeExceeded {
			return util.ConflictError("Step has not been submitted")
		}

		var newTimer int
		switch {
		case timerMinutes != nil:
			newTimer = *timerMinutes
		case step.Status == model.StatusSubmitted:
			last, err := repo.GetLastSubmittedAttempt(step.ID)
			if err != nil {
				return err
			}
			if last == nil || last.SubmittedAt == nil {
				return util.ConflictError("No submitted attempt found to infer timer. Provide a new timer value.")
			}
			newTimer = InferRemainingMinutes(last)
		default:
			// 超时提交没有剩余时间可推算
			return util.ConflictError("New timer value is required")
		}

		if err := repo.UpdateStepFields(step.ID, map[string]interface{}{
			"timer_minutes": newTimer,
			"status":        model.StatusNotStarted,
		}); err != nil {
			return err
		}
		if err := s.ProjectRepo.WithTx(tx).SetNewSubmission(projectID, false); err != nil {
			return err
		}

		if step.Project != nil && step.Project.Team != nil {
			events = append(events, Event{
				Type:        EventStepRejected,
				ProjectID:   projectID,
				ProjectName: step.Project.Name,
				StepNumber:  stepNum,
				TeamID:      step.Project.Team.ID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Dispatch(events)
	return s.reload(projectID, stepNum)
}

// GetStep 返回带尝试/文件/评论的完整步骤
func (s *StepService) GetStep(projectID uint, stepNum int, actor model.Actor) (*model.Step, error) {
	return s.getStepForActor(projectID, stepNum, actor, repository.StepQuery{
		WithAttempts: true,
		WithFiles:    true,
		WithComments: true,
	})
}

// GetComments 按创建时间升序返回步骤评论
func (s *StepService) GetComments(projectID uint, stepNum int, actor model.Actor) ([]model.StepComment, error) {
	step, err := s.getStepForActor(projectID, stepNum, actor, repository.StepQuery{})
	if err != nil {
		return nil, err
	}
	return s.StepRepo.GetComments(step.ID)
}

// CreateComment 在步骤下留言，可附带最多5个文件
func (s *StepService) CreateComment(
	ctx context.Context,
	projectID uint,
	stepNum int,
	text string,
	files []*multipart.FileHeader,
	actor model.Actor,
) (*model.StepComment, error) {
	step, err := s.getStepForActor(projectID, stepNum, actor, repository.StepQuery{})
	if err != nil {
		return nil, err
	}
	if step.Status == model.StatusNotStarted {
		return nil, util.ConflictError("Step has not been started")
	}
	if len(files) > util.MaxCommentFiles {
		return nil, util.BadRequestError(fmt.Sprintf("Too many files to send. Maximum is %d", util.MaxCommentFiles))
	}

	// 文件先落盘，后续失败时补偿删除
	pathSegments := []string{"projects", strconv.Itoa(int(projectID)), "steps", strconv.Itoa(stepNum), "comments"}
	var uploaded []*FileUploadResult
	cleanup := func() {
		for _, f := range uploaded {
			if err := s.Storage.Delete(ctx, f.RelativePath); err != nil {
				logger.Log.Error("failed to clean up comment file",
					zap.String("path", f.RelativePath),
					zap.Error(err))
			}
		}
	}
	for _, fh := range files {
		result, err := s.Storage.UploadValidated(ctx, fh, pathSegments, util.StepFileMimeTypes, util.StepFileSizeLimitMB)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, result)
	}

	comment := &model.StepComment{
		StepID: step.ID,
		UserID: actor.UserID,
		Text:   text,
	}
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.StepRepo.WithTx(tx)
		if err := repo.CreateComment(comment); err != nil {
			return err
		}
		var records []model.StepCommentFile
		for _, f := range uploaded {
			records = append(records, model.StepCommentFile{
				CommentID: comment.ID,
				Name:      f.Name,
				FilePath:  f.RelativePath,
				MimeType:  f.MimeType,
				Size:      f.Size,
			})
		}
		return repo.CreateCommentFiles(records)
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	return s.StepRepo.GetComment(comment.ID, true)
}

// DeleteComment 仅评论作者或导师可删除，先清理文件产物再删记录
func (s *StepService) DeleteComment(ctx context.Context, projectID uint, stepNum int, commentID uint, actor model.Actor) error {
	step, err := s.getStepOr404(s.StepRepo, projectID, stepNum, repository.StepQuery{})
	if err != nil {
		return err
	}

	comment, err := s.StepRepo.GetComment(commentID, true)
	if err != nil {
		return err
	}
	if comment == nil || comment.StepID != step.ID {
		return util.NotFoundError("Comment not found")
	}

	if comment.UserID != actor.UserID && !actor.IsMentor {
		return util.ForbiddenError("You can delete only your comments")
	}

	for _, f := range comment.Files {
		if err := s.Storage.Delete(ctx, f.FilePath); err != nil {
			logger.Log.Warn("failed to remove comment file from storage",
				zap.String("path", f.FilePath),
				zap.Error(err))
		}
	}

	return s.StepRepo.DeleteComment(commentID)
}
