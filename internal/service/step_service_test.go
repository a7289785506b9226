package service

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hackathon_backend/internal/config"
	"hackathon_backend/internal/model"
	"hackathon_backend/internal/repository"
	"hackathon_backend/internal/util"
	"hackathon_backend/pkg/database"
	"hackathon_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type stepTestEnv struct {
	db         *gorm.DB
	svc        *StepService
	clock      *fakeClock
	uploadsDir string
	project    *model.Project
	team       *model.Team
	captain    model.Actor
	member     model.Actor
	mentor     model.Actor
}

func newStepTestEnv(t *testing.T) *stepTestEnv {
	t.Helper()

	if logger.Log == nil {
		logger.Log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	mentorUser := &model.User{FirstName: "Marina", LastName: "Orlova", Email: "mentor@example.com", Password: "x", Role: model.Mentor}
	captainUser := &model.User{FirstName: "Ivan", LastName: "Petrov", Email: "captain@example.com", Password: "x", Role: model.Participant}
	memberUser := &model.User{FirstName: "Olga", LastName: "Sidorova", Email: "member@example.com", Password: "x", Role: model.Participant}
	require.NoError(t, db.Create(mentorUser).Error)
	require.NoError(t, db.Create(captainUser).Error)
	require.NoError(t, db.Create(memberUser).Error)

	project := &model.Project{Name: "Pathfinder", Description: "Indoor navigation"}
	for i := 1; i <= util.StepsPerProject; i++ {
		project.Steps = append(project.Steps, model.Step{
			StepNumber:   i,
			Status:       model.StatusNotStarted,
			TimerMinutes: util.DefaultStepTimerMinutes,
		})
	}
	require.NoError(t, db.Create(project).Error)

	team := &model.Team{Name: "Night Owls", ProjectID: &project.ID}
	require.NoError(t, db.Create(team).Error)
	require.NoError(t, db.Create(&model.TeamMember{TeamID: team.ID, UserID: captainUser.ID, RoleName: "Captain"}).Error)
	require.NoError(t, db.Create(&model.TeamMember{TeamID: team.ID, UserID: memberUser.ID, RoleName: "Backend developer"}).Error)

	uploadsDir := t.TempDir()
	storage := &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: uploadsDir}}}
	notifier := &NotificationService{
		SMTP:     &config.SMTPConfig{Enabled: false},
		UserRepo: repository.NewUserRepository(db),
		TeamRepo: repository.NewTeamRepository(db),
	}

	clock := &fakeClock{now: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)}
	svc := NewStepService(repository.NewStepRepository(db), repository.NewProjectRepository(db), storage, notifier, db)
	svc.Clock = clock

	return &stepTestEnv{
		db:         db,
		svc:        svc,
		clock:      clock,
		uploadsDir: uploadsDir,
		project:    project,
		team:       team,
		captain:    model.Actor{UserID: captainUser.ID, TeamID: &team.ID, IsCaptain: true},
		member:     model.Actor{UserID: memberUser.ID, TeamID: &team.ID},
		mentor:     model.Actor{UserID: mentorUser.ID, IsMentor: true},
	}
}

func makeFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	return form.File["files"][0]
}

// 把步骤走完 start -> submit -> accept，用于解锁后续步骤
func (e *stepTestEnv) acceptThrough(t *testing.T, stepNum, score int) {
	t.Helper()
	_, err := e.svc.StartStep(e.project.ID, stepNum, e.captain)
	require.NoError(t, err)
	_, err = e.svc.SubmitStep(context.Background(), e.project.ID, stepNum, "done", nil, nil, e.captain)
	require.NoError(t, err)
	_, err = e.svc.AcceptStep(e.project.ID, stepNum, score, e.mentor)
	require.NoError(t, err)
}

func TestStartStepCreatesTimedAttempt(t *testing.T) {
	env := newStepTestEnv(t)

	step, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	assert.Equal(t, model.StatusInProgress, step.Status)
	require.Len(t, step.Attempts, 1)
	assert.WithinDuration(t, env.clock.now, step.Attempts[0].StartedAt, time.Second)
	assert.WithinDuration(t, env.clock.now.Add(30*time.Minute), step.Attempts[0].EndTimeAt, time.Second)
	assert.Nil(t, step.Attempts[0].SubmittedAt)
}

func TestStartStepAuthorization(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.member)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	_, err = env.svc.StartStep(env.project.ID, 1, env.mentor)
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestStartStepRequiresPreviousAccepted(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 2, env.captain)
	assert.True(t, util.IsKind(err, util.KindConflict))

	env.acceptThrough(t, 1, 10)

	step, err := env.svc.StartStep(env.project.ID, 2, env.captain)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, step.Status)
}

func TestStartStepTwiceConflicts(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	_, err = env.svc.StartStep(env.project.ID, 1, env.captain)
	assert.True(t, util.IsKind(err, util.KindConflict))
}

func TestStartStepUnknownStep(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 16, env.captain)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	_, err = env.svc.StartStep(9999, 1, env.captain)
	assert.True(t, util.IsKind(err, util.KindNotFound))
}

func TestSubmitWithinTimer(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	env.clock.advance(10 * time.Minute)
	step, err := env.svc.SubmitStep(context.Background(), env.project.ID, 1, "our solution", nil, nil, env.captain)
	require.NoError(t, err)

	assert.Equal(t, model.StatusSubmitted, step.Status)
	assert.Equal(t, "our solution", step.Text)
	require.Len(t, step.Attempts, 1)
	require.NotNil(t, step.Attempts[0].SubmittedAt)

	var project model.Project
	require.NoError(t, env.db.First(&project, env.project.ID).Error)
	assert.True(t, project.NewSubmission)
}

func TestSubmitAfterDeadlineMarksTimeExceeded(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	env.clock.advance(31 * time.Minute)
	step, err := env.svc.SubmitStep(context.Background(), env.project.ID, 1, "late", nil, nil, env.captain)
	require.NoError(t, err)

	assert.Equal(t, model.StatusTimeExceeded, step.Status)
}

func TestSubmitWithoutStartConflicts(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.SubmitStep(context.Background(), env.project.ID, 1, "text", nil, nil, env.captain)
	assert.True(t, util.IsKind(err, util.KindConflict))
}

func TestSubmitWithFiles(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	files := []*multipart.FileHeader{
		makeFileHeader(t, "report.txt", []byte("final report contents")),
		makeFileHeader(t, "notes.txt", []byte("meeting notes")),
	}
	step, err := env.svc.SubmitStep(context.Background(), env.project.ID, 1, "with files", files, nil, env.captain)
	require.NoError(t, err)

	require.Len(t, step.Files, 2)
	for _, f := range step.Files {
		assert.NotEmpty(t, f.FilePath)
		_, statErr := os.Stat(filepath.Join(env.uploadsDir, f.FilePath))
		assert.NoError(t, statErr)
	}
}

func TestSubmitRejectsForeignFileIDs(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	_, err = env.svc.SubmitStep(context.Background(), env.project.ID, 1, "text", nil, []uint{777}, env.captain)
	assert.True(t, util.IsKind(err, util.KindBadRequest))

	// 提交失败，步骤仍在进行中
	step, err := env.svc.GetStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, step.Status)
}

func TestSubmitCleansUpUploadsWhenCommitFails(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	step, err := env.svc.GetStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	// 人为制造落库冲突：同名唯一索引 + 预置的同名文件记录，
	// 让事务在文件已写入存储之后才失败
	require.NoError(t, env.db.Exec("CREATE UNIQUE INDEX idx_step_files_dedupe ON step_files(step_id, name)").Error)
	require.NoError(t, env.db.Create(&model.StepFile{StepID: step.ID, Name: "report.txt", FilePath: "seed/report.txt"}).Error)

	_, err = env.svc.SubmitStep(context.Background(), env.project.ID, 1, "doomed",
		[]*multipart.FileHeader{makeFileHeader(t, "report.txt", []byte("new contents"))}, nil, env.captain)
	require.Error(t, err)

	// 回滚后存储里不留孤儿文件
	var leftovers []string
	require.NoError(t, filepath.WalkDir(env.uploadsDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			leftovers = append(leftovers, path)
		}
		return nil
	}))
	assert.Empty(t, leftovers)

	// 文件表只剩预置那一行
	var fileCount int64
	require.NoError(t, env.db.Model(&model.StepFile{}).Where("step_id = ?", step.ID).Count(&fileCount).Error)
	assert.EqualValues(t, 1, fileCount)

	// 步骤和尝试都没被动过，可以正常重新提交
	current, err := env.svc.GetStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, current.Status)
	require.Len(t, current.Attempts, 1)
	assert.Nil(t, current.Attempts[0].SubmittedAt)

	var project model.Project
	require.NoError(t, env.db.First(&project, env.project.ID).Error)
	assert.False(t, project.NewSubmission)
}

func TestResubmitReplacesFiles(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	step, err := env.svc.SubmitStep(context.Background(), env.project.ID, 1, "v1",
		[]*multipart.FileHeader{makeFileHeader(t, "draft.txt", []byte("first draft"))}, nil, env.captain)
	require.NoError(t, err)
	require.Len(t, step.Files, 1)
	oldPath := step.Files[0].FilePath
	oldID := step.Files[0].ID

	// 驳回后重新提交，换掉旧文件
	_, err = env.svc.RejectStep(env.project.ID, 1, nil, env.mentor)
	require.NoError(t, err)
	_, err = env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	step, err = env.svc.SubmitStep(context.Background(), env.project.ID, 1, "v2",
		[]*multipart.FileHeader{makeFileHeader(t, "final.txt", []byte("final version"))}, []uint{oldID}, env.captain)
	require.NoError(t, err)

	require.Len(t, step.Files, 1)
	assert.Equal(t, "final.txt", step.Files[0].Name)

	_, statErr := os.Stat(filepath.Join(env.uploadsDir, oldPath))
	assert.True(t, os.IsNotExist(statErr))
}

func TestAcceptRecomputesProjectScore(t *testing.T) {
	env := newStepTestEnv(t)

	env.acceptThrough(t, 1, 10)

	var project model.Project
	require.NoError(t, env.db.First(&project, env.project.ID).Error)
	assert.Equal(t, 10, project.Score)
	assert.False(t, project.NewSubmission)

	env.acceptThrough(t, 2, 7)
	require.NoError(t, env.db.First(&project, env.project.ID).Error)
	assert.Equal(t, 17, project.Score)
}

func TestAcceptRequiresSubmission(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.AcceptStep(env.project.ID, 1, 10, env.mentor)
	assert.True(t, util.IsKind(err, util.KindConflict))

	_, err = env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	_, err = env.svc.AcceptStep(env.project.ID, 1, 10, env.mentor)
	assert.True(t, util.IsKind(err, util.KindConflict))
}

func TestAcceptRequiresMentor(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.AcceptStep(env.project.ID, 1, 10, env.captain)
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestRejectInfersTimerFromRemainingTime(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	env.clock.advance(10 * time.Minute)
	_, err = env.svc.SubmitStep(context.Background(), env.project.ID, 1, "attempt one", nil, nil, env.captain)
	require.NoError(t, err)

	// 剩余20分钟带入重试
	step, err := env.svc.RejectStep(env.project.ID, 1, nil, env.mentor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotStarted, step.Status)
	assert.Equal(t, 20, step.TimerMinutes)

	var project model.Project
	require.NoError(t, env.db.First(&project, env.project.ID).Error)
	assert.False(t, project.NewSubmission)

	// 重试开启第二个尝试
	step, err = env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	require.Len(t, step.Attempts, 2)
	assert.WithinDuration(t, env.clock.now.Add(20*time.Minute), step.Attempts[1].EndTimeAt, time.Second)
}

func TestRejectWithExplicitTimer(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	_, err = env.svc.SubmitStep(context.Background(), env.project.ID, 1, "attempt", nil, nil, env.captain)
	require.NoError(t, err)

	timer := 45
	step, err := env.svc.RejectStep(env.project.ID, 1, &timer, env.mentor)
	require.NoError(t, err)
	assert.Equal(t, 45, step.TimerMinutes)
}

func TestRejectTimeExceededRequiresTimer(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	env.clock.advance(time.Hour)
	_, err = env.svc.SubmitStep(context.Background(), env.project.ID, 1, "late", nil, nil, env.captain)
	require.NoError(t, err)

	_, err = env.svc.RejectStep(env.project.ID, 1, nil, env.mentor)
	assert.True(t, util.IsKind(err, util.KindConflict))

	timer := 15
	step, err := env.svc.RejectStep(env.project.ID, 1, &timer, env.mentor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusNotStarted, step.Status)
	assert.Equal(t, 15, step.TimerMinutes)
}

func TestSetTimerExtendsOpenAttempt(t *testing.T) {
	env := newStepTestEnv(t)

	started, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)
	startedAt := started.Attempts[0].StartedAt

	step, err := env.svc.SetStepTimer(env.project.ID, 1, 60, env.mentor)
	require.NoError(t, err)
	assert.Equal(t, 60, step.TimerMinutes)
	require.Len(t, step.Attempts, 1)
	assert.WithinDuration(t, startedAt.Add(60*time.Minute), step.Attempts[0].EndTimeAt, time.Second)
}

func TestSetTimerOnNotStartedStep(t *testing.T) {
	env := newStepTestEnv(t)

	step, err := env.svc.SetStepTimer(env.project.ID, 1, 90, env.mentor)
	require.NoError(t, err)
	assert.Equal(t, 90, step.TimerMinutes)
	assert.Empty(t, step.Attempts)

	_, err = env.svc.SetStepTimer(env.project.ID, 1, 90, env.captain)
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestGetStepAccess(t *testing.T) {
	env := newStepTestEnv(t)

	// 队员和导师都能查看
	_, err := env.svc.GetStep(env.project.ID, 1, env.member)
	require.NoError(t, err)
	_, err = env.svc.GetStep(env.project.ID, 1, env.mentor)
	require.NoError(t, err)

	// 外部参赛者不行
	outsider := model.Actor{UserID: 999}
	_, err = env.svc.GetStep(env.project.ID, 1, outsider)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	otherTeam := uint(12345)
	_, err = env.svc.GetStep(env.project.ID, 1, model.Actor{UserID: 999, TeamID: &otherTeam})
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestCommentsRequireStartedStep(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.CreateComment(context.Background(), env.project.ID, 1, "too early", nil, env.member)
	assert.True(t, util.IsKind(err, util.KindConflict))

	_, err = env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	comment, err := env.svc.CreateComment(context.Background(), env.project.ID, 1, "looks good", nil, env.member)
	require.NoError(t, err)
	assert.Equal(t, "looks good", comment.Text)
	assert.Equal(t, env.member.UserID, comment.UserID)

	comments, err := env.svc.GetComments(env.project.ID, 1, env.mentor)
	require.NoError(t, err)
	require.Len(t, comments, 1)
}

func TestCommentWithFiles(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	files := []*multipart.FileHeader{makeFileHeader(t, "screenshot.txt", []byte("log output"))}
	comment, err := env.svc.CreateComment(context.Background(), env.project.ID, 1, "see attached", files, env.mentor)
	require.NoError(t, err)
	require.Len(t, comment.Files, 1)
	assert.Equal(t, "screenshot.txt", comment.Files[0].Name)

	// 超出附件上限
	var tooMany []*multipart.FileHeader
	for i := 0; i < util.MaxCommentFiles+1; i++ {
		tooMany = append(tooMany, makeFileHeader(t, fmt.Sprintf("f%d.txt", i), []byte("x")))
	}
	_, err = env.svc.CreateComment(context.Background(), env.project.ID, 1, "spam", tooMany, env.mentor)
	assert.True(t, util.IsKind(err, util.KindBadRequest))
}

func TestDeleteCommentAuthorization(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	comment, err := env.svc.CreateComment(context.Background(), env.project.ID, 1, "my comment", nil, env.member)
	require.NoError(t, err)

	// 其他参赛者不能删
	err = env.svc.DeleteComment(context.Background(), env.project.ID, 1, comment.ID, env.captain)
	assert.True(t, util.IsKind(err, util.KindForbidden))

	// 作者可以删
	require.NoError(t, env.svc.DeleteComment(context.Background(), env.project.ID, 1, comment.ID, env.member))

	err = env.svc.DeleteComment(context.Background(), env.project.ID, 1, comment.ID, env.member)
	assert.True(t, util.IsKind(err, util.KindNotFound))
}

func TestDeleteCommentByMentor(t *testing.T) {
	env := newStepTestEnv(t)

	_, err := env.svc.StartStep(env.project.ID, 1, env.captain)
	require.NoError(t, err)

	comment, err := env.svc.CreateComment(context.Background(), env.project.ID, 1, "participant note", nil, env.member)
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteComment(context.Background(), env.project.ID, 1, comment.ID, env.mentor))
}

func TestFullReviewCycle(t *testing.T) {
	env := newStepTestEnv(t)

	for i := 1; i <= util.StepsPerProject; i++ {
		env.acceptThrough(t, i, 2)
	}

	var project model.Project
	require.NoError(t, env.db.First(&project, env.project.ID).Error)
	assert.Equal(t, 2*util.StepsPerProject, project.Score)

	// 全部步骤都是终态
	steps, err := env.svc.GetStep(env.project.ID, util.StepsPerProject, env.mentor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccepted, steps.Status)
}
