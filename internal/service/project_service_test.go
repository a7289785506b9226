package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

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

func newProjectTestEnv(t *testing.T) (*ProjectService, *gorm.DB, string) {
	t.Helper()

	if logger.Log == nil {
		logger.Log = zap.NewNop()
	}

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	uploadsDir := t.TempDir()
	storage := &StorageService{Provider: &LocalStorageProvider{Config: &config.StorageConfig{LocalPath: uploadsDir}}}
	svc := NewProjectService(repository.NewProjectRepository(db), storage, db)
	return svc, db, uploadsDir
}

func TestCreateProjectInitializesSteps(t *testing.T) {
	svc, _, _ := newProjectTestEnv(t)
	mentor := model.Actor{UserID: 1, IsMentor: true}

	project, err := svc.Create(context.Background(), "Pathfinder", "Indoor navigation", nil, mentor)
	require.NoError(t, err)

	require.Len(t, project.Steps, util.StepsPerProject)
	for i, step := range project.Steps {
		assert.Equal(t, i+1, step.StepNumber)
		assert.Equal(t, model.StatusNotStarted, step.Status)
		assert.Equal(t, util.DefaultStepTimerMinutes, step.TimerMinutes)
	}
	assert.Equal(t, 0, project.Score)
	assert.False(t, project.NewSubmission)
}

func TestCreateProjectRequiresMentor(t *testing.T) {
	svc, _, _ := newProjectTestEnv(t)

	_, err := svc.Create(context.Background(), "Pathfinder", "desc", nil, model.Actor{UserID: 2})
	assert.True(t, util.IsKind(err, util.KindForbidden))
}

func TestCreateProjectWithDocument(t *testing.T) {
	svc, _, uploadsDir := newProjectTestEnv(t)
	mentor := model.Actor{UserID: 1, IsMentor: true}

	doc := makeFileHeader(t, "brief.txt", []byte("project brief"))
	project, err := svc.Create(context.Background(), "Pathfinder", "desc", doc, mentor)
	require.NoError(t, err)

	require.NotEmpty(t, project.DocumentPath)
	_, statErr := os.Stat(filepath.Join(uploadsDir, project.DocumentPath))
	assert.NoError(t, statErr)
}

func TestProjectListSearchAndOrdering(t *testing.T) {
	svc, _, _ := newProjectTestEnv(t)
	mentor := model.Actor{UserID: 1, IsMentor: true}

	for _, name := range []string{"Alpha", "Beta", "Alphabet"} {
		_, err := svc.Create(context.Background(), name, "desc", nil, mentor)
		require.NoError(t, err)
	}

	projects, total, err := svc.List("Alpha", "", 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, projects, 2)

	projects, _, err = svc.List("", "-name", 1, 10)
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "Beta", projects[0].Name)
}

func TestDeleteProjectCascades(t *testing.T) {
	svc, db, uploadsDir := newProjectTestEnv(t)
	mentor := model.Actor{UserID: 1, IsMentor: true}

	doc := makeFileHeader(t, "brief.txt", []byte("project brief"))
	project, err := svc.Create(context.Background(), "Pathfinder", "desc", doc, mentor)
	require.NoError(t, err)

	team := &model.Team{Name: "Night Owls", ProjectID: &project.ID}
	require.NoError(t, db.Create(team).Error)

	require.NoError(t, svc.Delete(context.Background(), project.ID, mentor))

	_, err = svc.Get(project.ID)
	assert.True(t, util.IsKind(err, util.KindNotFound))

	var stepCount int64
	require.NoError(t, db.Model(&model.Step{}).Where("project_id = ?", project.ID).Count(&stepCount).Error)
	assert.Zero(t, stepCount)

	// 队伍保留但与项目解绑
	var survived model.Team
	require.NoError(t, db.First(&survived, team.ID).Error)
	assert.Nil(t, survived.ProjectID)

	// 存储产物一并清理
	_, statErr := os.Stat(filepath.Join(uploadsDir, "projects", fmt.Sprint(project.ID)))
	assert.True(t, os.IsNotExist(statErr))
}

func TestUploadDocumentReplacesOld(t *testing.T) {
	svc, _, uploadsDir := newProjectTestEnv(t)
	mentor := model.Actor{UserID: 1, IsMentor: true}

	project, err := svc.Create(context.Background(), "Pathfinder", "desc",
		makeFileHeader(t, "v1.txt", []byte("first version")), mentor)
	require.NoError(t, err)
	oldPath := project.DocumentPath

	project, err = svc.UploadDocument(context.Background(), project.ID,
		makeFileHeader(t, "v2.txt", []byte("second version")), mentor)
	require.NoError(t, err)

	assert.NotEqual(t, oldPath, project.DocumentPath)
	_, statErr := os.Stat(filepath.Join(uploadsDir, oldPath))
	assert.True(t, os.IsNotExist(statErr))
}
