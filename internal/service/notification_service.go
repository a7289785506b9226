package service

import (
	"fmt"

	"hackathon_backend/internal/config"
	"hackathon_backend/internal/repository"
	"hackathon_backend/pkg/logger"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type EventType string

const (
	EventStepSubmitted EventType = "step_submitted"
	EventStepAccepted  EventType = "step_accepted"
	EventStepRejected  EventType = "step_rejected"
	EventPasswordReset EventType = "password_reset"
)

// Event 领域操作产生的通知事件，事务提交后再投递
type Event struct {
	Type        EventType
	ProjectID   uint
	ProjectName string
	StepNumber  int
	TeamID      uint
	Email       string
	Token       string
}

type NotificationService struct {
	SMTP     *config.SMTPConfig
	UserRepo *repository.UserRepository
	TeamRepo *repository.TeamRepository
}

func NewNotificationService(cfg *config.Config, userRepo *repository.UserRepository, teamRepo *repository.TeamRepository) *NotificationService {
	return &NotificationService{
		SMTP:     &cfg.SMTP,
		UserRepo: userRepo,
		TeamRepo: teamRepo,
	}
}

// Dispatch 异步投递事件，失败只记日志，从不影响领域状态
func (s *NotificationService) Dispatch(events []Event) {
	for _, event := range events {
		go s.deliver(event)
	}
}

func (s *NotificationService) deliver(event Event) {
	var recipients []string
	var subject, body string

	switch event.Type {
	case EventStepSubmitted:
		mentors, err := s.UserRepo.FindMentors()
		if err != nil {
			logger.Log.Error("failed to resolve mentors for notification", zap.Error(err))
			return
		}
		for _, m := range mentors {
			recipients = append(recipients, m.Email)
		}
		subject = fmt.Sprintf("New submission: %s, step %d", event.ProjectName, event.StepNumber)
		body = fmt.Sprintf("Project %q has a new submission on step %d awaiting review.", event.ProjectName, event.StepNumber)
	case EventStepAccepted, EventStepRejected:
		members, err := s.TeamRepo.FindMemberUsers(event.TeamID)
		if err != nil {
			logger.Log.Error("failed to resolve team members for notification", zap.Error(err))
			return
		}
		for _, m := range members {
			recipients = append(recipients, m.Email)
		}
		verdict := "accepted"
		if event.Type == EventStepRejected {
			verdict = "rejected"
		}
		subject = fmt.Sprintf("Step %d %s: %s", event.StepNumber, verdict, event.ProjectName)
		body = fmt.Sprintf("Step %d of project %q has been %s by a mentor.", event.StepNumber, event.ProjectName, verdict)
	case EventPasswordReset:
		recipients = []string{event.Email}
		subject = "Password reset"
		body = fmt.Sprintf("Your password reset token: %s", event.Token)
	default:
		return
	}

	s.send(recipients, subject, body)
}

func (s *NotificationService) send(to []string, subject, body string) {
	if !s.SMTP.Enabled || len(to) == 0 {
		return
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.SMTP.From)
	m.SetHeader("To", to...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.SMTP.Host, s.SMTP.Port, s.SMTP.User, s.SMTP.Password)
	if err := d.DialAndSend(m); err != nil {
		logger.Log.Error("failed to send notification email",
			zap.String("subject", subject),
			zap.Error(err))
	}
}
