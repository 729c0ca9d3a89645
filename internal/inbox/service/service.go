package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/inbox/domain"
	"github.com/smallbiznis/atelier/internal/media"
	"github.com/smallbiznis/atelier/internal/notification"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/smallbiznis/atelier/internal/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Outbox   outboxdomain.Service
	Notifier *notification.Notifier
	Store    storage.Store
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	outbox   outboxdomain.Service
	notifier *notification.Notifier
	store    storage.Store
	metrics  *obsmetrics.Metrics
	validate *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("inbox.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		outbox:   p.Outbox,
		notifier: p.Notifier,
		store:    p.Store,
		metrics:  p.Metrics,
		validate: validator.New(),
	}
}

// SubmitContact stores a contact form message and opens a conversation
// thread for it. The operator notice is queued in the same transaction.
func (s *Service) SubmitContact(ctx context.Context, req domain.ContactRequest) (*domain.ContactResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validate.Struct(req); err != nil {
		return nil, domain.ErrMissingFields
	}
	if err := s.validate.Var(req.Email, "email"); err != nil {
		return nil, domain.ErrInvalidEmail
	}

	now := s.clock.Now()
	contact := domain.Contact{
		ID:        s.genID.Generate().Int64(),
		Name:      req.Name,
		Email:     req.Email,
		Message:   req.Message,
		Status:    domain.ContactNew,
		CreatedAt: now,
	}
	if req.Phone != "" {
		phone := req.Phone
		contact.Phone = &phone
	}
	thread := domain.Thread{
		ID:            s.genID.Generate().Int64(),
		ContactID:     &contact.ID,
		CustomerName:  req.Name,
		CustomerEmail: req.Email,
		Subject:       fmt.Sprintf("Message de %s", req.Name),
		Status:        domain.ThreadOpen,
		LastMessageAt: now,
		CreatedAt:     now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertContact(ctx, tx, &contact); err != nil {
			return err
		}
		if err := s.repo.InsertThread(ctx, tx, &thread); err != nil {
			return err
		}
		if err := s.repo.InsertMessage(ctx, tx, &domain.Message{
			ID:          s.genID.Generate().Int64(),
			ThreadID:    thread.ID,
			SenderType:  domain.SenderCustomer,
			Body:        req.Message,
			Attachments: datatypes.JSON("[]"),
			CreatedAt:   now,
		}); err != nil {
			return err
		}

		msg, ok, err := s.notifier.NewContact(notification.Contact{
			Name:    req.Name,
			Email:   req.Email,
			Phone:   req.Phone,
			Message: req.Message,
		})
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return s.outbox.Enqueue(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("contact message received",
		zap.Int64("contact_id", contact.ID),
		zap.Int64("thread_id", thread.ID),
	)
	s.notifier.Alert(ctx, "Nouveau message", fmt.Sprintf("%s <%s> a envoyé un message", req.Name, req.Email))

	resp := contactResponse(&contact)
	resp.ThreadID = strconv.FormatInt(thread.ID, 10)
	return &resp, nil
}

func (s *Service) ListContacts(ctx context.Context) ([]domain.ContactResponse, error) {
	items, err := s.repo.ListContacts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.ContactResponse, 0, len(items))
	for i := range items {
		resp = append(resp, contactResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) SetContactStatus(ctx context.Context, id, status string) error {
	contactID, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}
	status = strings.TrimSpace(status)
	if status != domain.ContactNew && status != domain.ContactRead {
		return domain.ErrInvalidStatus
	}
	n, err := s.repo.UpdateContactStatus(ctx, s.db, contactID, status)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) DeleteContact(ctx context.Context, id string) error {
	contactID, err := parseID(id)
	if err != nil {
		return domain.ErrNotFound
	}
	n, err := s.repo.DeleteContact(ctx, s.db, contactID)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) ListThreads(ctx context.Context) ([]domain.ThreadResponse, error) {
	items, err := s.repo.ListThreads(ctx, s.db)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.ThreadResponse, 0, len(items))
	for i := range items {
		resp = append(resp, threadResponse(&items[i].Thread, items[i].UnreadCount))
	}
	return resp, nil
}

// GetThread returns the conversation and marks the customer messages read.
func (s *Service) GetThread(ctx context.Context, id string) (*domain.ThreadDetail, error) {
	threadID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	var (
		thread   *domain.Thread
		messages []domain.Message
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		thread, err = s.repo.FindThread(ctx, tx, threadID)
		if err != nil {
			return err
		}
		if thread == nil {
			return domain.ErrNotFound
		}
		if _, err := s.repo.MarkCustomerMessagesRead(ctx, tx, threadID); err != nil {
			return err
		}
		messages, err = s.repo.Messages(ctx, tx, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}

	detail := domain.ThreadDetail{
		ThreadResponse: threadResponse(thread, 0),
		Messages:       make([]domain.MessageResponse, 0, len(messages)),
	}
	for i := range messages {
		detail.Messages = append(detail.Messages, messageResponse(&messages[i]))
	}
	return &detail, nil
}

// Reply appends an admin message and queues the email to the customer.
// Attachments are stored before the transaction and removed if it fails.
func (s *Service) Reply(ctx context.Context, req domain.ReplyRequest) (*domain.MessageResponse, error) {
	threadID, err := parseID(req.ThreadID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, domain.ErrEmptyReply
	}
	if len(req.Attachments) > domain.MaxAttachments {
		return nil, domain.ErrTooManyAttachments
	}

	thread, err := s.repo.FindThread(ctx, s.db, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, domain.ErrNotFound
	}
	if thread.Status == domain.ThreadClosed {
		return nil, domain.ErrThreadClosed
	}

	now := s.clock.Now()
	paths, err := s.storeAttachments(ctx, threadID, req.Attachments)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(paths)
	if err != nil {
		s.removePaths(ctx, paths)
		return nil, err
	}

	msg := domain.Message{
		ID:          s.genID.Generate().Int64(),
		ThreadID:    threadID,
		SenderType:  domain.SenderAdmin,
		Body:        body,
		Attachments: datatypes.JSON(encoded),
		IsRead:      true,
		CreatedAt:   now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertMessage(ctx, tx, &msg); err != nil {
			return err
		}
		if err := s.repo.TouchThread(ctx, tx, threadID, now); err != nil {
			return err
		}
		if _, err := s.repo.MarkCustomerMessagesRead(ctx, tx, threadID); err != nil {
			return err
		}
		email, err := s.notifier.ThreadReply(notification.Reply{
			ThreadID:      strconv.FormatInt(threadID, 10),
			Subject:       thread.Subject,
			CustomerName:  thread.CustomerName,
			CustomerEmail: thread.CustomerEmail,
			Body:          body,
		})
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, email)
	})
	if err != nil {
		s.removePaths(ctx, paths)
		return nil, err
	}

	obslogger.WithContext(ctx, s.log).Info("thread reply queued",
		zap.Int64("thread_id", threadID),
		zap.Int("attachments", len(paths)),
	)
	resp := messageResponse(&msg)
	return &resp, nil
}

func (s *Service) SetThreadStatus(ctx context.Context, req domain.StatusRequest) (*domain.StatusResponse, error) {
	threadID, err := parseID(req.ID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	thread, err := s.repo.FindThread(ctx, s.db, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, domain.ErrNotFound
	}

	decision, err := domain.ThreadGate.Decide(thread.Status, strings.TrimSpace(req.Status), req.Confirmed)
	if err != nil {
		return nil, err
	}
	if !decision.Apply {
		return &domain.StatusResponse{
			ConfirmationRequired: true,
			Prompt:               decision.Prompt,
			From:                 decision.From,
			To:                   decision.To,
		}, nil
	}

	if err := s.repo.UpdateThreadStatus(ctx, s.db, threadID, decision.To); err != nil {
		return nil, err
	}
	s.metrics.RecordStatusChange(ctx, "thread", decision.To)
	thread.Status = decision.To
	resp := threadResponse(thread, 0)
	return &domain.StatusResponse{From: decision.From, To: decision.To, Thread: &resp}, nil
}

func (s *Service) storeAttachments(ctx context.Context, threadID int64, files []domain.Attachment) ([]string, error) {
	now := s.clock.Now()
	paths := make([]string, 0, len(files))
	for _, file := range files {
		contentType, err := media.Validate(file.Filename, file.Content)
		if err != nil {
			s.removePaths(ctx, paths)
			return nil, fmt.Errorf("%s: %w", file.Filename, err)
		}
		key := storage.ThreadAttachmentKey(threadID, filepath.Ext(file.Filename), now)
		path, err := s.store.Put(ctx, key, contentType, bytes.NewReader(file.Content))
		if err != nil {
			s.removePaths(ctx, paths)
			return nil, fmt.Errorf("store attachment: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (s *Service) removePaths(ctx context.Context, paths []string) {
	for _, p := range paths {
		key, err := s.store.KeyFromPath(p)
		if err == nil {
			err = s.store.Delete(ctx, key)
		}
		if err != nil {
			s.log.Warn("attachment removal failed", zap.String("path", p), zap.Error(err))
		}
	}
}

func contactResponse(c *domain.Contact) domain.ContactResponse {
	resp := domain.ContactResponse{
		ID:        strconv.FormatInt(c.ID, 10),
		Name:      c.Name,
		Email:     c.Email,
		Message:   c.Message,
		Status:    c.Status,
		CreatedAt: c.CreatedAt,
	}
	if c.Phone != nil {
		resp.Phone = *c.Phone
	}
	return resp
}

func threadResponse(t *domain.Thread, unread int64) domain.ThreadResponse {
	resp := domain.ThreadResponse{
		ID:            strconv.FormatInt(t.ID, 10),
		CustomerName:  t.CustomerName,
		CustomerEmail: t.CustomerEmail,
		Subject:       t.Subject,
		Status:        t.Status,
		UnreadCount:   unread,
		LastMessageAt: t.LastMessageAt,
		CreatedAt:     t.CreatedAt,
	}
	if t.ContactID != nil {
		resp.ContactID = strconv.FormatInt(*t.ContactID, 10)
	}
	return resp
}

func messageResponse(m *domain.Message) domain.MessageResponse {
	resp := domain.MessageResponse{
		ID:          strconv.FormatInt(m.ID, 10),
		ThreadID:    strconv.FormatInt(m.ThreadID, 10),
		SenderType:  m.SenderType,
		Body:        m.Body,
		Attachments: []string{},
		IsRead:      m.IsRead,
		CreatedAt:   m.CreatedAt,
	}
	if len(m.Attachments) > 0 {
		if err := json.Unmarshal(m.Attachments, &resp.Attachments); err != nil || resp.Attachments == nil {
			resp.Attachments = []string{}
		}
	}
	return resp
}

func parseID(value string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id.Int64() <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}
