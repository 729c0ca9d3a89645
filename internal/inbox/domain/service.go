package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/atelier/internal/workflow"
)

type Service interface {
	SubmitContact(ctx context.Context, req ContactRequest) (*ContactResponse, error)
	ListContacts(ctx context.Context) ([]ContactResponse, error)
	SetContactStatus(ctx context.Context, id, status string) error
	DeleteContact(ctx context.Context, id string) error

	ListThreads(ctx context.Context) ([]ThreadResponse, error)
	GetThread(ctx context.Context, id string) (*ThreadDetail, error)
	Reply(ctx context.Context, req ReplyRequest) (*MessageResponse, error)
	SetThreadStatus(ctx context.Context, req StatusRequest) (*StatusResponse, error)
}

// ThreadGate asks for confirmation before a thread is closed or reopened.
var ThreadGate = workflow.NewGate(map[string]string{
	ThreadOpen:   "Rouvrir la conversation ?",
	ThreadClosed: "Clore la conversation ?",
}, "Modifier le statut ?")

// MaxAttachments bounds the files attached to one admin reply.
const MaxAttachments = 5

type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=255"`
	Email   string `json:"email" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"max=64"`
	Message string `json:"message" validate:"required"`
}

type Attachment struct {
	Filename string
	Content  []byte
}

type ReplyRequest struct {
	ThreadID    string
	Body        string
	Attachments []Attachment
}

type StatusRequest struct {
	ID        string `json:"-"`
	Status    string `json:"status"`
	Confirmed bool   `json:"confirmed"`
}

type ContactResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	ThreadID  string    `json:"thread_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ThreadResponse struct {
	ID            string    `json:"id"`
	ContactID     string    `json:"contact_id,omitempty"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	Subject       string    `json:"subject"`
	Status        string    `json:"status"`
	UnreadCount   int64     `json:"unread_count"`
	LastMessageAt time.Time `json:"last_message_at"`
	CreatedAt     time.Time `json:"created_at"`
}

type MessageResponse struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	SenderType  string    `json:"sender_type"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

type ThreadDetail struct {
	ThreadResponse
	Messages []MessageResponse `json:"messages"`
}

type StatusResponse struct {
	ConfirmationRequired bool            `json:"confirmation_required"`
	Prompt               string          `json:"prompt,omitempty"`
	From                 string          `json:"from"`
	To                   string          `json:"to"`
	Thread               *ThreadResponse `json:"thread,omitempty"`
}

var (
	ErrMissingFields      = errors.New("missing_fields")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidID          = errors.New("invalid_id")
	ErrEmptyReply         = errors.New("empty_reply")
	ErrThreadClosed       = errors.New("thread_closed")
	ErrTooManyAttachments = errors.New("too_many_attachments")
	ErrNotFound           = errors.New("not_found")
)
