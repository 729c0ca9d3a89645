package service_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/inbox/domain"
	"github.com/smallbiznis/atelier/internal/inbox/repository"
	"github.com/smallbiznis/atelier/internal/inbox/service"
	"github.com/smallbiznis/atelier/internal/media"
	"github.com/smallbiznis/atelier/internal/notification"
	outboxrepo "github.com/smallbiznis/atelier/internal/outbox/repository"
	outboxservice "github.com/smallbiznis/atelier/internal/outbox/service"
	"github.com/smallbiznis/atelier/internal/providers/email"
	"github.com/smallbiznis/atelier/internal/storage"
	"github.com/smallbiznis/atelier/internal/workflow"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	clock *clock.FakeClock
	svc   domain.Service
}

func newFixture(t *testing.T, seller string) fixture {
	t.Helper()
	db := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC))

	shop := config.DefaultStorefront()
	shop.SellerEmail = seller
	notifier, err := notification.New(notification.Params{Storefront: config.NewStaticStorefront(shop), Log: zap.NewNop()})
	require.NoError(t, err)

	store, err := storage.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  repository.Provide(),
		Outbox: outboxservice.New(outboxservice.Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clk,
			Repo:  outboxrepo.Provide(),
			Email: &email.NoOpProvider{},
		}),
		Notifier: notifier,
		Store:    store,
	})
	return fixture{db: db, clock: clk, svc: svc}
}

func contactRequest() domain.ContactRequest {
	return domain.ContactRequest{
		Name:    "Léa",
		Email:   "lea@example.com",
		Message: "Bonjour, faites-vous des bracelets sur mesure ?",
	}
}

func TestSubmitContactOpensThread(t *testing.T) {
	f := newFixture(t, "atelier@example.com")
	ctx := context.Background()

	got, err := f.svc.SubmitContact(ctx, contactRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.ContactNew, got.Status)
	assert.NotEmpty(t, got.ThreadID)

	dbtest.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM contacts`)
	dbtest.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM outbox_messages WHERE recipient = 'atelier@example.com'`)

	threads, err := f.svc.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "Message de Léa", threads[0].Subject)
	assert.Equal(t, domain.ThreadOpen, threads[0].Status)
	assert.Equal(t, int64(1), threads[0].UnreadCount)
	assert.Equal(t, got.ID, threads[0].ContactID)
}

func TestSubmitContactWithoutSellerSkipsNotice(t *testing.T) {
	f := newFixture(t, "")

	_, err := f.svc.SubmitContact(context.Background(), contactRequest())
	require.NoError(t, err)
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM outbox_messages`)
}

func TestSubmitContactValidation(t *testing.T) {
	f := newFixture(t, "atelier@example.com")
	ctx := context.Background()

	req := contactRequest()
	req.Message = "  "
	_, err := f.svc.SubmitContact(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMissingFields)

	req = contactRequest()
	req.Email = "lea.example.com"
	_, err = f.svc.SubmitContact(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM contacts`)
}

func TestContactAdministration(t *testing.T) {
	f := newFixture(t, "atelier@example.com")
	ctx := context.Background()

	created, err := f.svc.SubmitContact(ctx, contactRequest())
	require.NoError(t, err)

	require.NoError(t, f.svc.SetContactStatus(ctx, created.ID, domain.ContactRead))
	assert.ErrorIs(t, f.svc.SetContactStatus(ctx, created.ID, "archivé"), domain.ErrInvalidStatus)

	items, err := f.svc.ListContacts(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.ContactRead, items[0].Status)

	require.NoError(t, f.svc.DeleteContact(ctx, created.ID))
	assert.ErrorIs(t, f.svc.DeleteContact(ctx, created.ID), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.SetContactStatus(ctx, created.ID, domain.ContactRead), domain.ErrNotFound)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestReplyMarksReadAndQueuesEmail(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	created, err := f.svc.SubmitContact(ctx, contactRequest())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	reply, err := f.svc.Reply(ctx, domain.ReplyRequest{
		ThreadID:    created.ThreadID,
		Body:        "Oui, avec plaisir !",
		Attachments: []domain.Attachment{{Filename: "modele.png", Content: pngBytes(t)}},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SenderAdmin, reply.SenderType)
	require.Len(t, reply.Attachments, 1)
	assert.Contains(t, reply.Attachments[0], "/uploads/threads/"+created.ThreadID+"/")

	dbtest.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM outbox_messages WHERE recipient = 'lea@example.com'`)

	threads, err := f.svc.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), threads[0].UnreadCount)
	assert.True(t, f.clock.Now().Equal(threads[0].LastMessageAt))

	detail, err := f.svc.GetThread(ctx, created.ThreadID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, domain.SenderCustomer, detail.Messages[0].SenderType)
	assert.Empty(t, detail.Messages[0].Attachments)
	assert.Equal(t, reply.Attachments, detail.Messages[1].Attachments)

	_, err = f.svc.Reply(ctx, domain.ReplyRequest{ThreadID: created.ThreadID, Body: " "})
	assert.ErrorIs(t, err, domain.ErrEmptyReply)

	_, err = f.svc.Reply(ctx, domain.ReplyRequest{
		ThreadID:    created.ThreadID,
		Body:        "Voici le fichier",
		Attachments: []domain.Attachment{{Filename: "devis.pdf", Content: []byte("%PDF-1.4")}},
	})
	assert.ErrorIs(t, err, media.ErrUnsupportedType)
}

func TestGetThreadMarksCustomerMessagesRead(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	created, err := f.svc.SubmitContact(ctx, contactRequest())
	require.NoError(t, err)

	detail, err := f.svc.GetThread(ctx, created.ThreadID)
	require.NoError(t, err)
	assert.True(t, detail.Messages[0].IsRead)

	threads, err := f.svc.ListThreads(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), threads[0].UnreadCount)

	_, err = f.svc.GetThread(ctx, "123")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestThreadStatusGate(t *testing.T) {
	f := newFixture(t, "")
	ctx := context.Background()

	created, err := f.svc.SubmitContact(ctx, contactRequest())
	require.NoError(t, err)

	resp, err := f.svc.SetThreadStatus(ctx, domain.StatusRequest{ID: created.ThreadID, Status: domain.ThreadClosed})
	require.NoError(t, err)
	assert.True(t, resp.ConfirmationRequired)
	assert.Equal(t, "Clore la conversation ?", resp.Prompt)
	dbtest.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM message_threads WHERE status = 'open'`)

	resp, err = f.svc.SetThreadStatus(ctx, domain.StatusRequest{ID: created.ThreadID, Status: domain.ThreadClosed, Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ThreadClosed, resp.Thread.Status)

	_, err = f.svc.Reply(ctx, domain.ReplyRequest{ThreadID: created.ThreadID, Body: "Encore une question"})
	assert.ErrorIs(t, err, domain.ErrThreadClosed)

	_, err = f.svc.SetThreadStatus(ctx, domain.StatusRequest{ID: created.ThreadID, Status: domain.ThreadClosed, Confirmed: true})
	assert.ErrorIs(t, err, workflow.ErrStatusUnchanged)

	_, err = f.svc.SetThreadStatus(ctx, domain.StatusRequest{ID: created.ThreadID, Status: "archived", Confirmed: true})
	assert.ErrorIs(t, err, workflow.ErrInvalidStatus)
}
