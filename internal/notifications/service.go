package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

// Service is the inbox of one staff role.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, role string, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, role string) (int64, error)
}

type ListParams struct {
	Role       string
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult carries an empty Cursor on the last page.
type ListResult struct {
	Items  []NotificationDTO `json:"items"`
	Cursor string            `json:"cursor"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func requireRole(role string) (string, error) {
	role = strings.TrimSpace(role)
	if role == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "role required")
	}
	return role, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	role, err := requireRole(params.Role)
	if err != nil {
		return nil, err
	}
	query := listNotificationsParams{Role: role, Limit: params.Limit, UnreadOnly: params.UnreadOnly}
	if params.Cursor != "" {
		if query.Cursor, err = pagination.ParseCursor(params.Cursor); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	result := &ListResult{Items: make([]NotificationDTO, len(rows))}
	for i, row := range rows {
		result.Items[i] = toDTO(row)
	}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// MarkRead succeeds for a notification that was already read.
func (s *service) MarkRead(ctx context.Context, role string, notificationID uuid.UUID) error {
	role, err := requireRole(role)
	if err != nil {
		return err
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	mark, err := s.repo.MarkRead(ctx, role, notificationID, s.now())
	switch {
	case err != nil:
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	case !mark.Found:
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, role string) (int64, error) {
	role, err := requireRole(role)
	if err != nil {
		return 0, err
	}
	n, err := s.repo.MarkAllRead(ctx, role, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return n, nil
}
