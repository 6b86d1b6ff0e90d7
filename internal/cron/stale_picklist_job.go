package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const (
	defaultStaleAfter = 4 * time.Hour
	staleBatchLimit   = 100
)

type stalePickLists interface {
	StaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]models.PickList, error)
}

type roleNotifier interface {
	NotifyUsers(ctx context.Context, role string, msg notifications.Message) error
}

type StalePickListJobParams struct {
	Logger     *logger.Logger
	PickLists  stalePickLists
	Notifier   roleNotifier
	Role       string
	StaleAfter time.Duration
}

// NewStalePickListJob reminds a role about pick lists left IN_PROGRESS with no
// activity for StaleAfter. Each list is reported at most once per day.
func NewStalePickListJob(params StalePickListJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PickLists == nil {
		return nil, fmt.Errorf("pick list service required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	role := strings.TrimSpace(params.Role)
	if role == "" {
		return nil, fmt.Errorf("notification role required")
	}
	staleAfter := params.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	return &stalePickListJob{
		logg:       params.Logger,
		lists:      params.PickLists,
		notifier:   params.Notifier,
		role:       role,
		staleAfter: staleAfter,
		now:        time.Now,
	}, nil
}

type stalePickListJob struct {
	logg       *logger.Logger
	lists      stalePickLists
	notifier   roleNotifier
	role       string
	staleAfter time.Duration
	now        func() time.Time
}

func (j *stalePickListJob) Name() string { return "stale-picklist-reminder" }

func (j *stalePickListJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.staleAfter)
	lists, err := j.lists.StaleInProgress(ctx, cutoff, staleBatchLimit)
	if err != nil {
		return fmt.Errorf("list stale pick lists: %w", err)
	}

	var errs error
	notified := 0
	for _, list := range lists {
		if err := j.notifier.NotifyUsers(ctx, j.role, j.reminder(list, now)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("pick list %s: %w", list.Code, err))
			continue
		}
		notified++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"stale":    len(lists),
		"notified": notified,
	}), "cron.picklists.stale_checked")
	return errs
}

func (j *stalePickListJob) reminder(list models.PickList, now time.Time) notifications.Message {
	picker := "nobody"
	if list.StartedBy != nil && *list.StartedBy != "" {
		picker = *list.StartedBy
	}
	idle := now.Sub(list.UpdatedAt).Truncate(time.Minute)
	link := "/pick-lists/" + list.ID.String()
	return notifications.Message{
		Type:    enums.NotificationTypePickListStale,
		Title:   "Pick list idle",
		Message: fmt.Sprintf("Pick list %s started by %s has had no activity for %s", list.Code, picker, idle),
		Link:    &link,
		Data: map[string]any{
			"pickListId": list.ID.String(),
			"code":       list.Code,
			"startedBy":  picker,
		},
		DedupeID: uuid.NewSHA1(list.ID, []byte("stale:"+now.Format("20060102"))),
	}
}
