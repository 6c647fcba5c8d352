package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/and161185/hogar/internal/errs"
	"github.com/and161185/hogar/internal/model"
	"github.com/and161185/hogar/internal/push"
	"github.com/and161185/hogar/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Delivery outcomes.
const (
	OutcomeNoMembers = "no_members"
	OutcomeNoTokens  = "no_tokens"
	OutcomeSent      = "sent"
)

const listActivityTitle = "Actividad en lista compartida"

// RegisterTokenInput describes a device registration.
type RegisterTokenInput struct {
	Token      string
	TokenType  *model.TokenType
	DeviceType string
	DeviceName *string
}

// TestNotification is a hand-crafted message sent to a household.
type TestNotification struct {
	HouseholdID   uuid.UUID
	Title         string
	Body          string
	Data          map[string]string
	ExcludeUserID *uuid.UUID
}

// NotificationService manages device tokens and household broadcasts.
type NotificationService interface {
	// RegisterToken stores a device token, re-assigning it if another user had it.
	RegisterToken(ctx context.Context, userID uuid.UUID, in RegisterTokenInput) (uuid.UUID, error)
	// RemoveToken forgets one of the caller's tokens.
	RemoveToken(ctx context.Context, userID uuid.UUID, token string) error
	// NotifyListEvent schedules delivery and returns immediately.
	NotifyListEvent(ev model.ListEvent)
	// SendTest delivers synchronously to the caller's household.
	SendTest(ctx context.Context, userID uuid.UUID, n TestNotification) (*model.DeliveryReport, error)
}

type NotificationServiceImpl struct {
	store   repository.Store
	expo    push.Provider
	fcm     push.Provider // nil when Firebase is not configured
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewNotificationService constructs NotificationService. fcm may be nil.
func NewNotificationService(store repository.Store, expo, fcm push.Provider, timeout time.Duration, log *zap.Logger) *NotificationServiceImpl {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if fcm == nil {
		log.Warn("fcm not configured; direct-to-device tokens will not receive notifications")
	}
	return &NotificationServiceImpl{store: store, expo: expo, fcm: fcm, log: log, timeout: timeout}
}

// RegisterToken infers the gateway from the token shape when not given.
func (s *NotificationServiceImpl) RegisterToken(ctx context.Context, userID uuid.UUID, in RegisterTokenInput) (uuid.UUID, error) {
	token := strings.TrimSpace(in.Token)
	if token == "" {
		return uuid.Nil, errs.New(errs.ErrBadRequest, "token is required")
	}
	switch in.DeviceType {
	case "ios", "android", "web":
	default:
		return uuid.Nil, errs.Newf(errs.ErrBadRequest, "unknown device type %q", in.DeviceType)
	}
	tt := inferTokenType(token)
	if in.TokenType != nil {
		tt = *in.TokenType
	}
	switch tt {
	case model.TokenExpo:
	case model.TokenFCM:
		if len(token) < 20 {
			return uuid.Nil, errs.New(errs.ErrBadRequest, "fcm token is too short")
		}
	default:
		return uuid.Nil, errs.Newf(errs.ErrBadRequest, "unknown token type %q", tt)
	}
	t := &model.PushToken{
		ID:         newID(),
		UserID:     userID,
		Token:      token,
		TokenType:  tt,
		DeviceType: in.DeviceType,
	}
	if n := derefTrim(in.DeviceName); n != "" {
		t.DeviceName = &n
	}
	return s.store.Repos().PushTokens.Upsert(ctx, t)
}

func (s *NotificationServiceImpl) RemoveToken(ctx context.Context, userID uuid.UUID, token string) error {
	return s.store.Repos().PushTokens.Delete(ctx, userID, token)
}

// NotifyListEvent delivers in the background with its own deadline.
func (s *NotificationServiceImpl) NotifyListEvent(ev model.ListEvent) {
	msg := listEventMessage(ev)
	exclude := ev.UserID
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		rep, err := s.deliver(ctx, ev.HouseholdID, &exclude, msg)
		if err != nil {
			s.log.Error("list notification failed", zap.Error(err),
				zap.String("household_id", ev.HouseholdID.String()), zap.String("action", string(ev.Action)))
			return
		}
		s.log.Info("list notification delivered",
			zap.String("household_id", ev.HouseholdID.String()),
			zap.String("action", string(ev.Action)),
			zap.String("outcome", rep.Outcome),
			zap.Int("sent", rep.Sent),
			zap.Int("failed", rep.Failed),
			zap.Int("invalid_removed", rep.InvalidRemoved))
	}()
}

// Wait blocks until background deliveries finish.
func (s *NotificationServiceImpl) Wait() { s.wg.Wait() }

func (s *NotificationServiceImpl) SendTest(ctx context.Context, userID uuid.UUID, n TestNotification) (*model.DeliveryReport, error) {
	h, err := requireHousehold(ctx, s.store.Repos(), userID)
	if err != nil {
		return nil, err
	}
	if h.ID != n.HouseholdID {
		return nil, errs.ErrNotMember
	}
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return nil, errs.New(errs.ErrBadRequest, "title is required")
	}
	return s.deliver(ctx, h.ID, n.ExcludeUserID, model.PushMessage{Title: title, Body: n.Body, Data: n.Data})
}

// deliver sends msg to every member's devices except exclude and prunes invalid tokens.
func (s *NotificationServiceImpl) deliver(ctx context.Context, householdID uuid.UUID, exclude *uuid.UUID, msg model.PushMessage) (*model.DeliveryReport, error) {
	r := s.store.Repos()
	rep := &model.DeliveryReport{FCMConfigured: s.fcm != nil}

	ids, err := r.Households.MemberIDs(ctx, householdID)
	if err != nil {
		return nil, err
	}
	recipients := ids[:0:0]
	for _, id := range ids {
		if exclude == nil || id != *exclude {
			recipients = append(recipients, id)
		}
	}
	rep.Recipients = len(recipients)
	if len(recipients) == 0 {
		rep.Outcome = OutcomeNoMembers
		return rep, nil
	}

	toks, err := r.PushTokens.ListForUsers(ctx, recipients)
	if err != nil {
		return nil, err
	}
	rep.Tokens = len(toks)
	if len(toks) == 0 {
		rep.Outcome = OutcomeNoTokens
		return rep, nil
	}
	var expoToks, fcmToks []string
	for _, t := range toks {
		if t.TokenType == model.TokenExpo {
			expoToks = append(expoToks, t.Token)
		} else {
			fcmToks = append(fcmToks, t.Token)
		}
	}
	rep.ExpoTokens, rep.FCMTokens = len(expoToks), len(fcmToks)

	var total push.Result
	if len(expoToks) > 0 && s.expo != nil {
		res, err := s.expo.Send(ctx, expoToks, msg)
		if err != nil {
			s.log.Warn("expo delivery interrupted", zap.Error(err))
		}
		total.Merge(res)
	}
	if len(fcmToks) > 0 {
		if s.fcm == nil {
			total.Merge(push.Result{Failed: len(fcmToks), Errors: map[string]int{"fcm_not_configured": len(fcmToks)}})
		} else {
			res, err := s.fcm.Send(ctx, fcmToks, msg)
			if err != nil {
				s.log.Warn("fcm delivery interrupted", zap.Error(err))
			}
			total.Merge(res)
		}
	}

	rep.Sent, rep.Failed = total.Sent, total.Failed
	if len(total.Errors) > 0 {
		rep.ErrorCounts = total.Errors
	}
	if len(total.Invalid) > 0 {
		n, err := r.PushTokens.DeleteTokens(ctx, total.Invalid)
		if err != nil {
			s.log.Warn("invalid push tokens not removed", zap.Error(err), zap.Int("tokens", len(total.Invalid)))
		}
		rep.InvalidRemoved = int(n)
	}
	rep.Outcome = OutcomeSent
	return rep, nil
}

func inferTokenType(token string) model.TokenType {
	if strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[") {
		return model.TokenExpo
	}
	return model.TokenFCM
}

// listEventMessage renders the Spanish notification for a list action.
func listEventMessage(ev model.ListEvent) model.PushMessage {
	who := strings.TrimSpace(ev.UserName)
	if who == "" {
		who = "Alguien"
	}
	item := strings.TrimSpace(ev.ItemName)
	if item == "" {
		item = "un ítem"
	}
	var body string
	switch ev.Action {
	case model.ActionItemAdded:
		body = who + " añadió " + item
	case model.ActionItemCompleted:
		body = who + " marcó " + item + " como comprado"
	case model.ActionItemDeleted:
		body = who + " eliminó " + item
	default:
		body = who + " actualizó " + item
	}
	return model.PushMessage{
		Title: listActivityTitle,
		Body:  body,
		Data: map[string]string{
			"actionType":  string(ev.Action),
			"householdId": ev.HouseholdID.String(),
			"listId":      ev.ListID.String(),
			"userId":      ev.UserID.String(),
			"userName":    who,
			"itemName":    item,
		},
	}
}

var _ ListNotifier = (*NotificationServiceImpl)(nil)
