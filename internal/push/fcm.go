package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/and161185/hogar/internal/model"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCMChunkSize is the multicast limit of Firebase Cloud Messaging.
const FCMChunkSize = 500

// MulticastSender is the part of *messaging.Client used by FCM.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// FCM sends directly to devices through Firebase.
type FCM struct {
	client MulticastSender
	log    *zap.Logger
}

// NewFCMFromCredentials builds a Firebase app from a service account JSON.
func NewFCMFromCredentials(ctx context.Context, credentialsJSON []byte, log *zap.Logger) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsJSON(credentialsJSON))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return NewFCM(client, log), nil
}

// NewFCM wraps an existing sender.
func NewFCM(client MulticastSender, log *zap.Logger) *FCM {
	return &FCM{client: client, log: log}
}

// Send multicasts in chunks. Unregistered and malformed tokens are reported invalid.
func (f *FCM) Send(ctx context.Context, tokens []string, msg model.PushMessage) (Result, error) {
	var res Result
	for _, chunk := range chunks(tokens, FCMChunkSize) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		br, err := f.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens:       chunk,
			Data:         msg.Data,
			Notification: &messaging.Notification{Title: msg.Title, Body: msg.Body},
			Android:      &messaging.AndroidConfig{Priority: "high"},
		})
		if err != nil {
			f.log.Warn("fcm multicast failed", zap.Error(err), zap.Int("tokens", len(chunk)))
			res.fail("request", len(chunk))
			continue
		}
		for i, r := range br.Responses {
			if i >= len(chunk) {
				break
			}
			if r.Success {
				res.Sent++
				continue
			}
			switch {
			case messaging.IsRegistrationTokenNotRegistered(r.Error):
				res.Invalid = append(res.Invalid, chunk[i])
				res.fail("registration-token-not-registered", 1)
			case messaging.IsInvalidArgument(r.Error):
				res.Invalid = append(res.Invalid, chunk[i])
				res.fail("invalid-argument", 1)
			default:
				res.fail("send_failed", 1)
			}
		}
	}
	return res, nil
}
