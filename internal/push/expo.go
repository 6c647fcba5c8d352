package push

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/model"
	expo "github.com/oliveroneill/exponent-server-sdk-golang/sdk"
	"go.uber.org/zap"
)

// ExpoChunkSize is the maximum number of messages per Expo request.
const ExpoChunkSize = 100

// Expo sends through the Expo push gateway.
type Expo struct {
	cfg expo.ClientConfig
	log *zap.Logger
}

// NewExpo constructs an Expo provider. pushURL is the full push/send endpoint;
// a nil client gets a 15s timeout.
func NewExpo(pushURL, accessToken string, hc *http.Client, log *zap.Logger) *Expo {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	host, api := splitExpoURL(pushURL)
	return &Expo{
		cfg: expo.ClientConfig{Host: host, APIURL: api, AccessToken: accessToken, HTTPClient: hc},
		log: log,
	}
}

// splitExpoURL turns https://exp.host/--/api/v2/push/send into the host and
// API prefix the SDK joins back together.
func splitExpoURL(raw string) (string, string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return expo.DefaultHost, expo.DefaultBaseAPIURL
	}
	api := strings.TrimSuffix(strings.TrimRight(u.Path, "/"), "/push/send")
	if api == "" {
		api = expo.DefaultBaseAPIURL
	}
	return u.Scheme + "://" + u.Host, api
}

// ctxTransport binds every outgoing request to ctx.
type ctxTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t ctxTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(r.WithContext(t.ctx))
}

func (e *Expo) client(ctx context.Context) *expo.PushClient {
	cfg := e.cfg
	hc := *cfg.HTTPClient
	base := hc.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	hc.Transport = ctxTransport{ctx: ctx, base: base}
	cfg.HTTPClient = &hc
	return expo.NewPushClient(&cfg)
}

// Send posts tokens in chunks. A failed chunk counts all its tokens as failed.
func (e *Expo) Send(ctx context.Context, tokens []string, msg model.PushMessage) (Result, error) {
	var res Result
	pc := e.client(ctx)
	for _, chunk := range chunks(nonEmpty(tokens), ExpoChunkSize) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Merge(e.sendChunk(pc, chunk, msg))
	}
	return res, nil
}

func (e *Expo) sendChunk(pc *expo.PushClient, tokens []string, msg model.PushMessage) Result {
	var res Result
	batch := make([]expo.PushMessage, len(tokens))
	for i, t := range tokens {
		batch[i] = expo.PushMessage{
			To:       []expo.ExponentPushToken{expo.ExponentPushToken(t)},
			Title:    msg.Title,
			Body:     msg.Body,
			Data:     msg.Data,
			Sound:    "default",
			Priority: expo.HighPriority,
		}
	}

	out, err := pc.PublishMultiple(batch)
	if err != nil {
		code := "request"
		var se *expo.PushServerError
		if errors.As(err, &se) {
			code = "server"
		}
		e.log.Warn("expo push rejected", zap.Error(err), zap.Int("tokens", len(tokens)))
		res.fail(code, len(tokens))
		return res
	}

	for i := range out {
		err := out[i].ValidateResponse()
		if err == nil {
			res.Sent++
			continue
		}
		code := out[i].Details["error"]
		if code == "" {
			code = "unknown"
		}
		var gone *expo.DeviceNotRegisteredError
		if errors.As(err, &gone) {
			res.Invalid = append(res.Invalid, tokens[i])
		}
		res.fail(code, 1)
	}
	return res
}

func nonEmpty(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
