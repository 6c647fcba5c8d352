package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/hogar/internal/model"
	"github.com/go-resty/resty/v2"
	u "github.com/gofrs/uuid/v5"
)

// ------- client -------

type client struct {
	rc    *resty.Client
	token string
}

func newClient(base string, hc *http.Client) *client {
	rc := resty.New().SetTimeout(15 * time.Second)
	if hc != nil {
		rc = resty.NewWithClient(hc)
	}
	rc.SetBaseURL(strings.TrimRight(base, "/")).SetHeader("Accept", "application/json")
	return &client{rc: rc}
}

// apiError is a non-2xx response decoded from {"error","code"}.
type apiError struct {
	Status int
	Code   string
	Msg    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Msg)
}

// call sends in as JSON and decodes the response into out when both are set.
func (c *client) call(ctx context.Context, method, path string, in, out any) error {
	req := c.rc.R().SetContext(ctx)
	if in != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(in)
	}
	if c.token != "" {
		req.SetAuthToken(c.token)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		ae := &apiError{Status: resp.StatusCode()}
		var eb struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(resp.Body(), &eb) == nil {
			ae.Code, ae.Msg = eb.Code, eb.Error
		} else {
			ae.Msg = resp.Status()
		}
		return ae
	}
	if out == nil || resp.StatusCode() == http.StatusNoContent {
		return nil
	}
	return json.Unmarshal(resp.Body(), out)
}

// ------- typed bodies -------

type registerBody struct {
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Password    string  `json:"password"`
	DisplayName string  `json:"displayName"`
}

type tokensBody struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (t tokensBody) file() tokenFile {
	return tokenFile{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, ExpiresAt: t.ExpiresAt}
}

type authBody struct {
	tokensBody
	User      json.RawMessage `json:"user"`
	Household json.RawMessage `json:"household"`
}

func (a *authBody) tokens() tokenFile { return a.tokensBody.file() }

type itemBody struct {
	Name     string       `json:"name"`
	Amount   *model.Fixed `json:"amount,omitempty"`
	Price    *model.Fixed `json:"price,omitempty"`
	Category *string      `json:"category,omitempty"`
}

func (c *client) register(ctx context.Context, in registerBody) (*authBody, error) {
	var out authBody
	if err := c.call(ctx, http.MethodPost, "/auth/register", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) login(ctx context.Context, identifier, password string) (*authBody, error) {
	var out authBody
	in := map[string]string{"identifier": identifier, "password": password}
	if err := c.call(ctx, http.MethodPost, "/auth/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) refresh(ctx context.Context, refreshToken string) (tokenFile, error) {
	if refreshToken == "" {
		return tokenFile{}, errors.New("no refresh token; login first")
	}
	var out tokensBody
	in := map[string]string{"refreshToken": refreshToken}
	if err := c.call(ctx, http.MethodPost, "/auth/refresh", in, &out); err != nil {
		return tokenFile{}, err
	}
	return out.file(), nil
}

// newItemBody parses the add-item flags; empty strings are omitted.
func newItemBody(name, amount, price, category string) (*itemBody, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("need -name")
	}
	b := &itemBody{Name: name, Category: optional(category)}
	var err error
	if b.Amount, err = parseFixed("amount", amount); err != nil {
		return nil, err
	}
	if b.Price, err = parseFixed("price", price); err != nil {
		return nil, err
	}
	return b, nil
}

func parseFixed(field, s string) (*model.Fixed, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || f < 0 {
		return nil, fmt.Errorf("bad -%s %q", field, s)
	}
	v := model.FixedFromFloat(f)
	return &v, nil
}

func itemsPath(listID string, limit int, cursor string) string {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	p := "/lists/" + listID + "/items"
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

func pretty(b []byte) string {
	var out any
	if json.Unmarshal(b, &out) == nil {
		j, _ := json.MarshalIndent(out, "", "  ")
		return string(j)
	}
	return string(b)
}

// ------- validators -------

func requireUUID(field, s string) error {
	if s == "" {
		return fmt.Errorf("need -%s", field)
	}
	if _, err := u.FromString(s); err != nil {
		return fmt.Errorf("-%s is not a uuid: %q", field, s)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
