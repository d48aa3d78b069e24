package blocking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/dropDatabas3/authemu/internal/domain/types"
	"github.com/dropDatabas3/authemu/internal/jwt"
	"github.com/dropDatabas3/authemu/internal/observability/logger"
)

const eventTypePrefix = "providers/cloud.auth/eventTypes/user."

// HTTPInvoker hace el POST {"data":{"jwt":...}} a la función.
type HTTPInvoker struct {
	Client *http.Client
	Clock  clockwork.Clock
}

// NewHTTPInvoker con timeout por request.
func NewHTTPInvoker(timeout time.Duration, clock clockwork.Clock) *HTTPInvoker {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &HTTPInvoker{Client: &http.Client{Timeout: timeout}, Clock: clock}
}

type requestBody struct {
	Data struct {
		JWT string `json:"jwt"`
	} `json:"data"`
}

type responseBody struct {
	UserRecord *struct {
		UpdateMask    string         `json:"updateMask"`
		DisplayName   string         `json:"displayName"`
		PhotoURL      string         `json:"photoUrl"`
		EmailVerified bool           `json:"emailVerified"`
		Disabled      bool           `json:"disabled"`
		CustomClaims  map[string]any `json:"customClaims"`
		SessionClaims map[string]any `json:"sessionClaims"`
	} `json:"userRecord"`
}

// Invoke no reintenta: cualquier falla es fatal para el flujo que la llamó.
func (h *HTTPInvoker) Invoke(ctx context.Context, uri string, ev Event) (*Delta, error) {
	log := logger.From(ctx).With(logger.Component("blocking"), logger.Trigger(ev.Trigger))

	token, err := jwt.Sign(EventClaims(ev, uri, h.Clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("sign blocking event: %w", err)
	}
	var body requestBody
	body.Data.JWT = token
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build blocking request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		log.Warn("blocking function unreachable", logger.Err(err))
		return nil, fmt.Errorf("call %s: %w", uri, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read blocking response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("blocking function rejected", logger.Status(resp.StatusCode))
		return nil, fmt.Errorf("%s returned %d: %s", ev.Trigger, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return &Delta{}, nil
	}
	return ParseResponse(payload)
}

// ParseResponse aplica el updateMask: solo los campos listados cuentan.
func ParseResponse(payload []byte) (*Delta, error) {
	var rb responseBody
	if err := json.Unmarshal(payload, &rb); err != nil {
		return nil, fmt.Errorf("decode blocking response: %w", err)
	}
	d := &Delta{}
	if rb.UserRecord == nil {
		return d, nil
	}
	ur := rb.UserRecord
	for _, field := range strings.Split(ur.UpdateMask, ",") {
		switch strings.TrimSpace(field) {
		case "displayName":
			v := ur.DisplayName
			d.DisplayName = &v
		case "photoUrl":
			v := ur.PhotoURL
			d.PhotoURL = &v
		case "emailVerified":
			v := ur.EmailVerified
			d.EmailVerified = &v
		case "disabled":
			v := ur.Disabled
			d.Disabled = &v
		case "customClaims":
			d.CustomClaims = nonNil(ur.CustomClaims)
		case "sessionClaims":
			d.SessionClaims = nonNil(ur.SessionClaims)
		}
	}
	return d, nil
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// EventClaims arma el payload del JWT que recibe la función.
func EventClaims(ev Event, uri string, now time.Time) jwtv5.MapClaims {
	iat := now.Unix()
	c := jwtv5.MapClaims{
		"iss":            "https://securetoken.google.com/" + ev.ProjectID,
		"aud":            uri,
		"iat":            iat,
		"exp":            iat + 3600,
		"event_id":       uuid.NewString(),
		"event_type":     eventTypePrefix + ev.Trigger + ":" + ev.SignInMethod,
		"sign_in_method": ev.SignInMethod,
		"locale":         "en",
		"ip_address":     ev.IPAddress,
		"user_agent":     ev.UserAgent,
	}
	if ev.Account != nil {
		c["sub"] = ev.Account.LocalID
		c["user_record"] = UserRecord(ev.Account)
	}
	if ev.TenantID != "" {
		c["tenant_id"] = ev.TenantID
	}
	if ev.RawUserInfo != "" {
		c["raw_user_info"] = ev.RawUserInfo
	}
	if ev.SignInSecondFactor != "" {
		c["sign_in_attributes"] = map[string]any{"second_factor": ev.SignInSecondFactor}
	}
	if ev.OAuthIDToken != "" {
		c["oauth_id_token"] = ev.OAuthIDToken
	}
	if ev.OAuthAccessToken != "" {
		c["oauth_access_token"] = ev.OAuthAccessToken
	}
	if ev.OAuthRefreshToken != "" {
		c["oauth_refresh_token"] = ev.OAuthRefreshToken
	}
	return c
}

// UserRecord es la cuenta en el formato snake_case del evento.
func UserRecord(acc *types.Account) map[string]any {
	rec := map[string]any{
		"uid":            acc.LocalID,
		"email_verified": acc.EmailVerified,
		"disabled":       acc.Disabled,
		"metadata": map[string]any{
			"creation_time":     acc.CreatedAt,
			"last_sign_in_time": acc.LastLoginAt,
		},
	}
	if acc.Email != "" {
		rec["email"] = acc.Email
	}
	if acc.DisplayName != "" {
		rec["display_name"] = acc.DisplayName
	}
	if acc.PhotoURL != "" {
		rec["photo_url"] = acc.PhotoURL
	}
	if acc.PhoneNumber != "" {
		rec["phone_number"] = acc.PhoneNumber
	}
	if claims := acc.Claims(); len(claims) > 0 {
		rec["custom_claims"] = claims
	}
	if acc.TenantID != "" {
		rec["tenant_id"] = acc.TenantID
	}

	providers := make([]map[string]any, 0, len(acc.ProviderUserInfo))
	for _, p := range acc.ProviderUserInfo {
		providers = append(providers, map[string]any{
			"provider_id":  p.ProviderID,
			"uid":          p.RawID,
			"email":        p.Email,
			"display_name": p.DisplayName,
			"photo_url":    p.PhotoURL,
			"phone_number": p.PhoneNumber,
		})
	}
	rec["provider_data"] = providers

	if len(acc.MfaInfo) > 0 {
		factors := make([]map[string]any, 0, len(acc.MfaInfo))
		for _, e := range acc.MfaInfo {
			factors = append(factors, map[string]any{
				"uid":             e.MfaEnrollmentID,
				"display_name":    e.DisplayName,
				"enrollment_time": e.EnrolledAt,
				"phone_number":    e.PhoneInfo,
				"factor_id":       "phone",
			})
		}
		rec["multi_factor"] = map[string]any{"enrolled_factors": factors}
	}
	return rec
}
