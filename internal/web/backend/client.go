package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/foxzi/coldreach/internal/metrics"
)

// CodeNoRows is the data service's error code for an empty single-row result
const CodeNoRows = "PGRST116"

// APIError is an error reported by the backend service. Error returns the
// upstream message so callers can surface it verbatim.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNoRows reports whether err is the data service's "no rows" condition
func IsNoRows(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNoRows
}

// errorBody covers the error shapes of the functions, identity and data
// services.
type errorBody struct {
	Error            any             `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	Code             json.RawMessage `json:"code"`
}

func (b *errorBody) message() string {
	switch {
	case b.Message != "":
		return b.Message
	case b.Msg != "":
		return b.Msg
	case b.ErrorDescription != "":
		return b.ErrorDescription
	}
	if s, ok := b.Error.(string); ok && s != "" {
		return s
	}
	return ""
}

func (b *errorBody) code() string {
	return strings.Trim(string(b.Code), `"`)
}

// Client is the remote-access layer: one method per backend endpoint.
// It does not retry, batch or cache.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
}

// NewClient creates a new backend client
func NewClient(baseURL, anonKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type call struct {
	op          string
	method      string
	path        string
	token       string
	body        any
	rawBody     io.Reader
	contentType string
	header      http.Header
}

func (c *Client) do(ctx context.Context, cl call) (*http.Response, error) {
	var reqBody io.Reader
	contentType := "application/json"
	switch {
	case cl.rawBody != nil:
		reqBody = cl.rawBody
		contentType = cl.contentType
	case cl.body != nil:
		data, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	token := cl.token
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range cl.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body.message()
		apiErr.Code = body.code()
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return apiErr
}

// request performs a JSON call and decodes the response into result
func (c *Client) request(ctx context.Context, cl call, result any) error {
	start := time.Now()
	err := c.roundTrip(ctx, cl, result)
	metrics.ObserveBackendCall(cl.op, time.Since(start).Seconds(), err)
	return err
}

func (c *Client) roundTrip(ctx context.Context, cl call, result any) error {
	resp, err := c.do(ctx, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func functionPath(name string) string {
	return "/functions/v1/" + name
}

// ListCampaigns lists the current user's campaigns with emails and replies
func (c *Client) ListCampaigns(ctx context.Context, token string) (*CampaignsResponse, error) {
	var resp CampaignsResponse
	err := c.request(ctx, call{op: "get-campaigns", method: http.MethodGet, path: functionPath("get-campaigns"), token: token}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateCampaign creates a campaign
func (c *Client) CreateCampaign(ctx context.Context, token string, req *CreateCampaignRequest) (*RawCampaign, error) {
	var resp CreateCampaignResponse
	err := c.request(ctx, call{op: "create-campaign", method: http.MethodPost, path: functionPath("create-campaign"), token: token, body: req}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp.Campaign, nil
}

// StartGmailAuth starts third-party mail-account linking
func (c *Client) StartGmailAuth(ctx context.Context, token string) (*GmailAuthResponse, error) {
	var resp GmailAuthResponse
	err := c.request(ctx, call{op: "gmail-auth", method: http.MethodPost, path: functionPath("gmail-auth"), token: token}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, fmt.Errorf("gmail-auth returned no redirect url")
	}
	return &resp, nil
}

// GetAnalytics fetches analytics for one campaign
func (c *Client) GetAnalytics(ctx context.Context, token, campaignID string) (*Analytics, error) {
	var resp Analytics
	body := &AnalyticsRequest{CampaignID: campaignID}
	err := c.request(ctx, call{op: "get-analytics", method: http.MethodPost, path: functionPath("get-analytics"), token: token, body: body}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadLeads uploads a lead file as multipart form data
func (c *Client) UploadLeads(ctx context.Context, token, campaignID, filename string, file io.Reader) (*UploadLeadsResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if campaignID != "" {
		if err := mw.WriteField("campaign_id", campaignID); err != nil {
			return nil, fmt.Errorf("write campaign_id: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy lead file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	var resp UploadLeadsResponse
	err = c.request(ctx, call{
		op:          "upload-leads",
		method:      http.MethodPost,
		path:        functionPath("upload-leads"),
		token:       token,
		rawBody:     &buf,
		contentType: mw.FormDataContentType(),
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GenerateEmail asks the generation function for a draft
func (c *Client) GenerateEmail(ctx context.Context, token, prompt string) (*GenerateEmailResponse, error) {
	var resp GenerateEmailResponse
	body := &GenerateEmailRequest{Prompt: prompt}
	err := c.request(ctx, call{op: "generate-email", method: http.MethodPost, path: functionPath("generate-email"), token: token, body: body}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendEmail sends one email
func (c *Client) SendEmail(ctx context.Context, token string, req *SendEmailRequest) (*SendEmailResponse, error) {
	var resp SendEmailResponse
	err := c.request(ctx, call{op: "send-email", method: http.MethodPost, path: functionPath("send-email"), token: token, body: req}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SignUp registers a user. A nil session with a nil error means the
// identity provider requires email confirmation first.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*Session, error) {
	var raw json.RawMessage
	body := &signUpRequest{Email: email, Password: password, Data: metadata}
	if err := c.request(ctx, call{op: "auth-signup", method: http.MethodPost, path: "/auth/v1/signup", body: body}, &raw); err != nil {
		return nil, err
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

// SignInWithPassword exchanges credentials for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	return c.token(ctx, "password", &passwordGrant{Email: email, Password: password})
}

// RefreshSession exchanges a refresh token for a new session
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	return c.token(ctx, "refresh_token", &refreshGrant{RefreshToken: refreshToken})
}

// SignInWithIDToken exchanges a verified federated ID token for a session
func (c *Client) SignInWithIDToken(ctx context.Context, provider, idToken, nonce string) (*Session, error) {
	return c.token(ctx, "id_token", &idTokenGrant{Provider: provider, IDToken: idToken, Nonce: nonce})
}

func (c *Client) token(ctx context.Context, grant string, body any) (*Session, error) {
	var sess Session
	path := "/auth/v1/token?grant_type=" + url.QueryEscape(grant)
	if err := c.request(ctx, call{op: "auth-token-" + grant, method: http.MethodPost, path: path, body: body}, &sess); err != nil {
		return nil, err
	}
	if sess.AccessToken == "" {
		return nil, fmt.Errorf("identity provider returned no access token")
	}
	return &sess, nil
}

// SignOut revokes the session's refresh tokens
func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.request(ctx, call{op: "auth-logout", method: http.MethodPost, path: "/auth/v1/logout", token: token}, nil)
}

// GetUser returns the user owning the access token
func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	var user User
	if err := c.request(ctx, call{op: "auth-user", method: http.MethodGet, path: "/auth/v1/user", token: token}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CountRows counts the rows of a table matching the equality filters
func (c *Client) CountRows(ctx context.Context, token, table string, eq map[string]string) (int, error) {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")
	for col, v := range eq {
		params.Set(col, "eq."+v)
	}

	start := time.Now()
	resp, err := c.do(ctx, call{
		op:     "count-" + table,
		method: http.MethodGet,
		path:   "/rest/v1/" + table + "?" + params.Encode(),
		token:  token,
		header: http.Header{"Prefer": []string{"count=exact"}},
	})
	if err != nil {
		metrics.ObserveBackendCall("count-"+table, time.Since(start).Seconds(), err)
		return 0, err
	}
	resp.Body.Close()

	n, err := parseContentRangeTotal(resp.Header.Get("Content-Range"))
	metrics.ObserveBackendCall("count-"+table, time.Since(start).Seconds(), err)
	return n, err
}

// parseContentRangeTotal extracts the total from "0-4/5" or "*/0"
func parseContentRangeTotal(v string) (int, error) {
	i := strings.LastIndexByte(v, '/')
	if i < 0 || i == len(v)-1 {
		return 0, fmt.Errorf("malformed Content-Range %q", v)
	}
	total := v[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("Content-Range %q has no exact count", v)
	}
	n, err := strconv.Atoi(total)
	if err != nil {
		return 0, fmt.Errorf("malformed Content-Range %q: %w", v, err)
	}
	return n, nil
}
