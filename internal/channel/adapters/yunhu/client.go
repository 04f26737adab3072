package yunhu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIBaseURL  = "https://chat-go.jwzhd.com/open-apis/v1/"
	DefaultBotInfoURL  = "https://chat-web-go.jwzhd.com/v1/bot/bot-info"
	DefaultFileBaseURL = "https://chat-file.jwznb.com/"
	DefaultAPITimeout  = 30 * time.Second

	apiMaxResponseBytes int64 = 8 << 20
)

// ClientOptions overrides the platform endpoints. Zero values use the defaults.
type ClientOptions struct {
	APIBaseURL  string
	BotInfoURL  string
	FileBaseURL string
	Timeout     time.Duration
	HTTPClient  *http.Client
	// RateLimit caps API requests per second for one bot. Zero is unlimited.
	RateLimit float64
	// RateBurst is the number of requests allowed at once; at least 1.
	RateBurst int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if strings.TrimSpace(o.APIBaseURL) == "" {
		o.APIBaseURL = DefaultAPIBaseURL
	}
	if strings.TrimSpace(o.BotInfoURL) == "" {
		o.BotInfoURL = DefaultBotInfoURL
	}
	if strings.TrimSpace(o.FileBaseURL) == "" {
		o.FileBaseURL = DefaultFileBaseURL
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultAPITimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.Timeout}
	}
	if o.RateBurst < 1 {
		o.RateBurst = 1
	}
	return o
}

// Client calls the Yunhu open API on behalf of one bot. The bot token is
// sent as the "token" query parameter.
type Client struct {
	logger  *slog.Logger
	token   string
	opts    ClientOptions
	limiter *rate.Limiter
}

// NewClient creates an API client for the bot identified by token.
func NewClient(log *slog.Logger, token string, opts ClientOptions) *Client {
	if log == nil {
		log = slog.Default()
	}
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return &Client{
		logger:  log.With(slog.String("component", "yunhu_client")),
		token:   token,
		opts:    opts,
		limiter: limiter,
	}
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// SendRequest is the body of bot/send.
type SendRequest struct {
	RecvID      string         `json:"recvId"`
	RecvType    string         `json:"recvType"`
	ContentType string         `json:"contentType"`
	Content     map[string]any `json:"content"`
	ParentID    string         `json:"parentId,omitempty"`
}

// EditRequest is the body of bot/edit.
type EditRequest struct {
	MsgID       string         `json:"msgId"`
	RecvID      string         `json:"recvId"`
	RecvType    string         `json:"recvType"`
	ContentType string         `json:"contentType"`
	Content     map[string]any `json:"content"`
}

// GetBotInfo fetches the bot profile. The endpoint is public and takes no token.
func (c *Client) GetBotInfo(ctx context.Context, botID string) (BotInfo, error) {
	data, err := c.postJSON(ctx, c.opts.BotInfoURL, map[string]string{"botId": botID})
	if err != nil {
		return BotInfo{}, fmt.Errorf("get bot info: %w", err)
	}
	var body struct {
		Bot BotInfo `json:"bot"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return BotInfo{}, fmt.Errorf("get bot info: parse response: %w", err)
	}
	return body.Bot, nil
}

// Send delivers content to a user or group.
func (c *Client) Send(ctx context.Context, req SendRequest) (MessageInfo, error) {
	endpoint, err := c.endpoint("bot/send", nil)
	if err != nil {
		return MessageInfo{}, err
	}
	data, err := c.postJSON(ctx, endpoint, req)
	if err != nil {
		return MessageInfo{}, fmt.Errorf("send message: %w", err)
	}
	var body struct {
		MessageInfo MessageInfo `json:"messageInfo"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return MessageInfo{}, fmt.Errorf("send message: parse response: %w", err)
	}
	return body.MessageInfo, nil
}

// Edit replaces the content of a message the bot sent.
func (c *Client) Edit(ctx context.Context, req EditRequest) error {
	endpoint, err := c.endpoint("bot/edit", nil)
	if err != nil {
		return err
	}
	if _, err := c.postJSON(ctx, endpoint, req); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Recall deletes a message the bot sent.
func (c *Client) Recall(ctx context.Context, messageID, chatID, chatType string) error {
	endpoint, err := c.endpoint("bot/recall", nil)
	if err != nil {
		return err
	}
	payload := map[string]string{
		"msgId":    messageID,
		"chatId":   chatID,
		"chatType": RecvType(chatType),
	}
	if _, err := c.postJSON(ctx, endpoint, payload); err != nil {
		return fmt.Errorf("recall message: %w", err)
	}
	return nil
}

// GetMessages lists messages of a chat. params carries the paging
// parameters of bot/messages such as "message-id", "before" and "after".
func (c *Client) GetMessages(ctx context.Context, chatID, chatType string, params url.Values) ([]json.RawMessage, error) {
	query := url.Values{}
	for key, values := range params {
		query[key] = values
	}
	query.Set("chat-id", chatID)
	query.Set("chat-type", RecvType(chatType))
	endpoint, err := c.endpoint("bot/messages", query)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	data, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	var body struct {
		List []json.RawMessage `json:"list"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("get messages: parse response: %w", err)
	}
	return body.List, nil
}

// GetMessage looks up a single message by ID.
func (c *Client) GetMessage(ctx context.Context, messageID, chatID, chatType string) (json.RawMessage, error) {
	list, err := c.GetMessages(ctx, chatID, chatType, url.Values{
		"message-id": {messageID},
		"before":     {"1"},
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("get message %s: not found", messageID)
	}
	return list[0], nil
}

// Upload exchanges raw bytes for a resource key. The multipart field is named
// after kind; the part's file name and content type come from the sniffed MIME type.
func (c *Client) Upload(ctx context.Context, kind MediaKind, raw []byte) (string, error) {
	endpoint, err := c.endpoint(string(kind)+"/upload", nil)
	if err != nil {
		return "", err
	}
	mime := mimetype.Detect(raw)
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, string(kind), string(kind)+mime.Extension()))
	header.Set("Content-Type", mime.String())
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(raw); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	data, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", kind, err)
	}
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("upload %s: parse response: %w", kind, err)
	}
	key := dataString(body, string(kind)+"Key")
	if key == "" {
		return "", &ActionFailedError{Code: 1, Msg: fmt.Sprintf("upload %s: empty %sKey", kind, kind)}
	}
	c.logger.Debug("resource uploaded", slog.String("kind", string(kind)), slog.String("key", key), slog.String("mime", mime.String()))
	return key, nil
}

// FileURL returns the download URL of an uploaded resource.
func (c *Client) FileURL(key string) string {
	return strings.TrimRight(c.opts.FileBaseURL, "/") + "/" + strings.TrimLeft(key, "/")
}

func (c *Client) endpoint(api string, query url.Values) (string, error) {
	base, err := url.Parse(c.opts.APIBaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api base url: %w", err)
	}
	u := base.JoinPath(api)
	q := u.Query()
	for key, values := range query {
		q[key] = values
	}
	q.Set("token", c.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// do sends req and unwraps the {code, data, msg} envelope.
func (c *Client) do(req *http.Request) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, &NetworkError{Err: fmt.Errorf("rate limit: %w", err)}
		}
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, apiMaxResponseBytes))
	if err != nil {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &NetworkError{StatusCode: resp.StatusCode, Err: errors.New("empty response")}
	}
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &ActionFailedError{Msg: string(body)}
	}
	if env.Code != 1 {
		return nil, &ActionFailedError{Code: env.Code, Msg: env.Msg}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &ActionFailedError{Code: env.Code, Msg: env.Msg}
	}
	return env.Data, nil
}
