package onebot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"onebridge/pkg/logger"
)

// APIError is a non-"ok" response from the gateway.
type APIError struct {
	Action  string
	Status  string
	Retcode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("onebot action %s failed: status=%s retcode=%d", e.Action, e.Status, e.Retcode)
}

type apiResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the gateway's HTTP action API: every action is a POST of
// a JSON object to <base>/<action> with an optional bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) call(ctx context.Context, action string, params any, out any) error {
	var body io.Reader = strings.NewReader("{}")
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode %s params: %w", action, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", action, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", action, err)
	}
	if apiResp.Status != "ok" {
		return &APIError{Action: action, Status: apiResp.Status, Retcode: apiResp.Retcode}
	}
	if out != nil && len(apiResp.Data) > 0 && string(apiResp.Data) != "null" {
		if err := json.Unmarshal(apiResp.Data, out); err != nil {
			return fmt.Errorf("decode %s data: %w", action, err)
		}
	}
	return nil
}

type LoginInfo struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
}

type Friend struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Remark   string `json:"remark"`
}

type Group struct {
	GroupID     int64  `json:"group_id"`
	GroupName   string `json:"group_name"`
	MemberCount int    `json:"member_count"`
}

type GroupMember struct {
	GroupID  int64  `json:"group_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
	Role     string `json:"role"`
}

type StoredMessage struct {
	Time        int64           `json:"time"`
	MessageType string          `json:"message_type"`
	MessageID   json.RawMessage `json:"message_id"`
	Sender      *EventSender    `json:"sender"`
	Message     json.RawMessage `json:"message"`
}

type sentMessage struct {
	MessageID json.RawMessage `json:"message_id"`
}

// SendPrivateMsg sends segments to a user; returns the new message id.
func (c *Client) SendPrivateMsg(ctx context.Context, userID int64, segs []Segment) (string, error) {
	var out sentMessage
	err := c.call(ctx, "send_private_msg", map[string]any{
		"user_id": userID,
		"message": segs,
	}, &out)
	if err != nil {
		return "", err
	}
	return asString(out.MessageID), nil
}

// SendGroupMsg sends segments to a group; returns the new message id.
func (c *Client) SendGroupMsg(ctx context.Context, groupID int64, segs []Segment) (string, error) {
	var out sentMessage
	err := c.call(ctx, "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  segs,
	}, &out)
	if err != nil {
		return "", err
	}
	return asString(out.MessageID), nil
}

func (c *Client) GetLoginInfo(ctx context.Context) (*LoginInfo, error) {
	var info LoginInfo
	if err := c.call(ctx, "get_login_info", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) GetFriendList(ctx context.Context) ([]Friend, error) {
	var friends []Friend
	if err := c.call(ctx, "get_friend_list", nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (c *Client) GetGroupList(ctx context.Context) ([]Group, error) {
	var groups []Group
	if err := c.call(ctx, "get_group_list", nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) GetGroupInfo(ctx context.Context, groupID int64) (*Group, error) {
	var g Group
	err := c.call(ctx, "get_group_info", map[string]any{"group_id": groupID}, &g)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) GetGroupMemberList(ctx context.Context, groupID int64) ([]GroupMember, error) {
	var members []GroupMember
	err := c.call(ctx, "get_group_member_list", map[string]any{"group_id": groupID}, &members)
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) GetGroupMemberInfo(ctx context.Context, groupID, userID int64) (*GroupMember, error) {
	var m GroupMember
	err := c.call(ctx, "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) GetMsg(ctx context.Context, messageID string) (*StoredMessage, error) {
	var m StoredMessage
	if err := c.call(ctx, "get_msg", map[string]any{"message_id": messageIDParam(messageID)}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// QuotedText fetches the message behind a reply segment and renders its
// text the way live segments render. The sender label prefers the group
// card over the nickname.
func (c *Client) QuotedText(ctx context.Context, messageID string) (string, string, error) {
	m, err := c.GetMsg(ctx, messageID)
	if err != nil {
		return "", "", err
	}
	segs, err := DecodeSegments(m.Message)
	if err != nil {
		return "", "", err
	}
	label := ""
	if m.Sender != nil {
		label = m.Sender.Card
		if label == "" {
			label = m.Sender.Nickname
		}
	}
	return strings.TrimSpace(ExtractText(segs)), label, nil
}

func (c *Client) DeleteMsg(ctx context.Context, messageID string) error {
	return c.call(ctx, "delete_msg", map[string]any{"message_id": messageIDParam(messageID)}, nil)
}

// messageIDParam sends numeric ids as numbers. NapCat rejects quoted
// numeric message ids on lookup actions.
func messageIDParam(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

// Probe checks gateway liveness with a bounded deadline.
func (c *Client) Probe(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if _, err := c.GetLoginInfo(ctx); err != nil {
		logger.WarnCF("onebot", "probe failed", map[string]interface{}{
			logger.FieldError: err.Error(),
		})
		return err
	}
	return nil
}
