// Package client is a Go client for the KeepUp HTTP API.
//
// A Client holds the base URL and, once signed in, a bearer token that it
// attaches to every request. Non-2xx responses come back as *APIError. A
// 401 from any endpoint clears the held token, so a stale session is
// noticed on the next call instead of failing forever.
//
//	c, _ := client.New("http://localhost:8080")
//	s := client.NewSession(c)
//	if _, err := s.Login(ctx, "alice", "password123"); err != nil { ... }
//	posts, _ := c.Feed(ctx, client.FeedParams{Scope: "friends"})
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/keepup/keepup-api/internal/model"
)

// Client talks to one KeepUp server. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client (10s timeout).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithToken starts the client with a token saved from an earlier login.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New returns a client for the server at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL %q must be http or https", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) ClearToken() {
	c.SetToken("")
}

// APIError is a non-2xx response. Code and Message come from the server's
// error body when it sent one.
type APIError struct {
	Status  int
	Code    string
	Message string
	Field   string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("keepup: HTTP %d", e.Status)
	}
	return fmt.Sprintf("keepup: HTTP %d %s: %s", e.Status, e.Code, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0 if err is not an
// *APIError.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// do sends one request. body is JSON-encoded when non-nil; out is decoded
// from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encoding request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("client: building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusUnauthorized {
			c.ClearToken()
		}
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Field   string `json:"field"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Code, apiErr.Message, apiErr.Field = body.Error, body.Message, body.Field
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func pageQuery(limit, offset int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	return q
}

// =========================================================================
// HEALTH & AUTH
// =========================================================================

type Health struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Environment string    `json:"environment"`
}

// Health calls GET /health. A server whose database is unreachable answers
// 503, which comes back as an *APIError.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.do(ctx, http.MethodGet, "/health", nil, nil, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/register", nil, req, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Login signs in by username or email and keeps the returned token.
func (c *Client) Login(ctx context.Context, login, password string) (*AuthResponse, error) {
	var res AuthResponse
	body := map[string]string{"login": login, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", nil, body, &res); err != nil {
		return nil, err
	}
	c.SetToken(res.Token)
	return &res, nil
}

// Logout tells the server to drop its cookie and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	defer c.ClearToken()
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// =========================================================================
// POSTS & COMMENTS
// =========================================================================

type FeedParams struct {
	Scope  string // "all" (default) or "friends"
	Limit  int
	Offset int
}

func (c *Client) Feed(ctx context.Context, p FeedParams) ([]model.Post, error) {
	q := pageQuery(p.Limit, p.Offset)
	if p.Scope != "" {
		q.Set("scope", p.Scope)
	}
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts", q, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*model.Post, error) {
	return c.post(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(id), nil)
}

type CreatePostRequest struct {
	Content  string `json:"content"`
	MediaURL string `json:"mediaUrl,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
}

func (c *Client) CreatePost(ctx context.Context, req CreatePostRequest) (*model.Post, error) {
	return c.post(ctx, http.MethodPost, "/api/posts", req)
}

// UpdatePostRequest fields left nil are unchanged.
type UpdatePostRequest struct {
	Content  *string `json:"content,omitempty"`
	MediaURL *string `json:"mediaUrl,omitempty"`
}

func (c *Client) UpdatePost(ctx context.Context, id string, req UpdatePostRequest) (*model.Post, error) {
	return c.post(ctx, http.MethodPut, "/api/posts/"+url.PathEscape(id), req)
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/posts/"+url.PathEscape(id), nil, nil, nil)
}

// LikePost toggles the caller's like and returns the updated post.
func (c *Client) LikePost(ctx context.Context, id string) (*model.Post, error) {
	return c.post(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/like", nil)
}

// SavePost toggles the caller's save and returns the updated post.
func (c *Client) SavePost(ctx context.Context, id string) (*model.Post, error) {
	return c.post(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(id)+"/save", nil)
}

func (c *Client) post(ctx context.Context, method, path string, body any) (*model.Post, error) {
	var p model.Post
	if err := c.do(ctx, method, path, nil, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Comments(ctx context.Context, postID string) ([]model.Comment, error) {
	var comments []model.Comment
	if err := c.do(ctx, http.MethodGet, "/api/posts/"+url.PathEscape(postID)+"/comments", nil, nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (*model.Comment, error) {
	var comment model.Comment
	path := "/api/posts/" + url.PathEscape(postID) + "/comments"
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]string{"content": content}, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID string) error {
	path := "/api/posts/" + url.PathEscape(postID) + "/comments/" + url.PathEscape(commentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

func (c *Client) LikeComment(ctx context.Context, postID, commentID string) (*model.Comment, error) {
	var comment model.Comment
	path := "/api/posts/" + url.PathEscape(postID) + "/comments/" + url.PathEscape(commentID) + "/like"
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// =========================================================================
// USERS & FRIENDS
// =========================================================================

func (c *Client) Users(ctx context.Context, limit, offset int) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/api/users", pageQuery(limit, offset), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	return c.user(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil)
}

// UpdateUserRequest fields left nil are unchanged, down to individual
// settings keys.
type UpdateUserRequest struct {
	Name           *string              `json:"name,omitempty"`
	Bio            *string              `json:"bio,omitempty"`
	ProfilePicture *string              `json:"profilePicture,omitempty"`
	Settings       *model.SettingsPatch `json:"settings,omitempty"`
}

func (c *Client) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*model.User, error) {
	return c.user(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), req)
}

func (c *Client) UserPosts(ctx context.Context, id string, limit, offset int) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id)+"/posts", pageQuery(limit, offset), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) SavedPosts(ctx context.Context, limit, offset int) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/api/users/me/saved", pageQuery(limit, offset), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) Friends(ctx context.Context, userID string) ([]model.UserSummary, error) {
	var friends []model.UserSummary
	if err := c.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID)+"/friends", nil, nil, &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

// AddFriend befriends friendID on behalf of userID, which must be the
// signed-in user.
func (c *Client) AddFriend(ctx context.Context, userID, friendID string) (*model.User, error) {
	return c.user(ctx, http.MethodPost, "/api/users/"+url.PathEscape(userID)+"/friends",
		map[string]string{"friendId": friendID})
}

func (c *Client) RemoveFriend(ctx context.Context, userID, friendID string) (*model.User, error) {
	return c.user(ctx, http.MethodDelete,
		"/api/users/"+url.PathEscape(userID)+"/friends/"+url.PathEscape(friendID), nil)
}

func (c *Client) user(ctx context.Context, method, path string, body any) (*model.User, error) {
	var u model.User
	if err := c.do(ctx, method, path, nil, body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// =========================================================================
// GROUPS
// =========================================================================

func (c *Client) Groups(ctx context.Context, limit, offset int) ([]model.Group, error) {
	var groups []model.Group
	if err := c.do(ctx, http.MethodGet, "/api/groups", pageQuery(limit, offset), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	return c.group(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(id), nil)
}

type CreateGroupRequest struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Avatar      string               `json:"avatar,omitempty"`
	Settings    *model.GroupSettings `json:"settings,omitempty"`
}

func (c *Client) CreateGroup(ctx context.Context, req CreateGroupRequest) (*model.Group, error) {
	return c.group(ctx, http.MethodPost, "/api/groups", req)
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/groups/"+url.PathEscape(id), nil, nil, nil)
}

// JoinGroup adds the signed-in user to a group.
func (c *Client) JoinGroup(ctx context.Context, id string) (*model.Group, error) {
	return c.AddGroupMember(ctx, id, "")
}

// AddGroupMember adds userID, or the caller when userID is empty.
func (c *Client) AddGroupMember(ctx context.Context, groupID, userID string) (*model.Group, error) {
	var body any
	if userID != "" {
		body = map[string]string{"userId": userID}
	}
	return c.group(ctx, http.MethodPost, "/api/groups/"+url.PathEscape(groupID)+"/members", body)
}

func (c *Client) RemoveGroupMember(ctx context.Context, groupID, userID string) (*model.Group, error) {
	return c.group(ctx, http.MethodDelete,
		"/api/groups/"+url.PathEscape(groupID)+"/members/"+url.PathEscape(userID), nil)
}

func (c *Client) GroupPosts(ctx context.Context, id string, limit, offset int) ([]model.Post, error) {
	var posts []model.Post
	if err := c.do(ctx, http.MethodGet, "/api/groups/"+url.PathEscape(id)+"/posts", pageQuery(limit, offset), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) group(ctx context.Context, method, path string, body any) (*model.Group, error) {
	var g model.Group
	if err := c.do(ctx, method, path, nil, body, &g); err != nil {
		return nil, err
	}
	return &g, nil
}
