// Package github implements mirror.Host on top of the GitHub REST API.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"
)

const (
	// DefaultBaseURL is the default GitHub API base URL
	DefaultBaseURL = "https://api.github.com"

	// TokenEnv supplies a token when no credentials are configured.
	TokenEnv = "GITHUB_TOKEN"

	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 30 * time.Second
)

// ClientOption configures a Client
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL for the GitHub API
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets a custom HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithHTTPClient sets a custom HTTP client. Authentication is layered on top
// of its transport.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithBasicAuth authenticates with a username and password instead of a token.
func WithBasicAuth(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// Client is a GitHub API client implementing mirror.Host.
//
// The go-github client is built lazily on first use. Token authentication
// takes precedence over basic authentication; with neither the client is
// anonymous.
//
// Example:
//
//	client := github.NewClient(token,
//	    github.WithBaseURL("https://ghe.example.com/api/v3"),
//	    github.WithTimeout(10*time.Second),
//	)
type Client struct {
	token        string
	username     string
	password     string
	baseURL      string
	httpClient   *http.Client
	timeout      time.Duration
	githubClient *github.Client // Lazy-loaded go-github client
}

// NewClient creates a new GitHub API client with the given token
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.httpClient.Timeout = c.timeout

	return c
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GitHubClient returns the underlying go-github client (lazy-loaded)
func (c *Client) GitHubClient() *github.Client {
	if c.githubClient != nil {
		return c.githubClient
	}

	httpClient := c.httpClient
	switch {
	case c.token != "":
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token})
		httpClient = oauth2.NewClient(ctx, ts)
		httpClient.Timeout = c.timeout
	case c.username != "":
		tp := &github.BasicAuthTransport{
			Username:  c.username,
			Password:  c.password,
			Transport: c.httpClient.Transport,
		}
		httpClient = &http.Client{Transport: tp, Timeout: c.timeout}
	}

	c.githubClient = github.NewClient(httpClient)

	if c.baseURL != DefaultBaseURL && c.baseURL != "" {
		baseURL := c.baseURL
		// go-github requires a trailing slash
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		if parsedURL, err := url.Parse(baseURL); err == nil {
			c.githubClient.BaseURL = parsedURL
		}
	}
	return c.githubClient
}
