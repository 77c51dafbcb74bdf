// Package koine is the Go client SDK for the Koine text/object-generation
// gateway service. It exposes three operations: GenerateText and
// GenerateObject for complete responses, and StreamText for incremental
// server-sent-event streaming.
package koine

import (
	"context"

	"github.com/koinehq/koine-go/config"
	"github.com/koinehq/koine-go/gateway"
	"github.com/koinehq/koine-go/utils"
)

// Re-exported types so most callers only import this package.
type (
	Config       = config.Config
	ConfigOption = config.ConfigOption

	Client       = gateway.Client
	Option       = gateway.Option
	Error        = gateway.Error
	Usage        = gateway.Usage
	TextRequest  = gateway.TextRequest
	TextResult   = gateway.TextResult
	StreamResult = gateway.StreamResult

	LogLevel = utils.LogLevel
	Logger   = utils.Logger
)

// Error codes.
const (
	CodeHTTPError       = gateway.CodeHTTPError
	CodeInvalidResponse = gateway.CodeInvalidResponse
	CodeValidationError = gateway.CodeValidationError
	CodeSSEParseError   = gateway.CodeSSEParseError
	CodeStreamError     = gateway.CodeStreamError
	CodeNoSession       = gateway.CodeNoSession
	CodeNoUsage         = gateway.CodeNoUsage
)

// Log levels.
const (
	LogLevelOff   = utils.LogLevelOff
	LogLevelError = utils.LogLevelError
	LogLevelWarn  = utils.LogLevelWarn
	LogLevelInfo  = utils.LogLevelInfo
	LogLevelDebug = utils.LogLevelDebug
)

// Configuration helpers.
var (
	NewConfig    = config.NewConfig
	LoadConfig   = config.LoadConfig
	ApplyOptions = config.ApplyOptions

	SetBaseURL           = config.SetBaseURL
	SetAuthKey           = config.SetAuthKey
	SetModel             = config.SetModel
	SetTimeout           = config.SetTimeout
	SetLogLevel          = config.SetLogLevel
	SetExtraHeaders      = config.SetExtraHeaders
	SetRequestsPerSecond = config.SetRequestsPerSecond

	ErrorCode = gateway.ErrorCode
)

// NewClient builds a Client from defaults plus the given options.
func NewClient(opts ...ConfigOption) (*Client, error) {
	cfg := config.NewConfig()
	config.ApplyOptions(cfg, opts...)
	return gateway.NewClient(cfg)
}

// NewClientFromEnv builds a Client from KOINE_* environment variables;
// options are applied on top.
func NewClientFromEnv(opts ...ConfigOption) (*Client, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	config.ApplyOptions(cfg, opts...)
	return gateway.NewClient(cfg)
}

// GenerateObject requests a structured generation decoded into T. See
// gateway.GenerateObject.
func GenerateObject[T any](ctx context.Context, c *Client, req TextRequest) (*gateway.ObjectResult[T], error) {
	return gateway.GenerateObject[T](ctx, c, req)
}
