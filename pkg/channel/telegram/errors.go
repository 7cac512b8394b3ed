package telegram

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"

	"comitebot/pkg/channel"

	ta "github.com/mymmrac/telego/telegoapi"
)

// classifyError maps a Bot API failure onto a channel.DeliveryError.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var delivery *channel.DeliveryError
	if errors.As(err, &delivery) {
		return err
	}

	var apiErr *ta.Error
	if errors.As(err, &apiErr) {
		return &channel.DeliveryError{
			Kind:       kindFromAPI(apiErr.ErrorCode, apiErr.Description),
			RetryAfter: retryAfter(apiErr),
			Err:        err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &channel.DeliveryError{Kind: channel.ErrorUnreachable, Err: err}
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &channel.DeliveryError{Kind: channel.ErrorUnreachable, Err: err}
	}

	return &channel.DeliveryError{Kind: kindFromText(err.Error()), Err: err}
}

func kindFromAPI(code int, description string) channel.ErrorKind {
	switch {
	case code == 429:
		return channel.ErrorRateLimited
	case code == 403:
		return channel.ErrorPermissionDenied
	case code == 400 && strings.Contains(strings.ToLower(description), "chat not found"):
		return channel.ErrorPermissionDenied
	case code >= 500:
		return channel.ErrorUnreachable
	default:
		return kindFromText(description)
	}
}

func kindFromText(text string) channel.ErrorKind {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "too many requests"):
		return channel.ErrorRateLimited
	case strings.Contains(lower, "bot can't initiate conversation"),
		strings.Contains(lower, "bot was blocked"),
		strings.Contains(lower, "chat not found"),
		strings.Contains(lower, "forbidden"):
		return channel.ErrorPermissionDenied
	case strings.Contains(lower, "timeout"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "no such host"):
		return channel.ErrorUnreachable
	default:
		return channel.ErrorUnknown
	}
}

func retryAfter(apiErr *ta.Error) time.Duration {
	if apiErr.Parameters == nil || apiErr.Parameters.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(apiErr.Parameters.RetryAfter) * time.Second
}
