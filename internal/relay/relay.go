// Fetches a remote JSON payload into the cache and answers questions about it
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iTrooz/ask-relay/internal/cache"
	"github.com/iTrooz/ask-relay/internal/llm"
	"github.com/iTrooz/ask-relay/internal/telemetry"
	"github.com/iTrooz/ask-relay/internal/upstream"
)

// Fetcher retrieves the payload to cache
type Fetcher interface {
	Fetch(ctx context.Context, apiURL, token string) (*upstream.Response, error)
}

// TargetPolicy decides which URLs may be fetched
type TargetPolicy interface {
	Allowed(targetURL string) bool
}

// FetchRequest is the input of a fetch
type FetchRequest struct {
	APIURL string `json:"apiUrl"`
	Token  string `json:"token"`
}

// Service implements the fetch and ask operations
type Service struct {
	store     cache.Store
	key       string
	fetcher   Fetcher
	policy    TargetPolicy
	completer llm.Completer
	tracer    trace.Tracer
}

// New creates a relay service storing the payload under cache.Key(namespace)
func New(store cache.Store, namespace string, fetcher Fetcher, policy TargetPolicy, completer llm.Completer) *Service {
	return &Service{
		store:     store,
		key:       cache.Key(namespace),
		fetcher:   fetcher,
		policy:    policy,
		completer: completer,
		tracer:    telemetry.Tracer(),
	}
}

// BuildPrompt composes the instruction, the cached data and the question into one prompt
func BuildPrompt(data []byte, question string) string {
	return "Given the following data:\n" + string(data) + "\nAnswer this question:\n" + question
}

// Fetch retrieves req.APIURL with the bearer token and replaces the cached payload with the body.
// The cache is left untouched on any failure.
func (s *Service) Fetch(ctx context.Context, req FetchRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, "relay.Fetch")
	defer func() { endSpan(span, err) }()

	apiURL := strings.TrimSpace(req.APIURL)
	token := strings.TrimSpace(req.Token)
	if apiURL == "" || token == "" {
		return fmt.Errorf("%w: apiUrl and token are required", ErrMissingInput)
	}

	target, err := url.Parse(apiURL)
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
		return fmt.Errorf("%w: %q must be an absolute http(s) URL", ErrInvalidTarget, apiURL)
	}
	span.SetAttributes(attribute.String("relay.target_host", target.Host))

	if s.policy != nil && !s.policy.Allowed(apiURL) {
		logrus.Warnf("Rejected fetch of %s (blocked by rules)", target.Host)
		return ErrTargetNotAllowed
	}

	resp, err := s.fetcher.Fetch(ctx, apiURL, token)
	if errors.Is(err, upstream.ErrRedirectNotAllowed) {
		return fmt.Errorf("%w: %v", ErrTargetNotAllowed, err)
	}
	if err != nil {
		logrus.Errorf("Failed to fetch data from %s: %v", target.Host, err)
		return &FetchError{Err: err}
	}
	span.SetAttributes(attribute.Int("relay.upstream_status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		logrus.Warnf("Upstream %s responded %d, keeping cached data", target.Host, resp.StatusCode)
		return &UpstreamStatusError{StatusCode: resp.StatusCode}
	}

	if err := s.store.Set(ctx, s.key, resp.Body); err != nil {
		return fmt.Errorf("failed to cache data: %w", err)
	}

	logrus.Infof("Fetched and cached %d bytes from %s", len(resp.Body), target.Host)
	return nil
}

// Ask answers question about the cached payload
func (s *Service) Ask(ctx context.Context, question string) (answer string, err error) {
	ctx, span := s.tracer.Start(ctx, "relay.Ask")
	defer func() { endSpan(span, err) }()

	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: question is required", ErrMissingInput)
	}

	data, err := s.store.Get(ctx, s.key)
	if err != nil {
		return "", fmt.Errorf("failed to read cached data: %w", err)
	}
	if data == nil {
		return "", ErrNoData
	}

	prompt := BuildPrompt(data, question)
	span.SetAttributes(attribute.Int("relay.prompt_length", len(prompt)))

	answer, err = s.completer.Complete(ctx, prompt)
	if err != nil {
		logrus.Errorf("Failed to get answer from model: %v", err)
		return "", &ModelError{Err: err}
	}

	return answer, nil
}

// Ready re-runs the cache backend's connectivity check
func (s *Service) Ready(ctx context.Context) error {
	return s.store.Init(ctx)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
