// Package advice generates remediation guidance for a risk report using
// Claude. The analysis pipeline never depends on this package; `miq advise`
// is the only caller, and it degrades to a plain error when no API key is
// configured.
package advice

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/migrationiq/migrationiq/internal/risk"
	"github.com/migrationiq/migrationiq/internal/telemetry"
)

const (
	// DefaultModel is used when the config does not name one.
	DefaultModel = "claude-3-5-haiku-latest"

	maxRetries     = 3
	initialBackoff = 1 * time.Second
	maxTokens      = 1024
)

// errAPIKeyRequired is returned when an API key is needed but not provided.
var errAPIKeyRequired = errors.New("API key required")

// Client wraps the Anthropic API for remediation advice.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	promptTemplate *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient creates an advice client. Env var ANTHROPIC_API_KEY takes
// precedence over the explicit apiKey.
func NewClient(apiKey, model string) (*Client, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or provide one via config", errAPIKeyRequired)
	}
	if model == "" {
		model = DefaultModel
	}

	tmpl, err := template.New("advise").Parse(advisePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse advise template: %w", err)
	}

	adviceMetricsOnce.Do(initAdviceMetrics)

	return &Client{
		client:         anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:          anthropic.Model(model),
		promptTemplate: tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// Advise renders the report into a prompt and returns Claude's remediation
// plan as markdown.
func (c *Client) Advise(ctx context.Context, report *risk.Report) (string, error) {
	if len(report.Findings) == 0 {
		return "", errors.New("nothing to advise: report has no findings")
	}
	prompt, err := c.renderPrompt(report)
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return c.callWithRetry(ctx, prompt)
}

const advisePromptTemplate = `You are reviewing database schema migration findings for a pre-merge check.

Risk severity: {{.Severity}} (total score {{.TotalScore}})

Findings:
{{range .Findings}}- [{{.Category}}] weight {{.Weight}}{{if .MigrationID}} in {{.MigrationID}}{{end}}: {{.Message}}
{{end}}
For each finding, give a short, concrete remediation the author can apply
before merging. Prefer expand/contract (two-step) strategies for destructive
or locking changes. Answer in markdown with one section per finding, most
severe first. Be terse.`

func (c *Client) renderPrompt(report *risk.Report) (string, error) {
	var b strings.Builder
	if err := c.promptTemplate.Execute(&b, report); err != nil {
		return "", err
	}
	return b.String(), nil
}

// adviceMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var adviceMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var adviceMetricsOnce sync.Once

func initAdviceMetrics() {
	m := telemetry.Meter("github.com/migrationiq/migrationiq/ai")
	adviceMetrics.inputTokens, _ = m.Int64Counter("miq.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	adviceMetrics.outputTokens, _ = m.Int64Counter("miq.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	adviceMetrics.duration, _ = m.Float64Histogram("miq.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/migrationiq/migrationiq/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("miq.ai.model", string(c.model)),
		attribute.String("miq.ai.operation", "advise"),
	)

	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		t0 := time.Now()
		message, err := c.client.Messages.New(ctx, params)
		ms := float64(time.Since(t0).Milliseconds())

		if err == nil {
			modelAttr := attribute.String("miq.ai.model", string(c.model))
			if adviceMetrics.inputTokens != nil {
				adviceMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
				adviceMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
				adviceMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
			}
			span.SetAttributes(attribute.Int("miq.ai.attempts", attempt+1))

			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, lastErr.Error())
	}
	return "", fmt.Errorf("failed after %d retries: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
