package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"captionizer/internal/config"
	"captionizer/internal/pipeline"
	"captionizer/internal/services"
)

const userAgent = "Captionizer-Go/0.1.0"

// maxListedSources caps how many completed files a batch summary names.
const maxListedSources = 20

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyItemError(ctx context.Context, workflow, source string, err error) error
	NotifyBatchFinished(ctx context.Context, result pipeline.BatchResult) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		itemErrors: cfg.Notifications.ItemErrors,
		batches:    cfg.Notifications.Batches,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	itemErrors bool
	batches    bool
}

func (n *ntfyService) NotifyItemError(ctx context.Context, workflow, source string, err error) error {
	if !n.itemErrors || err == nil {
		return nil
	}
	title, reason := services.Describe(err)
	kind := services.Classify(err)
	data := payload{
		title:   fmt.Sprintf("Captionizer - %s", title),
		message: fmt.Sprintf("%s: %s\n%s", workflowLabel(workflow), filepath.Base(strings.TrimSpace(source)), reason),
		tags:    []string{"captionizer", workflow, string(kind)},
	}
	if kind == services.KindTransientNetwork || kind == services.KindUnexpected {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchFinished(ctx context.Context, result pipeline.BatchResult) error {
	if !n.batches {
		return nil
	}
	duration := result.Duration().Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	var title string
	switch {
	case result.WasCancelled():
		title = "Captionizer - " + workflowLabel(result.Workflow) + " Cancelled"
	case result.Halted():
		title = "Captionizer - " + workflowLabel(result.Workflow) + " Stopped"
	case len(result.Skipped) > 0:
		title = "Captionizer - " + workflowLabel(result.Workflow) + " Complete (with errors)"
	default:
		title = "Captionizer - " + workflowLabel(result.Workflow) + " Complete"
	}

	var builder strings.Builder
	fmt.Fprintf(&builder, "%d of %d files completed in %s", len(result.Sources), result.Total(), duration)
	if len(result.Skipped) > 0 {
		fmt.Fprintf(&builder, ", %d skipped", len(result.Skipped))
	}
	if len(result.Cancelled) > 0 {
		fmt.Fprintf(&builder, ", %d cancelled", len(result.Cancelled))
	}
	for i, source := range result.Sources {
		if i == maxListedSources {
			fmt.Fprintf(&builder, "\n... and %d more", len(result.Sources)-maxListedSources)
			break
		}
		builder.WriteString("\n")
		builder.WriteString(filepath.Base(source))
	}

	data := payload{
		title:   title,
		message: builder.String(),
		tags:    []string{"captionizer", result.Workflow, "batch"},
	}
	if result.Halted() {
		data.priority = "high"
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Captionizer - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"captionizer", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func workflowLabel(workflow string) string {
	switch workflow {
	case "convert":
		return "Import"
	case "transcribe":
		return "Transcription"
	case "translate":
		return "Translation"
	case "":
		return "Batch"
	default:
		return workflow
	}
}

type noopService struct{}

func (noopService) NotifyItemError(context.Context, string, string, error) error { return nil }
func (noopService) NotifyBatchFinished(context.Context, pipeline.BatchResult) error {
	return nil
}
func (noopService) TestNotification(context.Context) error { return nil }
