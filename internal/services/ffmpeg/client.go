package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"captionizer/internal/services"
)

// DefaultBinary is the executable resolved from PATH when none is configured.
const DefaultBinary = "ffmpeg"

// Executor runs one ffmpeg invocation. stdin and stdout may be nil.
type Executor interface {
	Run(ctx context.Context, binary string, args []string, stdin io.Reader, stdout io.Writer) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, binary string, args []string, stdin io.Reader, stdout io.Writer) error

// Run implements Executor.
func (f ExecutorFunc) Run(ctx context.Context, binary string, args []string, stdin io.Reader, stdout io.Writer) error {
	return f(ctx, binary, args, stdin, stdout)
}

type execExecutor struct{}

func (execExecutor) Run(ctx context.Context, binary string, args []string, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Option configures the client.
type Option func(*Client)

// WithExecutor overrides how ffmpeg is launched.
func WithExecutor(executor Executor) Option {
	return func(c *Client) {
		if executor != nil {
			c.exec = executor
		}
	}
}

// Client invokes ffmpeg.
type Client struct {
	binary string
	exec   Executor
}

// New constructs a client for the given binary.
func New(binary string, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = DefaultBinary
	}
	c := &Client{binary: binary, exec: execExecutor{}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DecodePCM decodes the first audio stream of path to mono float32 samples.
// A positive sampleRate resamples; zero keeps the source rate.
func (c *Client) DecodePCM(ctx context.Context, path string, sampleRate int) ([]float32, error) {
	if err := requireFile(path, "decode"); err != nil {
		return nil, err
	}
	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin", "-i", path, "-vn", "-ac", "1"}
	if sampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(sampleRate))
	}
	args = append(args, "-f", "f32le", "-acodec", "pcm_f32le", "pipe:1")

	var out bytes.Buffer
	if err := c.exec.Run(ctx, c.binary, args, nil, &out); err != nil {
		return nil, c.toolError(ctx, "decode", path, err)
	}
	return decodeFloat32(out.Bytes()), nil
}

// EncodePCM writes mono float32 samples to dest as 16-bit PCM WAV.
func (c *Client) EncodePCM(ctx context.Context, samples []float32, sampleRate int, dest string) error {
	if sampleRate <= 0 {
		return services.Wrap(services.ErrValidation, "ffmpeg", "encode", fmt.Sprintf("invalid sample rate %d", sampleRate), nil)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ffmpeg: create output dir: %w", err)
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "f32le", "-ar", strconv.Itoa(sampleRate), "-ac", "1", "-i", "pipe:0",
		"-c:a", "pcm_s16le", dest,
	}
	if err := c.exec.Run(ctx, c.binary, args, bytes.NewReader(encodeFloat32(samples)), nil); err != nil {
		_ = os.Remove(dest)
		return c.toolError(ctx, "encode", dest, err)
	}
	return nil
}

// ConvertOptions tunes ToWAV.
type ConvertOptions struct {
	// SampleRate resamples the output when positive.
	SampleRate int
	// Duration of the source, used to turn ffmpeg's out_time into a fraction.
	Duration time.Duration
	// OnProgress receives fractions in [0,1] as ffmpeg reports them.
	OnProgress func(fraction float64)
}

// ToWAV converts the first audio stream of src to a PCM WAV at dest.
func (c *Client) ToWAV(ctx context.Context, src, dest string, opts ConvertOptions) error {
	if err := requireFile(src, "convert"); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("ffmpeg: create output dir: %w", err)
	}
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error", "-nostdin",
		"-progress", "pipe:1", "-nostats",
		"-i", src, "-vn", "-map", "0:a:0", "-c:a", "pcm_s16le",
	}
	if opts.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(opts.SampleRate))
	}
	args = append(args, dest)

	progress := &progressWriter{duration: opts.Duration, report: opts.OnProgress}
	if err := c.exec.Run(ctx, c.binary, args, nil, progress); err != nil {
		_ = os.Remove(dest)
		return c.toolError(ctx, "convert", src, err)
	}
	progress.flush()
	if opts.OnProgress != nil {
		opts.OnProgress(1)
	}
	return nil
}

func (c *Client) toolError(ctx context.Context, op, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return services.Wrap(services.ErrCancelled, "ffmpeg", op, filepath.Base(path), ctxErr)
	}
	return services.Wrap(services.ErrExternalTool, "ffmpeg", op, filepath.Base(path), err)
}

func requireFile(path, op string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, "ffmpeg", op, path, err)
		}
		return fmt.Errorf("ffmpeg: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return services.Wrap(services.ErrValidation, "ffmpeg", op, path+" is a directory", nil)
	}
	return nil
}

func decodeFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}

func encodeFloat32(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}
