package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"captionizer/internal/convert"
	"captionizer/internal/pipeline"
	"captionizer/internal/transcribe"
	"captionizer/internal/translate"
	"captionizer/internal/workflow"
)

// errIncomplete marks a run where files were skipped or a batch halted. The
// summary has already been printed, so main only sets the exit code.
var errIncomplete = errors.New("one or more files were not processed")

type batchHandle interface {
	Cancel()
	Wait() pipeline.BatchResult
}

type batchStarter struct {
	workflow string
	start    func(ctx context.Context, events pipeline.Events) (batchHandle, error)
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "convert <files or directories...>",
		Short: "Convert audio and video files to canonical WAV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.newManager()
			if err != nil {
				return err
			}
			paths, err := expandInputs(args)
			if err != nil {
				return err
			}
			return runBatches(cmd, convertStarter(m, m.ConvertJobs(paths, dest)))
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Directory for converted files (default: paths.import_dir)")
	return cmd
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var output, mode, language string
	cmd := &cobra.Command{
		Use:   "transcribe <files or directories...>",
		Short: "Transcribe audio into text and SRT captions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.newManager()
			if err != nil {
				return err
			}
			paths, err := expandInputs(args)
			if err != nil {
				return err
			}
			jobs, err := m.TranscribeJobs(paths, output, mode, language)
			if err != nil {
				return err
			}
			return runBatches(cmd, transcribeStarter(m, jobs))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default: paths.output_dir or beside the source)")
	cmd.Flags().StringVar(&mode, "mode", "", "Recognition mode: segmented or full")
	cmd.Flags().StringVarP(&language, "language", "l", "", "Spoken language (name or code; blank detects)")
	return cmd
}

func newTranslateCommand(ctx *commandContext) *cobra.Command {
	var output, from, to string
	cmd := &cobra.Command{
		Use:   "translate <files or directories...>",
		Short: "Translate .txt and .srt files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := ctx.newManager()
			if err != nil {
				return err
			}
			paths, err := expandInputs(args)
			if err != nil {
				return err
			}
			return runBatches(cmd, translateStarter(m, m.TranslateJobs(paths, output, from, to)))
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output directory (default: paths.output_dir or beside the source)")
	cmd.Flags().StringVar(&from, "from", "", "Source language (default: translation.source_language)")
	cmd.Flags().StringVar(&to, "to", "", "Target language (default: translation.target_language)")
	return cmd
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var converts, transcribes, translates []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run convert, transcribe, and translate batches side by side",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(converts)+len(transcribes)+len(translates) == 0 {
				return errors.New("nothing to do: pass --convert, --transcribe, or --translate")
			}
			m, err := ctx.newManager()
			if err != nil {
				return err
			}
			var starters []batchStarter
			if len(converts) > 0 {
				paths, err := expandInputs(converts)
				if err != nil {
					return err
				}
				starters = append(starters, convertStarter(m, m.ConvertJobs(paths, "")))
			}
			if len(transcribes) > 0 {
				paths, err := expandInputs(transcribes)
				if err != nil {
					return err
				}
				jobs, err := m.TranscribeJobs(paths, "", "", "")
				if err != nil {
					return err
				}
				starters = append(starters, transcribeStarter(m, jobs))
			}
			if len(translates) > 0 {
				paths, err := expandInputs(translates)
				if err != nil {
					return err
				}
				starters = append(starters, translateStarter(m, m.TranslateJobs(paths, "", "", "")))
			}
			return runBatches(cmd, starters...)
		},
	}
	cmd.Flags().StringSliceVar(&converts, "convert", nil, "Files or directories to convert")
	cmd.Flags().StringSliceVar(&transcribes, "transcribe", nil, "Files or directories to transcribe")
	cmd.Flags().StringSliceVar(&translates, "translate", nil, "Files or directories to translate")
	return cmd
}

func convertStarter(m *workflow.Manager, jobs []convert.Job) batchStarter {
	return batchStarter{workflow: workflow.Convert, start: func(ctx context.Context, events pipeline.Events) (batchHandle, error) {
		return m.StartConvert(ctx, jobs, events)
	}}
}

func transcribeStarter(m *workflow.Manager, jobs []transcribe.Job) batchStarter {
	return batchStarter{workflow: workflow.Transcribe, start: func(ctx context.Context, events pipeline.Events) (batchHandle, error) {
		return m.StartTranscribe(ctx, jobs, events)
	}}
}

func translateStarter(m *workflow.Manager, jobs []translate.Job) batchStarter {
	return batchStarter{workflow: workflow.Translate, start: func(ctx context.Context, events pipeline.Events) (batchHandle, error) {
		return m.StartTranslate(ctx, jobs, events)
	}}
}

// runBatches starts every batch, waits for all of them, and maps the outcome
// onto the command error. A progress bar is only used for a single batch on
// a terminal; concurrent batches print plain lines.
//
// Batches run detached from the command context. When it ends (Ctrl-C) every
// handle is cancelled, which lets the in-flight step of each batch finish.
func runBatches(cmd *cobra.Command, starters ...batchStarter) error {
	out := cmd.OutOrStdout()
	interactive := len(starters) == 1 && isTerminal(out)
	var mu sync.Mutex

	var (
		handles  []batchHandle
		startErr error
	)
	batchCtx := context.WithoutCancel(cmd.Context())
	for _, s := range starters {
		view := newBatchView(out, &mu, s.workflow, interactive)
		h, err := s.start(batchCtx, view)
		if err != nil {
			startErr = errors.Join(startErr, fmt.Errorf("%s: %w", s.workflow, err))
			continue
		}
		handles = append(handles, h)
	}

	stop := context.AfterFunc(cmd.Context(), func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cancelling; waiting for the current file to finish...")
		for _, h := range handles {
			h.Cancel()
		}
	})
	defer stop()

	incomplete, cancelled := false, false
	for _, w := range handles {
		result := w.Wait()
		switch {
		case result.WasCancelled():
			cancelled = true
		case result.Halted() || len(result.Skipped) > 0:
			incomplete = true
		}
	}

	switch {
	case startErr != nil:
		return startErr
	case cancelled:
		return context.Canceled
	case incomplete:
		return errIncomplete
	}
	return nil
}

// expandInputs resolves arguments to files. Directories contribute their
// regular files, sorted by name; hidden files are ignored.
func expandInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			// Missing files are reported per job by the unit.
			paths = append(paths, arg)
			continue
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", arg, err)
		}
		var files []string
		for _, entry := range entries {
			if !entry.Type().IsRegular() || entry.Name()[0] == '.' {
				continue
			}
			files = append(files, filepath.Join(arg, entry.Name()))
		}
		sort.Strings(files)
		paths = append(paths, files...)
	}
	return paths, nil
}
