package workflow

import (
	"strings"
	"time"

	"captionizer/internal/convert"
	"captionizer/internal/fileutil"
	"captionizer/internal/transcribe"
	"captionizer/internal/translate"
)

// ConvertJobs describes conversion jobs. An empty dest uses the import directory.
func (m *Manager) ConvertJobs(paths []string, dest string) []convert.Job {
	if strings.TrimSpace(dest) == "" {
		dest = m.cfg.Paths.ImportDir
	}
	jobs := make([]convert.Job, 0, len(paths))
	for _, p := range paths {
		jobs = append(jobs, convert.Job{Path: p, DestDir: dest})
	}
	return jobs
}

// TranscribeJobs describes transcription jobs. Blank arguments fall back to
// the configured output directory, mode, and language.
func (m *Manager) TranscribeJobs(paths []string, outputDir, mode, language string) ([]transcribe.Job, error) {
	if strings.TrimSpace(mode) == "" {
		mode = m.cfg.Transcription.Mode
	}
	parsed, err := transcribe.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	outputDir = m.outputDir(outputDir)
	if strings.TrimSpace(language) == "" {
		language = m.cfg.Transcription.Language
	}
	jobs := make([]transcribe.Job, 0, len(paths))
	for _, p := range paths {
		jobs = append(jobs, transcribe.Job{Path: p, OutputDir: outputDir, Mode: parsed, Language: language})
	}
	return jobs, nil
}

// TranslateJobs describes translation jobs. Blank languages use the configured pair.
func (m *Manager) TranslateJobs(paths []string, outputDir, source, target string) []translate.Job {
	if strings.TrimSpace(source) == "" {
		source = m.cfg.Translation.SourceLanguage
	}
	if strings.TrimSpace(target) == "" {
		target = m.cfg.Translation.TargetLanguage
	}
	outputDir = m.outputDir(outputDir)
	jobs := make([]translate.Job, 0, len(paths))
	for _, p := range paths {
		jobs = append(jobs, translate.Job{Path: p, OutputDir: outputDir, SourceLanguage: source, TargetLanguage: target})
	}
	return jobs
}

func (m *Manager) outputDir(dir string) string {
	if strings.TrimSpace(dir) != "" {
		return dir
	}
	return m.cfg.Paths.OutputDir
}

// CleanTemp applies the temp retention policy to the temp directory.
func (m *Manager) CleanTemp(now time.Time) (fileutil.ExpireResult, error) {
	return fileutil.Expire(m.cfg.Paths.TempDir, m.cfg.TempRetention(), m.cfg.TempMaxBytes(), now)
}
