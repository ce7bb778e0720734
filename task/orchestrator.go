package task

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"clipforge/config"
	"clipforge/logging"
	"clipforge/state"
	"clipforge/subtitle"
)

var log = logging.GetLogger()

// ScriptGenerator produces the narration script for a subject.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, subject, language string, paragraphs int) (string, error)
}

// TermGenerator produces footage search terms from a subject and script.
type TermGenerator interface {
	GenerateTerms(ctx context.Context, subject, script string, amount int) ([]string, error)
}

// SpeechSynthesizer renders the script to an audio file and reports timing
// metadata. A nil metadata result means synthesis produced nothing usable.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, voiceName string, rate float64, audioFile string) (*TimingMetadata, error)
}

// SubtitleTimingWriter writes a subtitle file from synthesis timing metadata.
// It may fail silently; callers check that the file materialized.
type SubtitleTimingWriter interface {
	WriteSubtitle(meta *TimingMetadata, script, subtitleFile string) error
}

// AudioTranscriber writes a subtitle file by transcribing the audio.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audioFile, subtitleFile string) error
}

// SubtitleCorrector reconciles a transcribed subtitle file against the
// canonical script, rewriting the file in place.
type SubtitleCorrector interface {
	Correct(subtitleFile, script string) error
}

// FootageOptions narrows the footage download request.
type FootageOptions struct {
	Source          string
	Aspect          VideoAspect
	ConcatMode      ConcatMode
	TotalDuration   float64 // seconds of footage required across all outputs
	MaxClipDuration int
}

// FootageProvider searches and downloads stock clips for the given terms.
type FootageProvider interface {
	Download(ctx context.Context, taskID string, terms []string, opts FootageOptions) ([]string, error)
}

// CombineOptions drives one combine step of the assembly engine.
type CombineOptions struct {
	OutputPath      string
	VideoPaths      []string
	AudioDuration   float64
	Aspect          VideoAspect
	ConcatMode      ConcatMode
	MaxClipDuration int
	Threads         int
}

// RenderOptions drives one render step of the assembly engine.
type RenderOptions struct {
	VideoPath    string
	AudioPath    string
	SubtitlePath string
	OutputPath   string
	Params       *VideoParams
}

// AssemblyEngine is the media backend: duration-matched clip composition and
// final overlay/encode.
type AssemblyEngine interface {
	Combine(ctx context.Context, opts CombineOptions) error
	Render(ctx context.Context, opts RenderOptions) error
	PreprocessMaterials(ctx context.Context, materials []MaterialInfo, clipDuration int) ([]MaterialInfo, error)
}

// Orchestrator runs the six-stage pipeline for one task at a time. Stages run
// strictly sequentially; every delegate call blocks. There is no mid-run
// cancellation: the only control point is stopAt, decided before the run.
type Orchestrator struct {
	cfg            *config.Config
	store          state.Store
	engine         AssemblyEngine
	scripts        ScriptGenerator
	terms          TermGenerator
	speech         SpeechSynthesizer
	subtitleWriter SubtitleTimingWriter
	transcriber    AudioTranscriber
	corrector      SubtitleCorrector
	footage        FootageProvider
}

func NewOrchestrator(
	cfg *config.Config,
	store state.Store,
	engine AssemblyEngine,
	scripts ScriptGenerator,
	terms TermGenerator,
	speech SpeechSynthesizer,
	subtitleWriter SubtitleTimingWriter,
	transcriber AudioTranscriber,
	corrector SubtitleCorrector,
	footage FootageProvider,
) *Orchestrator {
	return &Orchestrator{
		cfg:            cfg,
		store:          store,
		engine:         engine,
		scripts:        scripts,
		terms:          terms,
		speech:         speech,
		subtitleWriter: subtitleWriter,
		transcriber:    transcriber,
		corrector:      corrector,
		footage:        footage,
	}
}

// TaskDir returns (and creates) the working directory owned by a task.
func (o *Orchestrator) TaskDir(taskID string) string {
	dir := filepath.Join(o.cfg.TaskDir, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Warnf("create task dir %s: %v", dir, err)
	}
	return dir
}

// Run executes the pipeline for taskID. stopAt names the last stage to run;
// reaching it persists COMPLETE with progress 100 and returns the artifacts
// produced so far. The first unrecoverable stage failure persists FAILED and
// returns the error. Partial artifacts are left on disk either way.
func (o *Orchestrator) Run(ctx context.Context, taskID string, params *VideoParams, stopAt Stage) (*Result, error) {
	if !ValidStage(stopAt) {
		stopAt = StageVideo
	}
	params.Normalize()

	log.Infof("start task %s, stop_at: %s", taskID, stopAt)
	o.update(taskID, StateProcessing, 5, nil)

	res := &Result{}

	// 1. Script
	script, err := o.generateScript(ctx, params)
	if err != nil {
		return nil, o.fail(taskID, err)
	}
	res.Script = script

	o.update(taskID, StateProcessing, 10, nil)

	if stopAt == StageScript {
		o.complete(taskID, map[string]any{"script": script})
		return res, nil
	}

	// 2. Terms (skipped for local footage)
	var terms []string
	if params.VideoSource != "local" {
		terms, err = o.generateTerms(ctx, params, script)
		if err != nil {
			return nil, o.fail(taskID, err)
		}
	}
	res.Terms = terms

	if err := o.saveScriptData(taskID, script, terms, params); err != nil {
		log.Warnf("task %s: save script data: %v", taskID, err)
	}

	if stopAt == StageTerms {
		o.complete(taskID, map[string]any{"terms": terms})
		return res, nil
	}

	o.update(taskID, StateProcessing, 20, nil)

	// 3. Audio
	audioFile, audioDuration, timing, err := o.generateAudio(ctx, taskID, params, script)
	if err != nil {
		return nil, o.fail(taskID, err)
	}
	res.AudioFile = audioFile
	res.AudioDuration = audioDuration

	o.update(taskID, StateProcessing, 30, nil)

	if stopAt == StageAudio {
		o.complete(taskID, map[string]any{"audio_file": audioFile})
		return res, nil
	}

	// 4. Subtitle (never fatal)
	subtitlePath := o.generateSubtitle(ctx, taskID, params, script, timing, audioFile)
	res.SubtitlePath = subtitlePath

	if stopAt == StageSubtitle {
		o.complete(taskID, map[string]any{"subtitle_path": subtitlePath})
		return res, nil
	}

	o.update(taskID, StateProcessing, 40, nil)

	// 5. Materials
	materials, err := o.getVideoMaterials(ctx, taskID, params, terms, audioDuration)
	if err != nil {
		return nil, o.fail(taskID, err)
	}
	res.Materials = materials

	if stopAt == StageMaterials {
		o.complete(taskID, map[string]any{"materials": materials})
		return res, nil
	}

	o.update(taskID, StateProcessing, 50, nil)

	// 6. Final videos
	finalVideos, combinedVideos, err := o.generateFinalVideos(ctx, taskID, params, materials, audioFile, audioDuration, subtitlePath)
	if err != nil {
		return nil, o.fail(taskID, err)
	}
	res.Videos = finalVideos
	res.CombinedVideos = combinedVideos

	log.Infof("task %s finished, generated %d videos", taskID, len(finalVideos))

	o.complete(taskID, map[string]any{
		"videos":          finalVideos,
		"combined_videos": combinedVideos,
		"script":          script,
		"terms":           terms,
		"audio_file":      audioFile,
		"audio_duration":  audioDuration,
		"subtitle_path":   subtitlePath,
		"materials":       materials,
	})
	return res, nil
}

func (o *Orchestrator) update(taskID string, st, progress int, fields map[string]any) {
	if err := o.store.Update(taskID, st, progress, fields); err != nil {
		log.Warnf("task %s: state update: %v", taskID, err)
	}
}

func (o *Orchestrator) complete(taskID string, fields map[string]any) {
	o.update(taskID, StateComplete, 100, fields)
}

func (o *Orchestrator) fail(taskID string, err error) error {
	log.Errorf("task %s failed: %v", taskID, err)

	// Keep the progress reached so far, the record should show where the
	// run died.
	progress := 0
	if rec, gerr := o.store.Get(taskID); gerr == nil {
		if p, ok := rec["progress"].(int); ok {
			progress = p
		}
	}
	o.update(taskID, StateFailed, progress, nil)
	return err
}

func (o *Orchestrator) generateScript(ctx context.Context, params *VideoParams) (string, error) {
	log.Info("generating video script")
	script := strings.TrimSpace(params.Script)
	if script == "" {
		generated, err := o.scripts.GenerateScript(ctx, params.Subject, params.Language, params.ParagraphNumber)
		if err != nil {
			return "", fmt.Errorf("generate script: %w", err)
		}
		script = strings.TrimSpace(generated)
	} else {
		log.Debugf("video script: %s", script)
	}
	if script == "" {
		return "", fmt.Errorf("generate script: empty result")
	}
	return script, nil
}

func (o *Orchestrator) generateTerms(ctx context.Context, params *VideoParams, script string) ([]string, error) {
	log.Info("generating video terms")

	terms, err := ParseTerms(params.Terms)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		terms, err = o.terms.GenerateTerms(ctx, params.Subject, script, 5)
		if err != nil {
			return nil, fmt.Errorf("generate terms: %w", err)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("generate terms: empty result")
	}
	return terms, nil
}

// saveScriptData persists script.json: the script, its search terms, and the
// echoed params.
func (o *Orchestrator) saveScriptData(taskID, script string, terms []string, params *VideoParams) error {
	data, err := json.MarshalIndent(map[string]any{
		"script":       script,
		"search_terms": terms,
		"params":       params,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(o.TaskDir(taskID), "script.json"), data, 0o644)
}

func (o *Orchestrator) generateAudio(ctx context.Context, taskID string, params *VideoParams, script string) (string, int, *TimingMetadata, error) {
	log.Info("generating audio")
	audioFile := filepath.Join(o.TaskDir(taskID), "audio.mp3")

	timing, err := o.speech.Synthesize(ctx, script, params.VoiceName, params.VoiceRate, audioFile)
	if err == nil && timing == nil {
		err = fmt.Errorf("synthesizer returned no timing metadata")
	}
	if err != nil {
		return "", 0, nil, fmt.Errorf(
			"generate audio (check that the voice matches the script language and that the network is reachable): %w", err)
	}

	// Ceiling, never floor: duration matching downstream must not
	// under-allocate clip time relative to the narration.
	audioDuration := int(math.Ceil(timing.Duration()))
	return audioFile, audioDuration, timing, nil
}

func (o *Orchestrator) generateSubtitle(ctx context.Context, taskID string, params *VideoParams, script string, timing *TimingMetadata, audioFile string) string {
	if !params.SubtitleEnabled {
		return ""
	}

	subtitlePath := filepath.Join(o.TaskDir(taskID), "subtitle.srt")
	provider := strings.ToLower(strings.TrimSpace(params.SubtitleProvider))
	if provider == "" {
		provider = strings.ToLower(strings.TrimSpace(o.cfg.SubtitleProvider))
	}
	log.Infof("generating subtitle, provider: %s", provider)

	fallback := false
	if provider == "edge" {
		if err := o.subtitleWriter.WriteSubtitle(timing, script, subtitlePath); err != nil {
			log.Warnf("task %s: subtitle from timing: %v", taskID, err)
		}
		if _, err := os.Stat(subtitlePath); err != nil {
			fallback = true
			log.Warn("subtitle file not found, fallback to whisper")
		}
	}

	if provider == "whisper" || fallback {
		if err := o.transcriber.Transcribe(ctx, audioFile, subtitlePath); err != nil {
			log.Warnf("task %s: transcribe audio: %v", taskID, err)
			return ""
		}
		log.Info("correcting subtitle")
		if err := o.corrector.Correct(subtitlePath, script); err != nil {
			log.Warnf("task %s: correct subtitle: %v", taskID, err)
		}
	}

	cues, err := subtitle.ParseFile(subtitlePath)
	if err != nil || len(cues) == 0 {
		log.Warnf("subtitle file is invalid: %s", subtitlePath)
		return ""
	}
	return subtitlePath
}

func (o *Orchestrator) getVideoMaterials(ctx context.Context, taskID string, params *VideoParams, terms []string, audioDuration int) ([]string, error) {
	if params.VideoSource == "local" {
		log.Info("preprocessing local materials")
		materials, err := o.engine.PreprocessMaterials(ctx, params.Materials, params.ClipDuration)
		if err != nil {
			return nil, fmt.Errorf("preprocess materials: %w", err)
		}
		if len(materials) == 0 {
			return nil, fmt.Errorf("no valid materials found, please check the materials and try again")
		}
		urls := make([]string, 0, len(materials))
		for _, m := range materials {
			urls = append(urls, m.URL)
		}
		return urls, nil
	}

	log.Infof("downloading videos from %s", params.VideoSource)
	downloaded, err := o.footage.Download(ctx, taskID, terms, FootageOptions{
		Source:          params.VideoSource,
		Aspect:          params.Aspect,
		ConcatMode:      params.ConcatMode,
		TotalDuration:   float64(audioDuration * params.VideoCount),
		MaxClipDuration: params.ClipDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("download videos: %w", err)
	}
	if len(downloaded) == 0 {
		return nil, fmt.Errorf("download videos: no materials returned, check the network and the search terms")
	}
	return downloaded, nil
}

func (o *Orchestrator) generateFinalVideos(ctx context.Context, taskID string, params *VideoParams, materials []string, audioFile string, audioDuration int, subtitlePath string) ([]string, []string, error) {
	var finalVideos, combinedVideos []string

	// More than one output from the same material set only makes sense with
	// random concatenation.
	concatMode := params.ConcatMode
	if params.VideoCount > 1 {
		concatMode = ConcatRandom
	}

	progress := 50.0
	for i := 1; i <= params.VideoCount; i++ {
		dir := o.TaskDir(taskID)
		combinedPath := filepath.Join(dir, fmt.Sprintf("combined-%d.mp4", i))

		log.Infof("combining video %d => %s", i, combinedPath)
		err := o.engine.Combine(ctx, CombineOptions{
			OutputPath:      combinedPath,
			VideoPaths:      materials,
			AudioDuration:   float64(audioDuration),
			Aspect:          params.Aspect,
			ConcatMode:      concatMode,
			MaxClipDuration: params.ClipDuration,
			Threads:         params.Threads,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("combine video %d: %w", i, err)
		}

		progress += 50.0 / float64(params.VideoCount) / 2.0
		o.update(taskID, StateProcessing, int(progress), nil)

		finalPath := filepath.Join(dir, fmt.Sprintf("final-%d.mp4", i))
		log.Infof("rendering video %d => %s", i, finalPath)
		err = o.engine.Render(ctx, RenderOptions{
			VideoPath:    combinedPath,
			AudioPath:    audioFile,
			SubtitlePath: subtitlePath,
			OutputPath:   finalPath,
			Params:       params,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("render video %d: %w", i, err)
		}

		progress += 50.0 / float64(params.VideoCount) / 2.0
		o.update(taskID, StateProcessing, int(progress), nil)

		finalVideos = append(finalVideos, finalPath)
		combinedVideos = append(combinedVideos, combinedPath)
	}

	return finalVideos, combinedVideos, nil
}
