package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/serisow/reelforge/video"
)

// VideoHandler exposes the render pipeline over HTTP. It owns the uploads
// directory: files saved from multipart requests are removed once the render
// finishes, regardless of outcome.
type VideoHandler struct {
	logger         *slog.Logger
	pipeline       *video.Pipeline
	uploadsDir     string
	outputDir      string
	maxUploadBytes int64
}

func NewVideoHandler(logger *slog.Logger, pipeline *video.Pipeline, uploadsDir, outputDir string, maxUploadBytes int64) *VideoHandler {
	return &VideoHandler{
		logger:         logger,
		pipeline:       pipeline,
		uploadsDir:     uploadsDir,
		outputDir:      outputDir,
		maxUploadBytes: maxUploadBytes,
	}
}

type renderResponse struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
	Stage  string `json:"stage,omitempty"`
}

// CreateVideo handles POST /create-video/{style}: a multipart form carrying
// optional file parts (image, video, audio) plus the text and timeline fields.
func (h *VideoHandler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	style := mux.Vars(r)["style"]
	sessionID := uuid.New().String()

	logger := h.logger.With(
		slog.String("sessionId", sessionID),
		slog.String("style", style))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		logger.Warn("Rejected multipart form", slog.String("error", err.Error()))
		writeError(w, http.StatusRequestEntityTooLarge, "upload too large or malformed", "")
		return
	}
	defer r.MultipartForm.RemoveAll()

	job, uploaded, err := h.jobFromForm(r, sessionID, style)
	defer h.removeUploads(logger, uploaded)
	if err != nil {
		h.writeRenderError(w, logger, err)
		return
	}

	outPath, err := h.pipeline.Render(r.Context(), job)
	if err != nil {
		h.writeRenderError(w, logger, err)
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		Status: "success",
		URL:    "/video/" + filepath.Base(outPath),
	})
}

// jobFromForm assembles the render job from the multipart form, saving any
// file parts into the uploads directory. Returned paths are the handler's to
// delete once the render is over.
func (h *VideoHandler) jobFromForm(r *http.Request, sessionID, style string) (video.RenderJob, []string, error) {
	var uploaded []string

	job := video.RenderJob{
		SessionID: sessionID,
		Style:     style,
		Text: video.TextConfig{
			Quote:     r.FormValue("quote"),
			Author:    r.FormValue("author"),
			Watermark: r.FormValue("watermark"),
		},
		Audio: video.AudioSpec{
			URL:       strings.TrimSpace(r.FormValue("audioUrl")),
			SocialURL: strings.TrimSpace(r.FormValue("socialUrl")),
		},
		Overlay: parseBoolField(r.FormValue("overlay")),
	}

	if raw := r.FormValue("duration"); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d < 0 {
			return job, uploaded, &video.ValidationError{Field: "duration", Msg: "must be a non-negative number of seconds"}
		}
		job.MaxDuration = d
	}

	for _, part := range []struct {
		field string
		kind  video.MediaKind
	}{
		{"image", video.KindImage},
		{"video", video.KindVideo},
		{"audio", video.KindAudio},
	} {
		path, err := h.saveUpload(r, part.field, sessionID)
		if err != nil {
			return job, uploaded, err
		}
		if path == "" {
			continue
		}
		uploaded = append(uploaded, path)

		switch part.kind {
		case video.KindAudio:
			job.Audio.Path = path
		default:
			job.Media = &video.ClipSource{Kind: part.kind, Ref: path}
		}
	}

	// URL fields only fill slots an uploaded file has not already claimed.
	if job.Media == nil {
		if u := strings.TrimSpace(r.FormValue("imageUrl")); u != "" {
			job.Media = &video.ClipSource{Kind: video.KindImage, Ref: u}
		} else if u := strings.TrimSpace(r.FormValue("videoUrl")); u != "" {
			job.Media = &video.ClipSource{Kind: video.KindVideo, Ref: u}
		}
	}

	if raw := r.FormValue("clips"); raw != "" {
		clips, err := video.ParseClips(raw)
		if err != nil {
			return job, uploaded, err
		}
		job.Clips = clips
	}
	if raw := r.FormValue("captions"); raw != "" {
		captions, err := video.ParseCaptions(raw)
		if err != nil {
			return job, uploaded, err
		}
		job.Captions = captions
	}

	return job, uploaded, nil
}

// saveUpload copies one named file part into the uploads directory, keeping
// the original extension and prefixing the session id. Returns "" when the
// part is absent.
func (h *VideoHandler) saveUpload(r *http.Request, field, sessionID string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", &video.ValidationError{Field: field, Msg: "could not read uploaded file"}
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	dest := filepath.Join(h.uploadsDir, fmt.Sprintf("%s-%s%s", sessionID, field, ext))

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return dest, nil
}

func (h *VideoHandler) removeUploads(logger *slog.Logger, paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to remove uploaded file",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}

type masterRequest struct {
	Endpoint string     `json:"endpoint"`
	Data     masterData `json:"data"`
}

type masterData struct {
	Quote     string          `json:"quote"`
	Author    string          `json:"author"`
	Watermark string          `json:"watermark"`
	ImageURL  string          `json:"imageUrl"`
	VideoURL  string          `json:"videoUrl"`
	AudioURL  string          `json:"audioUrl"`
	SocialURL string          `json:"socialUrl"`
	Clips     json.RawMessage `json:"clips"`
	Captions  json.RawMessage `json:"captions"`
	Overlay   bool            `json:"overlay"`
	Duration  float64         `json:"duration"`
}

// Master handles POST /master: a JSON envelope naming the target style and
// carrying URL-only source references. The response contract is fixed at
// {status, url} on success and {status, error} on failure.
func (h *VideoHandler) Master(w http.ResponseWriter, r *http.Request) {
	sessionID := uuid.New().String()

	var req masterRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, renderResponse{Status: "error", Error: "invalid JSON body"})
		return
	}
	if req.Endpoint == "" {
		writeJSON(w, http.StatusBadRequest, renderResponse{Status: "error", Error: "endpoint is required"})
		return
	}

	logger := h.logger.With(
		slog.String("sessionId", sessionID),
		slog.String("endpoint", req.Endpoint))

	job, err := jobFromMaster(sessionID, req)
	if err != nil {
		logger.Warn("Rejected master request", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, renderResponse{Status: "error", Error: err.Error()})
		return
	}

	outPath, err := h.pipeline.Render(r.Context(), job)
	if err != nil {
		status, msg, _ := classifyError(err)
		writeJSON(w, status, renderResponse{Status: "error", Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		Status: "success",
		URL:    "/video/" + filepath.Base(outPath),
	})
}

func jobFromMaster(sessionID string, req masterRequest) (video.RenderJob, error) {
	data := req.Data
	job := video.RenderJob{
		SessionID: sessionID,
		Style:     strings.TrimPrefix(req.Endpoint, "/"),
		Text: video.TextConfig{
			Quote:     data.Quote,
			Author:    data.Author,
			Watermark: data.Watermark,
		},
		Audio: video.AudioSpec{
			URL:       strings.TrimSpace(data.AudioURL),
			SocialURL: strings.TrimSpace(data.SocialURL),
		},
		Overlay:     data.Overlay,
		MaxDuration: data.Duration,
	}

	if u := strings.TrimSpace(data.ImageURL); u != "" {
		job.Media = &video.ClipSource{Kind: video.KindImage, Ref: u}
	} else if u := strings.TrimSpace(data.VideoURL); u != "" {
		job.Media = &video.ClipSource{Kind: video.KindVideo, Ref: u}
	}

	if len(data.Clips) > 0 {
		clips, err := video.ParseClips(string(data.Clips))
		if err != nil {
			return job, err
		}
		job.Clips = clips
	}
	if len(data.Captions) > 0 {
		captions, err := video.ParseCaptions(string(data.Captions))
		if err != nil {
			return job, err
		}
		job.Captions = captions
	}

	return job, nil
}

// ServeVideo handles GET /video/{filename} for finished renders. The filename
// is reduced to its base component so the output directory cannot be escaped.
func (h *VideoHandler) ServeVideo(w http.ResponseWriter, r *http.Request) {
	filename := filepath.Base(mux.Vars(r)["filename"])
	if filename == "." || filename == "/" {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.outputDir, filename)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// Health handles GET /health.
func (h *VideoHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeRenderError maps the error taxonomy onto HTTP statuses. Clients see
// the message and the failing stage label, never process output or traces.
func (h *VideoHandler) writeRenderError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status, msg, stage := classifyError(err)
	logger.Error("Request failed",
		slog.Int("status", status),
		slog.String("error", err.Error()))
	writeError(w, status, msg, stage)
}

func classifyError(err error) (status int, msg, stage string) {
	var validationErr *video.ValidationError
	var notFoundErr *video.SourceNotFoundError
	var exhaustedErr *video.ExtractionExhaustedError
	var stageErr *video.StageError
	var fsErr *video.FilesystemError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error(), ""
	case errors.As(err, &notFoundErr):
		return http.StatusUnprocessableEntity, notFoundErr.Error(), ""
	case errors.As(err, &exhaustedErr):
		return http.StatusUnprocessableEntity, "could not extract audio from the provided URL", ""
	case errors.As(err, &stageErr):
		return http.StatusInternalServerError, "video generation failed", stageErr.Stage
	case errors.As(err, &fsErr):
		return http.StatusInternalServerError, "video generation failed", fsErr.Stage
	default:
		return http.StatusInternalServerError, "video generation failed", ""
	}
}

func parseBoolField(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func writeError(w http.ResponseWriter, status int, msg, stage string) {
	writeJSON(w, status, renderResponse{Status: "error", Error: msg, Stage: stage})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
