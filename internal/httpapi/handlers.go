package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iabetor/soundmirror/internal/command"
	"github.com/iabetor/soundmirror/internal/history"
	"github.com/iabetor/soundmirror/internal/lang"
	"github.com/iabetor/soundmirror/internal/logger"
	"github.com/iabetor/soundmirror/internal/speech"
)

// maxBodyBytes 限制请求体大小，正常的 speak 请求远小于它。
const maxBodyBytes = 1 << 20

// Handler 实现各个 HTTP 接口。
type Handler struct {
	commands Commands
	history  HistoryLister
}

// NewHandler 创建 Handler，history 可以为 nil。
func NewHandler(commands Commands, history HistoryLister) *Handler {
	return &Handler{commands: commands, history: history}
}

// Health 处理 GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Speak 处理 POST /v1/speak，请求体为 SpeechRequest。
func (h *Handler) Speak(w http.ResponseWriter, r *http.Request) {
	var req speech.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := h.commands.SpeakText(r.Context(), req)
	if err != nil {
		respondCommandError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// Voices 处理 GET /v1/voices?lang=
func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.commands.GetVoices(r.Context(), r.URL.Query().Get("lang")))
}

// Time 处理 GET /v1/time
func (h *Handler) Time(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]uint64{"time_ms": h.commands.GetPreciseTime()})
}

// Languages 处理 GET /v1/languages
func (h *Handler) Languages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, lang.Supported())
}

// History 处理 GET /v1/history?limit=
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	if h.history == nil {
		respondJSON(w, http.StatusOK, []history.Entry{})
		return
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		logger.Errorf("[http] 查询历史失败: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Invoke 处理 POST /invoke/{command}，请求体是命令参数对象。
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	out, err := h.commands.Invoke(r.Context(), chi.URLParam(r, "command"), args)
	if err != nil {
		respondCommandError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// respondCommandError 把命令层错误映射为状态码。
func respondCommandError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, command.ErrBadArguments),
		errors.Is(err, speech.ErrInvalidRate),
		errors.Is(err, speech.ErrTextTooLong):
		respondError(w, http.StatusBadRequest, err.Error())
	case r.Context().Err() != nil:
		// 客户端已断开，不需要响应
		logger.Debugf("[http] 客户端取消请求: %s", r.URL.Path)
	default:
		logger.Errorf("[http] 命令执行失败: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
