package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/session"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

const (
	maxBodyBytes = 1 << 20
	xlsxMIME     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var errBadRequest = errors.New("bad request")

// Overview is the section-level view of a result.
type Overview struct {
	AssessmentID string                `json:"assessmentId"`
	Score        float64               `json:"score"`
	MaxScore     float64               `json:"maxScore"`
	Percentage   int                   `json:"percentage"`
	Level        report.MaturityLevel  `json:"level"`
	Sections     []report.SectionScore `json:"sections"`
}

// Detailed is the question-level view of a result.
type Detailed struct {
	AssessmentID string                 `json:"assessmentId"`
	Questions    []report.QuestionScore `json:"questions"`
}

func (s *server) handleOpen(w http.ResponseWriter, r *http.Request) {
	view, err := s.engine.Open(r.Context(), chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *server) handleSave(w http.ResponseWriter, r *http.Request) {
	responses, err := decodeResponses(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := s.engine.Save(r.Context(), chi.URLParam(r, "invite"), responses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	responses, err := decodeResponses(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Submit(r.Context(), chi.URLParam(r, "invite"), responses)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleOverview(w http.ResponseWriter, r *http.Request) {
	levels, err := parseLevels(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Results(r.Context(), chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, err)
		return
	}

	sections := report.FilterByLevels(result.Sections, levels)
	sections = report.FilterByName(sections, r.URL.Query().Get("q"))

	writeJSON(w, http.StatusOK, Overview{
		AssessmentID: result.AssessmentID,
		Score:        result.Score,
		MaxScore:     result.MaxScore,
		Percentage:   result.Percentage,
		Level:        result.Level,
		Sections:     sections,
	})
}

func (s *server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	levels, err := parseLevels(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := s.engine.Results(r.Context(), chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, err)
		return
	}

	questions := report.FilterByLevels(result.Questions, levels)
	questions = report.FilterByName(questions, r.URL.Query().Get("q"))

	writeJSON(w, http.StatusOK, Detailed{AssessmentID: result.AssessmentID, Questions: questions})
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Results(r.Context(), chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, *result); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxMIME)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-results.xlsx"`, result.AssessmentID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, err := s.engine.SessionID(r.Context(), chi.URLParam(r, "invite"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.ServeWebSocket(w, r, sessionID, s.origins)
}

func decodeResponses(w http.ResponseWriter, r *http.Request) ([]survey.Response, error) {
	var responses []survey.Response
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&responses); err != nil {
		return nil, fmt.Errorf("%w: decoding responses: %v", errBadRequest, err)
	}
	for _, resp := range responses {
		if resp.QuestionID == "" {
			return nil, fmt.Errorf("%w: response without questionId", errBadRequest)
		}
	}
	return responses, nil
}

// parseLevels accepts comma-separated and repeated levels parameters.
func parseLevels(r *http.Request) ([]report.MaturityLevel, error) {
	var levels []report.MaturityLevel
	for _, raw := range r.URL.Query()["levels"] {
		for part := range strings.SplitSeq(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			l, ok := report.ParseLevel(part)
			if !ok {
				return nil, fmt.Errorf("%w: unknown level %q", errBadRequest, part)
			}
			levels = append(levels, l)
		}
	}
	return levels, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownAssess):
		return http.StatusNotFound
	case errors.Is(err, session.ErrAlreadySubmitted), errors.Is(err, session.ErrNotSubmitted):
		return http.StatusConflict
	case errors.Is(err, session.ErrIncomplete),
		errors.Is(err, session.ErrUnknownQuestion),
		errors.Is(err, survey.ErrUnknownOption),
		errors.Is(err, survey.ErrTooManyOptions),
		errors.Is(err, survey.ErrDuplicateOption):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encoding response failed", "error", err)
	}
}
