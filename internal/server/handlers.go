package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"artyats/internal/chat"
	appErrors "artyats/internal/errors"
	"artyats/internal/types"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// CreateSessionRequest starts a chat about one resume and job description.
type CreateSessionRequest struct {
	ResumeText         string `json:"resumeText"`
	JobDescriptionText string `json:"jobDescriptionText"`
}

// SessionResponse describes a chat session.
type SessionResponse struct {
	SessionID string           `json:"sessionId"`
	CreatedAt time.Time        `json:"createdAt"`
	Awaiting  bool             `json:"awaiting"`
	History   []types.ChatTurn `json:"history"`
}

// AskRequest is a follow-up question.
type AskRequest struct {
	Question string `json:"question"`
}

// ExtractResponse is the text pulled from an uploaded document.
type ExtractResponse struct {
	Text       string `json:"text"`
	Format     string `json:"format"`
	Pages      int    `json:"pages,omitempty"`
	Characters int    `json:"characters"`
}

const multipartMemory = 8 << 20

func (s *Server) startSpan(r *http.Request, name string) (context.Context, trace.Span) {
	return s.telemetry.Tracer("artyats.api").Start(r.Context(), "api."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", string(appErrors.KindOf(err))))
	}
	span.End()
}

func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "analyze")
	var err error
	defer func() { endSpan(span, err) }()

	var req types.AnalysisRequest
	if err = parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	span.SetAttributes(
		attribute.Int("request.resume_length", len(req.ResumeText)),
		attribute.Int("request.job_length", len(req.JobDescriptionText)),
		attribute.String("request.employment_status", string(req.EmploymentStatus)),
	)

	result, err := s.orchestrator.RunAnalysis(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	span.SetAttributes(
		attribute.Float64("ats.real_score", result.Scores.ATSRealScore),
		attribute.Bool("ats.score_consistent", result.ScoreConsistent),
	)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) feedbackHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "feedback")
	var err error
	defer func() { endSpan(span, err) }()

	var req types.FeedbackRequest
	if err = parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.orchestrator.GenerateFeedback(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) reviseHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "revise")
	var err error
	defer func() { endSpan(span, err) }()

	var req types.RevisionRequest
	if err = parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.orchestrator.ReviseSummary(ctx, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "extract")
	var err error
	defer func() { endSpan(span, err) }()

	if err = r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeError(w, r, multipartError(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		err = appErrors.NewValidationError(appErrors.ErrCodeInvalidRequest, "multipart field \"file\" is required", err)
		s.writeError(w, r, err)
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			s.Logger.Warn("Failed to close upload", "error", cerr.Error())
		}
	}()

	data, err := io.ReadAll(file)
	if err != nil {
		err = appErrors.NewIOError(appErrors.ErrCodeFileNotReadable, "failed to read upload", err)
		s.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("upload.name", header.Filename), attribute.Int("upload.bytes", len(data)))

	res, err := s.extractor.Extract(ctx, header.Filename, data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ExtractResponse{
		Text:       res.Text,
		Format:     string(res.Format),
		Pages:      res.Pages,
		Characters: res.Characters,
	})
}

func multipartError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return appErrors.NewValidationError(appErrors.ErrCodeRequestTooLarge, "upload exceeds the request size limit", err)
	}
	return appErrors.NewValidationError(appErrors.ErrCodeInvalidRequest, "request must be multipart/form-data", err)
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.sessions.Create(req.ResumeText, req.JobDescriptionText)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse(session))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(session))
}

func (s *Server) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.startSpan(r, "chat")
	var err error
	defer func() { endSpan(span, err) }()

	session, err := s.sessions.Get(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	span.SetAttributes(attribute.String("chat.session_id", session.ID()))

	var req AskRequest
	if err = parseJSONRequest(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	turn, err := session.AskFollowUp(ctx, req.Question)
	s.metrics.RecordChatMessage(ctx, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, turn)
}

func sessionResponse(s *chat.Session) SessionResponse {
	return SessionResponse{
		SessionID: s.ID(),
		CreatedAt: s.CreatedAt(),
		Awaiting:  s.Awaiting(),
		History:   s.History(),
	}
}
