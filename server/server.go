package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/trialstack/icfgen/internal/models"
	"github.com/trialstack/icfgen/internal/types"
	"github.com/trialstack/icfgen/pkg/generator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// GenerationService is the facade the server streams events from.
type GenerationService interface {
	GenerateFull(ctx context.Context, collection string, metadata map[string]interface{}) <-chan generator.Event
	RegenerateSection(ctx context.Context, collection, section string, metadata map[string]interface{}) (<-chan generator.Event, error)
}

// Ingestor indexes uploaded protocol text.
type Ingestor interface {
	IngestProtocol(ctx context.Context, studyAcronym, protocolTitle, filename, text string) (string, int, error)
}

// ProtocolStore covers the protocol registry operations the API exposes.
type ProtocolStore interface {
	ListProtocols(ctx context.Context) ([]models.Protocol, error)
	DeleteCollection(ctx context.Context, collection string) error
}

type Server struct {
	addr      string
	icf       GenerationService
	ingestor  Ingestor
	protocols ProtocolStore
}

func New(addr string, icf GenerationService, ingestor Ingestor, protocols ProtocolStore) *Server {
	return &Server{
		addr:      addr,
		icf:       icf,
		ingestor:  ingestor,
		protocols: protocols,
	}
}

// Handler builds the route table. Exposed separately so tests can drive the
// server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/icf/generate-stream", s.handleGenerateStream)
	mux.HandleFunc("POST /api/icf/regenerate-section", s.handleRegenerateSection)
	mux.HandleFunc("GET /api/icf/sections", s.handleListSections)
	mux.HandleFunc("GET /api/icf/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/protocols", s.handleUploadProtocol)
	mux.HandleFunc("GET /api/protocols", s.handleListProtocols)
	mux.HandleFunc("DELETE /api/protocols/{collection}", s.handleDeleteProtocol)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}

func (s *Server) Run() error {
	log.Info().Str("addr", s.addr).Msg("starting ICF generation server")
	return http.ListenAndServe(s.addr, s.Handler())
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := req.Validate(); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, types.NewValidationError(errs))
		return
	}

	events := s.icf.GenerateFull(r.Context(), req.Collection, req.Metadata)
	streamSSE(w, events)
}

func (s *Server) handleRegenerateSection(w http.ResponseWriter, r *http.Request) {
	var req types.RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := req.Validate(); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, types.NewValidationError(errs))
		return
	}

	events, err := s.icf.RegenerateSection(r.Context(), req.Collection, req.SectionName, req.Metadata)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	streamSSE(w, events)
}

func (s *Server) handleListSections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sections": generator.SectionNames(),
	})
}

// handleWebSocket mirrors the SSE stream over a websocket for clients that
// prefer a bidirectional transport. The client sends one request message;
// the server replies with the event envelopes and closes.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var req types.RegenerateRequest
	if err := conn.ReadJSON(&req); err != nil {
		conn.WriteJSON(generator.Envelop(generator.FatalError{Err: "invalid request message"}))
		return
	}
	if req.Collection == "" {
		conn.WriteJSON(generator.Envelop(generator.FatalError{Err: "protocol_collection_name is required"}))
		return
	}

	var events <-chan generator.Event
	if req.SectionName == "" {
		events = s.icf.GenerateFull(r.Context(), req.Collection, req.Metadata)
	} else {
		events, err = s.icf.RegenerateSection(r.Context(), req.Collection, req.SectionName, req.Metadata)
		if err != nil {
			conn.WriteJSON(generator.Envelop(generator.FatalError{Err: err.Error()}))
			return
		}
	}

	for ev := range events {
		if err := conn.WriteJSON(generator.Envelop(ev)); err != nil {
			log.Warn().Err(err).Msg("websocket write failed, dropping client")
			return
		}
	}
}

func (s *Server) handleUploadProtocol(w http.ResponseWriter, r *http.Request) {
	var req types.UploadProtocolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if errs := req.Validate(); errs != nil {
		writeJSON(w, http.StatusUnprocessableEntity, types.NewValidationError(errs))
		return
	}

	collection, chunks, err := s.ingestor.IngestProtocol(r.Context(), req.StudyAcronym, req.ProtocolTitle, req.Filename, req.Text)
	if err != nil {
		log.Error().Err(err).Str("acronym", req.StudyAcronym).Msg("protocol ingestion failed")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to ingest protocol: %v", err))
		return
	}

	writeJSON(w, http.StatusCreated, types.UploadProtocolResponse{
		Collection: collection,
		ChunkCount: chunks,
		Status:     "ready",
	})
}

func (s *Server) handleListProtocols(w http.ResponseWriter, r *http.Request) {
	protocols, err := s.protocols.ListProtocols(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list protocols")
		return
	}
	if protocols == nil {
		protocols = []models.Protocol{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"protocols": protocols})
}

func (s *Server) handleDeleteProtocol(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	if err := s.protocols.DeleteCollection(r.Context(), collection); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// streamSSE drains a generation event stream into the response as
// server-sent events, flushing per event so tokens reach the client live.
func streamSSE(w http.ResponseWriter, events <-chan generator.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		frame, err := generator.EncodeSSE(ev)
		if err != nil {
			log.Error().Err(err).Msg("failed to encode event")
			continue
		}
		if _, err := w.Write(frame); err != nil {
			// Client went away; the coordinator reaps its goroutines via
			// the request context.
			return
		}
		flusher.Flush()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
