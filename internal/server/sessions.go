package server

import (
	"net/http"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/parser"
)

func (s *Server) handleListSessions(
	w http.ResponseWriter, r *http.Request,
) {
	req, ok := parseRequest(w, r)
	if !ok {
		return
	}
	res, err := analytics.Query(r.Context(), s.src, req, s.opts)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type messagesResponse struct {
	TenantID  string           `json:"tenant_id"`
	PersonaID string           `json:"persona_id"`
	Messages  []parser.Message `json:"messages"`
}

func (s *Server) handleGetMessages(
	w http.ResponseWriter, r *http.Request,
) {
	tenant := r.PathValue("tenant")
	persona := r.PathValue("persona")
	msgs, err := analytics.Conversation(r.Context(), s.src, tenant, persona)
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		TenantID:  tenant,
		PersonaID: persona,
		Messages:  msgs,
	})
}

type personasResponse struct {
	Personas []parser.PersonaRecord `json:"personas"`
}

func (s *Server) handleListPersonas(
	w http.ResponseWriter, r *http.Request,
) {
	catalog, err := analytics.LoadCatalog(r.Context(), s.src, s.now())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, personasResponse{Personas: catalog.List()})
}
