package http

import (
	"net/http"
	"time"
)

// The admin endpoints mutate per-user configuration. They take small JSON
// bodies keyed the same way the dashboard presents the data.

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Name     string `json:"nome_categoria"`
		Keywords string `json:"palavras_chave"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.AddCategory(r.Context(), req.UserID, req.Name, req.Keywords); err != nil {
		s.logger.ErrorContext(r.Context(), "Add category failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to add category", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Categoria adicionada"))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"nome_categoria"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteCategory(r.Context(), req.UserID, req.Name); err != nil {
		s.logger.ErrorContext(r.Context(), "Delete category failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to delete category", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Categoria apagada"))
}

func (s *Server) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"nome_conta"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.AddAccount(r.Context(), req.UserID, req.Name); err != nil {
		s.logger.ErrorContext(r.Context(), "Add account failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to add account", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Conta adicionada"))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"nome_conta"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Name == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteAccount(r.Context(), req.UserID, req.Name); err != nil {
		s.logger.ErrorContext(r.Context(), "Delete account failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to delete account", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Conta apagada"))
}

func (s *Server) handleAddGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string  `json:"user_id"`
		Category string  `json:"categoria"`
		Amount   float64 `json:"valor"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Category == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.SaveGoal(r.Context(), req.UserID, req.Category, req.Amount); err != nil {
		s.logger.ErrorContext(r.Context(), "Save goal failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to save goal", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Meta adicionada"))
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Category string `json:"categoria"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Category == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteGoal(r.Context(), req.UserID, req.Category); err != nil {
		s.logger.ErrorContext(r.Context(), "Delete goal failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to delete goal", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Meta apagada"))
}

func (s *Server) handleSaveCardRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string         `json:"user_id"`
		Rules  map[string]int `json:"regras"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || len(req.Rules) == 0 {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	for card, day := range req.Rules {
		if day < 1 || day > 31 {
			s.logger.WarnContext(r.Context(), "Rejected card rule", "card", card, "closing_day", day)
			http.Error(w, "closing day must be between 1 and 31", http.StatusUnprocessableEntity)
			return
		}
	}
	if err := s.store.SaveCardRules(r.Context(), req.UserID, req.Rules); err != nil {
		s.logger.ErrorContext(r.Context(), "Save card rules failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to save card rules", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Regras salvas"))
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string    `json:"user_id"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := decodeBody(r, &req); err != nil || req.UserID == "" || req.Timestamp.IsZero() {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.store.DeleteReminder(r.Context(), req.UserID, req.Timestamp); err != nil {
		s.logger.ErrorContext(r.Context(), "Delete reminder failed", "error", err, "user_id", req.UserID)
		http.Error(w, "failed to delete reminder", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Lembrete apagado"))
}
