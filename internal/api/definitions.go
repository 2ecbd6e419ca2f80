package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	graphs, err := s.workflows.GetGraphDefinitions(r.Context(), "")
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documents(graphs))
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "injectableName")
	graphs, err := s.workflows.GetGraphDefinitions(r.Context(), name)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	if len(graphs) == 0 {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("graph definition not found for %s", name))
		return
	}
	s.writeJSON(w, http.StatusOK, graphs)
}

func (s *Server) handlePutGraph(w http.ResponseWriter, r *http.Request) {
	definition, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	graph, err := s.workflows.DefineTaskGraph(r.Context(), definition)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	result, err := s.workflows.DestroyGraphDefinition(r.Context(), chi.URLParam(r, "injectableName"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTaskDefinitions(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.workflows.GetTaskDefinitions(r.Context())
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documents(tasks))
}

func (s *Server) handleGetTaskDefinition(w http.ResponseWriter, r *http.Request) {
	task, err := s.workflows.GetTaskDefinitionByName(r.Context(), chi.URLParam(r, "injectableName"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handlePutTaskDefinition(w http.ResponseWriter, r *http.Request) {
	definition, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.workflows.DefineTask(r.Context(), definition)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTaskDefinition(w http.ResponseWriter, r *http.Request) {
	result, err := s.workflows.DeleteTaskDefinitionByName(r.Context(), chi.URLParam(r, "injectableName"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
