package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zyoung51/on-http/internal/taskgraph"
	"github.com/zyoung51/on-http/internal/workflow"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	page := workflow.Page{
		Skip:  parseIntQuery(r, "skip", 0),
		Limit: parseIntQuery(r, "limit", 0),
	}
	where := map[string]any{}
	if r.URL.Query().Get("active") == "true" {
		where["_status"] = s.workflows.ActiveStates()
	}

	workflows, err := s.workflows.GetAllWorkflows(r.Context(), where, page)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documents(workflows))
}

func (s *Server) handleRunWorkflow(w http.ResponseWriter, r *http.Request) {
	s.runWorkflow(w, r, r.URL.Query().Get("nodeId"))
}

func (s *Server) handleRunNodeWorkflow(w http.ResponseWriter, r *http.Request) {
	s.runWorkflow(w, r, chi.URLParam(r, "identifier"))
}

// runWorkflow starts the graph described by the request body. A graph name
// given as the "name" query parameter is used when the body has none.
func (s *Server) runWorkflow(w http.ResponseWriter, r *http.Request, nodeID string) {
	config, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, ok := config["name"]; !ok {
		if name := r.URL.Query().Get("name"); name != "" {
			config["name"] = name
		}
	}

	graph, err := s.workflows.CreateAndRunGraph(r.Context(), config, nodeID)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, graph)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	graph, err := s.workflows.GetWorkflowByInstanceID(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleWorkflowAction(w http.ResponseWriter, r *http.Request) {
	body, err := decodeObject(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if command, _ := body["command"].(string); command != workflow.CommandCancel {
		s.writeError(w, http.StatusBadRequest, "unsupported workflow command")
		return
	}

	result, err := s.workflows.CancelTaskGraph(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	result, err := s.workflows.DeleteTaskGraph(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// pagingParams are query parameters that never become workflow filters.
var pagingParams = map[string]bool{"skip": true, "limit": true}

// handleListNodeWorkflows lists the workflows of a node. Every query
// parameter other than skip and limit is passed to the scheduler as a string
// equality filter, using its first value.
func (s *Server) handleListNodeWorkflows(w http.ResponseWriter, r *http.Request) {
	filter := map[string]any{}
	for key, values := range r.URL.Query() {
		if pagingParams[key] || len(values) == 0 {
			continue
		}
		filter[key] = values[0]
	}

	workflows, err := s.workflows.GetWorkflowsByNodeID(r.Context(), chi.URLParam(r, "identifier"), filter)
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documents(workflows))
}

func (s *Server) handleListActiveNodeWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := s.workflows.FindActiveGraphForTarget(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, documents(workflows))
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.workflows.GetTaskByID(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		s.writeWorkflowError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

// documents keeps empty results encoded as [] rather than null.
func documents(docs []taskgraph.Document) []taskgraph.Document {
	if docs == nil {
		return []taskgraph.Document{}
	}
	return docs
}
