package taskgraph

import (
	"context"
	"encoding/json"
	"fmt"
)

// Document is a decoded JSON object owned by the scheduler: a graph or task
// definition, a workflow instance or a task status.
type Document map[string]any

// Query filters workflow instances for workflowsGet.
type Query struct {
	Where map[string]any `json:"where"`
	Skip  int            `json:"skip,omitempty"`
	Limit int            `json:"limit,omitempty"`
}

// Argument objects sent with each call. Structured values travel as JSON text.
type (
	noArgs struct{}

	injectableNameArgs struct {
		InjectableName string `json:"injectableName"`
	}

	definitionArgs struct {
		Definition string `json:"definition"`
	}

	queryArgs struct {
		Query string `json:"query"`
	}

	postArgs struct {
		NodeID        string `json:"nodeId"`
		Configuration string `json:"configuration"`
	}

	graphNameArgs struct {
		GraphName string `json:"graphName"`
	}

	actionArgs struct {
		GraphID string `json:"graphId"`
		Command string `json:"command"`
	}

	graphIDArgs struct {
		GraphID string `json:"graphId"`
	}

	identifierArgs struct {
		Identifier string `json:"identifier"`
	}
)

// Scheduler exposes the scheduler's RPC catalog as typed methods. Every method
// is one Dispatcher.Invoke call.
type Scheduler struct {
	dispatcher *Dispatcher
}

// NewScheduler creates a typed catalog over d.
func NewScheduler(d *Dispatcher) *Scheduler {
	return &Scheduler{dispatcher: d}
}

// Dispatcher returns the underlying dispatcher.
func (s *Scheduler) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// WorkflowsGetGraphs returns all graph definitions.
func (s *Scheduler) WorkflowsGetGraphs(ctx context.Context) ([]Document, error) {
	var out []Document
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsGetGraphs, noArgs{}, &out)
	return out, err
}

// WorkflowsGetGraphsByName returns the graph definitions matching injectableName.
func (s *Scheduler) WorkflowsGetGraphsByName(ctx context.Context, injectableName string) ([]Document, error) {
	var out []Document
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsGetGraphsByName, injectableNameArgs{InjectableName: injectableName}, &out)
	return out, err
}

// WorkflowsPutGraphs stores a graph definition.
func (s *Scheduler) WorkflowsPutGraphs(ctx context.Context, definition any) (Document, error) {
	text, err := encodeText("definition", definition)
	if err != nil {
		return nil, err
	}
	var out Document
	err = s.dispatcher.Invoke(ctx, MethodWorkflowsPutGraphs, definitionArgs{Definition: text}, &out)
	return out, err
}

// WorkflowsDeleteGraphsByName deletes the graph definition named injectableName.
func (s *Scheduler) WorkflowsDeleteGraphsByName(ctx context.Context, injectableName string) (any, error) {
	var out any
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsDeleteGraphsByName, injectableNameArgs{InjectableName: injectableName}, &out)
	return out, err
}

// WorkflowsGet returns the workflow instances matching q.
func (s *Scheduler) WorkflowsGet(ctx context.Context, q Query) ([]Document, error) {
	text, err := encodeText("query", q)
	if err != nil {
		return nil, err
	}
	var out []Document
	err = s.dispatcher.Invoke(ctx, MethodWorkflowsGet, queryArgs{Query: text}, &out)
	return out, err
}

// WorkflowsPost creates and starts a workflow from configuration against nodeID.
func (s *Scheduler) WorkflowsPost(ctx context.Context, configuration any, nodeID string) (Document, error) {
	text, err := encodeText("configuration", configuration)
	if err != nil {
		return nil, err
	}
	var out Document
	err = s.dispatcher.Invoke(ctx, MethodWorkflowsPost, postArgs{NodeID: nodeID, Configuration: text}, &out)
	return out, err
}

// WorkflowsGetByInstanceID returns the instances recorded under graphName.
func (s *Scheduler) WorkflowsGetByInstanceID(ctx context.Context, graphName string) ([]Document, error) {
	var out []Document
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsGetByInstanceID, graphNameArgs{GraphName: graphName}, &out)
	return out, err
}

// WorkflowsAction sends a lifecycle command such as "cancel" to a workflow.
func (s *Scheduler) WorkflowsAction(ctx context.Context, graphID, command string) (any, error) {
	var out any
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsAction, actionArgs{GraphID: graphID, Command: command}, &out)
	return out, err
}

// WorkflowsDeleteByInstanceID deletes a workflow instance.
func (s *Scheduler) WorkflowsDeleteByInstanceID(ctx context.Context, graphID string) (any, error) {
	var out any
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsDeleteByInstanceID, graphIDArgs{GraphID: graphID}, &out)
	return out, err
}

// WorkflowsPutTask stores a task definition.
func (s *Scheduler) WorkflowsPutTask(ctx context.Context, definition any) (Document, error) {
	text, err := encodeText("definition", definition)
	if err != nil {
		return nil, err
	}
	var out Document
	err = s.dispatcher.Invoke(ctx, MethodWorkflowsPutTask, definitionArgs{Definition: text}, &out)
	return out, err
}

// WorkflowsGetAllTasks returns all task definitions.
func (s *Scheduler) WorkflowsGetAllTasks(ctx context.Context) ([]Document, error) {
	var out []Document
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsGetAllTasks, noArgs{}, &out)
	return out, err
}

// WorkflowsGetTasksByName returns the task definitions named injectableName.
func (s *Scheduler) WorkflowsGetTasksByName(ctx context.Context, injectableName string) ([]Document, error) {
	var out []Document
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsGetTasksByName, injectableNameArgs{InjectableName: injectableName}, &out)
	return out, err
}

// WorkflowsDeleteTasksByName deletes the task definition named injectableName.
func (s *Scheduler) WorkflowsDeleteTasksByName(ctx context.Context, injectableName string) (any, error) {
	var out any
	err := s.dispatcher.Invoke(ctx, MethodWorkflowsDeleteTasksByName, injectableNameArgs{InjectableName: injectableName}, &out)
	return out, err
}

// GetTasksByID returns the status of a task instance.
func (s *Scheduler) GetTasksByID(ctx context.Context, identifier string) (Document, error) {
	var out Document
	err := s.dispatcher.Invoke(ctx, MethodGetTasksByID, identifierArgs{Identifier: identifier}, &out)
	return out, err
}

func encodeText(field string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", field, err)
	}
	return string(b), nil
}
