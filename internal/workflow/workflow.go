// Package workflow is the operation facade the HTTP layer calls for graph,
// task and workflow lifecycle. It validates what the scheduler cannot check
// before the network hop, turns empty lookups into ErrNotFound and otherwise
// passes calls straight through to the scheduler's RPC catalog.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/zyoung51/on-http/internal/taskgraph"
)

var (
	// ErrValidation is returned when a local precondition fails. No remote
	// call is made.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a lookup by id or name yields nothing.
	ErrNotFound = errors.New("not found")
)

// CommandCancel is the lifecycle command that cancels a running workflow.
const CommandCancel = "cancel"

// DefaultActiveStates are the workflow statuses treated as active when no
// other set is configured.
var DefaultActiveStates = []string{"pending", "running"}

// Catalog is the subset of the scheduler's RPC catalog the facade uses.
// *taskgraph.Scheduler implements it.
type Catalog interface {
	WorkflowsGetGraphs(ctx context.Context) ([]taskgraph.Document, error)
	WorkflowsGetGraphsByName(ctx context.Context, injectableName string) ([]taskgraph.Document, error)
	WorkflowsPutGraphs(ctx context.Context, definition any) (taskgraph.Document, error)
	WorkflowsDeleteGraphsByName(ctx context.Context, injectableName string) (any, error)
	WorkflowsGet(ctx context.Context, q taskgraph.Query) ([]taskgraph.Document, error)
	WorkflowsPost(ctx context.Context, configuration any, nodeID string) (taskgraph.Document, error)
	WorkflowsGetByInstanceID(ctx context.Context, graphName string) ([]taskgraph.Document, error)
	WorkflowsAction(ctx context.Context, graphID, command string) (any, error)
	WorkflowsDeleteByInstanceID(ctx context.Context, graphID string) (any, error)
	WorkflowsPutTask(ctx context.Context, definition any) (taskgraph.Document, error)
	WorkflowsGetAllTasks(ctx context.Context) ([]taskgraph.Document, error)
	WorkflowsGetTasksByName(ctx context.Context, injectableName string) ([]taskgraph.Document, error)
	WorkflowsDeleteTasksByName(ctx context.Context, injectableName string) (any, error)
	GetTasksByID(ctx context.Context, identifier string) (taskgraph.Document, error)
}

var _ Catalog = (*taskgraph.Scheduler)(nil)

// Page bounds a workflow listing. Zero values are not sent.
type Page struct {
	Skip  int
	Limit int
}

// Service implements the workflow operations.
type Service struct {
	catalog      Catalog
	activeStates []string
}

// NewService creates a Service. activeStates is the status set used by
// FindActiveGraphForTarget; nil selects DefaultActiveStates.
func NewService(c Catalog, activeStates []string) *Service {
	if activeStates == nil {
		activeStates = DefaultActiveStates
	}
	return &Service{catalog: c, activeStates: activeStates}
}

// ActiveStates returns the status set treated as active.
func (s *Service) ActiveStates() []string {
	return s.activeStates
}

// CreateAndRunGraph starts the graph named by configuration["name"] against nodeID.
func (s *Service) CreateAndRunGraph(ctx context.Context, configuration map[string]any, nodeID string) (taskgraph.Document, error) {
	name, ok := configuration["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: graph name is missing or in wrong format", ErrValidation)
	}
	return s.catalog.WorkflowsPost(ctx, configuration, nodeID)
}

// FindGraphDefinitionByName returns the first graph recorded under graphName.
func (s *Service) FindGraphDefinitionByName(ctx context.Context, graphName string) (taskgraph.Document, error) {
	graphs, err := s.catalog.WorkflowsGetByInstanceID(ctx, graphName)
	if err != nil {
		return nil, err
	}
	if len(graphs) == 0 {
		return nil, fmt.Errorf("%w: graph definition not found for %s", ErrNotFound, graphName)
	}
	return graphs[0], nil
}

// GetWorkflowByInstanceID returns the workflow instance with the given id.
func (s *Service) GetWorkflowByInstanceID(ctx context.Context, instanceID string) (taskgraph.Document, error) {
	result, err := s.catalog.WorkflowsGet(ctx, taskgraph.Query{
		Where: map[string]any{"instanceId": instanceID},
	})
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: graph instance not found for %s", ErrNotFound, instanceID)
	}
	return result[0], nil
}

// CancelTaskGraph asks the scheduler to cancel a workflow. The scheduler
// decides whether the transition is allowed.
func (s *Service) CancelTaskGraph(ctx context.Context, graphID string) (any, error) {
	return s.catalog.WorkflowsAction(ctx, graphID, CommandCancel)
}

// DeleteTaskGraph deletes a workflow instance. The scheduler rejects deletion
// of a running instance.
func (s *Service) DeleteTaskGraph(ctx context.Context, graphID string) (any, error) {
	return s.catalog.WorkflowsDeleteByInstanceID(ctx, graphID)
}

// DefineTaskGraph stores a graph definition.
func (s *Service) DefineTaskGraph(ctx context.Context, definition any) (taskgraph.Document, error) {
	return s.catalog.WorkflowsPutGraphs(ctx, definition)
}

// DefineTask stores a task definition.
func (s *Service) DefineTask(ctx context.Context, definition any) (taskgraph.Document, error) {
	return s.catalog.WorkflowsPutTask(ctx, definition)
}

// GetGraphDefinitions returns every graph definition, or only those named
// injectableName when it is not empty.
func (s *Service) GetGraphDefinitions(ctx context.Context, injectableName string) ([]taskgraph.Document, error) {
	if injectableName != "" {
		return s.catalog.WorkflowsGetGraphsByName(ctx, injectableName)
	}
	return s.catalog.WorkflowsGetGraphs(ctx)
}

// GetTaskDefinitions returns every task definition.
func (s *Service) GetTaskDefinitions(ctx context.Context) ([]taskgraph.Document, error) {
	return s.catalog.WorkflowsGetAllTasks(ctx)
}

// GetTaskDefinitionByName returns the first task definition named injectableName.
func (s *Service) GetTaskDefinitionByName(ctx context.Context, injectableName string) (taskgraph.Document, error) {
	tasks, err := s.catalog.WorkflowsGetTasksByName(ctx, injectableName)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("%w: task definition not found for %s", ErrNotFound, injectableName)
	}
	return tasks[0], nil
}

// DeleteTaskDefinitionByName deletes the task definition named injectableName.
func (s *Service) DeleteTaskDefinitionByName(ctx context.Context, injectableName string) (any, error) {
	return s.catalog.WorkflowsDeleteTasksByName(ctx, injectableName)
}

// DestroyGraphDefinition deletes the graph definition named injectableName.
func (s *Service) DestroyGraphDefinition(ctx context.Context, injectableName string) (any, error) {
	return s.catalog.WorkflowsDeleteGraphsByName(ctx, injectableName)
}

// FindActiveGraphForTarget returns the active workflows running against node.
func (s *Service) FindActiveGraphForTarget(ctx context.Context, node string) ([]taskgraph.Document, error) {
	return s.catalog.WorkflowsGet(ctx, taskgraph.Query{
		Where: map[string]any{
			"node":    node,
			"_status": s.activeStates,
		},
	})
}

// GetWorkflowsByNodeID returns the workflows of nodeID that also match filter.
// Keys in filter are merged over the node condition.
func (s *Service) GetWorkflowsByNodeID(ctx context.Context, nodeID string, filter map[string]any) ([]taskgraph.Document, error) {
	where := map[string]any{"node": nodeID}
	maps.Copy(where, filter)
	return s.catalog.WorkflowsGet(ctx, taskgraph.Query{Where: where})
}

// GetAllWorkflows returns the workflows matching where, bounded by page.
func (s *Service) GetAllWorkflows(ctx context.Context, where map[string]any, page Page) ([]taskgraph.Document, error) {
	if where == nil {
		where = map[string]any{}
	}
	q := taskgraph.Query{Where: where}
	if page.Skip > 0 {
		q.Skip = page.Skip
	}
	if page.Limit > 0 {
		q.Limit = page.Limit
	}
	return s.catalog.WorkflowsGet(ctx, q)
}

// GetTaskByID returns the status of a running task.
func (s *Service) GetTaskByID(ctx context.Context, identifier string) (taskgraph.Document, error) {
	return s.catalog.GetTasksByID(ctx, identifier)
}
