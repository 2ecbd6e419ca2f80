package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zyoung51/on-http/internal/model"
	"github.com/zyoung51/on-http/internal/taskgraph"
)

// memScheduler is an in-memory stand-in for the task graph scheduler. It
// keeps just enough state for the HTTP surface to be exercised end to end.
type memScheduler struct {
	mu        sync.Mutex
	graphs    map[string]taskgraph.Document
	tasks     map[string]taskgraph.Document
	workflows []taskgraph.Document
}

func newMemScheduler() *memScheduler {
	return &memScheduler{
		graphs: make(map[string]taskgraph.Document),
		tasks:  make(map[string]taskgraph.Document),
	}
}

type stubArgs struct {
	InjectableName string `json:"injectableName"`
	Definition     string `json:"definition"`
	Query          string `json:"query"`
	NodeID         string `json:"nodeId"`
	Configuration  string `json:"configuration"`
	GraphName      string `json:"graphName"`
	GraphID        string `json:"graphId"`
	Command        string `json:"command"`
	Identifier     string `json:"identifier"`
}

// Handle serves one scheduler call.
func (m *memScheduler) Handle(_ context.Context, method taskgraph.Method, raw json.RawMessage) (string, error) {
	var args stubArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", status.Errorf(codes.InvalidArgument, "decode args: %v", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var (
		out any
		err error
	)
	switch method {
	case taskgraph.MethodWorkflowsGetGraphs:
		out = sortedValues(m.graphs)
	case taskgraph.MethodWorkflowsGetGraphsByName, taskgraph.MethodWorkflowsGetByInstanceID:
		name := args.InjectableName
		if method == taskgraph.MethodWorkflowsGetByInstanceID {
			name = args.GraphName
		}
		out = lookup(m.graphs, name)
	case taskgraph.MethodWorkflowsPutGraphs:
		out, err = putDefinition(m.graphs, args.Definition)
	case taskgraph.MethodWorkflowsDeleteGraphsByName:
		out = remove(m.graphs, args.InjectableName)
	case taskgraph.MethodWorkflowsGetAllTasks:
		out = sortedValues(m.tasks)
	case taskgraph.MethodWorkflowsGetTasksByName:
		out = lookup(m.tasks, args.InjectableName)
	case taskgraph.MethodWorkflowsPutTask:
		out, err = putDefinition(m.tasks, args.Definition)
	case taskgraph.MethodWorkflowsDeleteTasksByName:
		out = remove(m.tasks, args.InjectableName)
	case taskgraph.MethodWorkflowsGet:
		out, err = m.query(args.Query)
	case taskgraph.MethodWorkflowsPost:
		out, err = m.post(args.NodeID, args.Configuration)
	case taskgraph.MethodWorkflowsAction:
		out, err = m.action(args.GraphID, args.Command)
	case taskgraph.MethodWorkflowsDeleteByInstanceID:
		out, err = m.deleteInstance(args.GraphID)
	case taskgraph.MethodGetTasksByID:
		err = status.Errorf(codes.NotFound, "no task instance %s", args.Identifier)
	default:
		err = status.Errorf(codes.Unimplemented, "unknown method %s", method)
	}
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return string(b), nil
}

func (m *memScheduler) query(text string) ([]taskgraph.Document, error) {
	var q taskgraph.Query
	if err := json.Unmarshal([]byte(text), &q); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode query: %v", err)
	}

	var matched []taskgraph.Document
	for _, wf := range m.workflows {
		if matches(wf, q.Where) {
			matched = append(matched, wf)
		}
	}
	if q.Skip > 0 {
		matched = matched[min(q.Skip, len(matched)):]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	if matched == nil {
		matched = []taskgraph.Document{}
	}
	return matched, nil
}

func (m *memScheduler) post(nodeID, text string) (taskgraph.Document, error) {
	var config map[string]any
	if err := json.Unmarshal([]byte(text), &config); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode configuration: %v", err)
	}
	name, _ := config["name"].(string)
	if _, ok := m.graphs[name]; !ok {
		return nil, status.Errorf(codes.NotFound, "graph definition %s not found", name)
	}

	wf := taskgraph.Document{
		"instanceId":     model.NewID(),
		"name":           name,
		"injectableName": name,
		"node":           nodeID,
		"_status":        "running",
		"options":        config["options"],
	}
	m.workflows = append(m.workflows, wf)
	return wf, nil
}

func (m *memScheduler) action(graphID, command string) (taskgraph.Document, error) {
	wf := m.find(graphID)
	if wf == nil {
		return nil, status.Errorf(codes.NotFound, "workflow %s not found", graphID)
	}
	if command != "cancel" {
		return nil, status.Errorf(codes.InvalidArgument, "unsupported command %q", command)
	}
	if wf["_status"] != "running" && wf["_status"] != "pending" {
		return nil, status.Errorf(codes.FailedPrecondition, "workflow %s is %v", graphID, wf["_status"])
	}
	wf["_status"] = "cancelled"
	return wf, nil
}

func (m *memScheduler) deleteInstance(graphID string) (taskgraph.Document, error) {
	i := slices.IndexFunc(m.workflows, func(wf taskgraph.Document) bool {
		return wf["instanceId"] == graphID
	})
	if i < 0 {
		return nil, status.Errorf(codes.NotFound, "workflow %s not found", graphID)
	}
	wf := m.workflows[i]
	if wf["_status"] == "running" {
		return nil, status.Errorf(codes.FailedPrecondition, "workflow %s is running", graphID)
	}
	m.workflows = slices.Delete(m.workflows, i, i+1)
	return wf, nil
}

func (m *memScheduler) find(graphID string) taskgraph.Document {
	for _, wf := range m.workflows {
		if wf["instanceId"] == graphID {
			return wf
		}
	}
	return nil
}

// matches reports whether doc satisfies every condition in where. A list
// value matches any of its elements.
func matches(doc taskgraph.Document, where map[string]any) bool {
	for key, want := range where {
		got := doc[key]
		if list, ok := want.([]any); ok {
			if !slices.ContainsFunc(list, func(v any) bool { return fmt.Sprint(v) == fmt.Sprint(got) }) {
				return false
			}
			continue
		}
		if fmt.Sprint(want) != fmt.Sprint(got) {
			return false
		}
	}
	return true
}

func putDefinition(into map[string]taskgraph.Document, text string) (taskgraph.Document, error) {
	var def taskgraph.Document
	if err := json.Unmarshal([]byte(text), &def); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode definition: %v", err)
	}
	name, _ := def["injectableName"].(string)
	if name == "" {
		return nil, status.Error(codes.InvalidArgument, "definition has no injectableName")
	}
	into[name] = def
	return def, nil
}

func lookup(from map[string]taskgraph.Document, name string) []taskgraph.Document {
	if def, ok := from[name]; ok {
		return []taskgraph.Document{def}
	}
	return []taskgraph.Document{}
}

func remove(from map[string]taskgraph.Document, name string) []taskgraph.Document {
	removed := lookup(from, name)
	delete(from, name)
	return removed
}

func sortedValues(from map[string]taskgraph.Document) []taskgraph.Document {
	names := make([]string, 0, len(from))
	for name := range from {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]taskgraph.Document, 0, len(names))
	for _, name := range names {
		out = append(out, from[name])
	}
	return out
}
