// Package tools holds the data-lookup functions EduBot may call. The set is
// closed: tools are registered by name when the registry is built.
package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/edusphere/internal/llm"
	"github.com/stellarlinkco/edusphere/internal/school"
)

const (
	GetSchoolStats = "getSchoolStats"
	SearchStudent  = "searchStudent"
	SearchTeacher  = "searchTeacher"
)

const (
	msgFunctionNotFound = "Function not found"
	msgStudentNotFound  = "Student not found"
	msgTeacherNotFound  = "No teachers found"
)

// Directory is the read side of the school store the tools need.
type Directory interface {
	Stats() school.Stats
	ListStudents() []school.Student
	ListTeachers() []school.Teacher
}

type handler func(dir Directory, args map[string]any) (any, *llm.Error)

type tool struct {
	decl llm.ToolDeclaration
	run  handler
}

// Registry resolves tool calls against a Directory.
type Registry struct {
	dir   Directory
	tools map[string]tool
}

func NewRegistry(dir Directory) *Registry {
	r := &Registry{dir: dir, tools: make(map[string]tool)}
	r.register(tool{
		decl: llm.ToolDeclaration{
			Name:        GetSchoolStats,
			Description: "Get current school statistics: total students, total teachers, monthly revenue and average attendance.",
		},
		run: getSchoolStats,
	})
	r.register(tool{
		decl: llm.ToolDeclaration{
			Name:        SearchStudent,
			Description: "Search for a student by name. Returns the first student whose name contains the search term.",
			Params: []llm.ToolParam{
				{Name: "name", Type: llm.TypeString, Description: "Full or partial student name", Required: true},
			},
		},
		run: searchStudent,
	})
	r.register(tool{
		decl: llm.ToolDeclaration{
			Name:        SearchTeacher,
			Description: "Search for teachers by name or subject. Returns every matching teacher.",
			Params: []llm.ToolParam{
				{Name: "query", Type: llm.TypeString, Description: "Teacher name or subject, e.g. Physics", Required: true},
			},
		},
		run: searchTeacher,
	})
	return r
}

func (r *Registry) register(t tool) {
	r.tools[t.decl.Name] = t
}

// Declarations returns the tool declarations sorted by name.
func (r *Registry) Declarations() []llm.ToolDeclaration {
	out := make([]llm.ToolDeclaration, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.decl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Result is the outcome of one tool call. Err records why the payload is an
// error payload, if it is one.
type Result struct {
	llm.ToolResult
	Err *llm.Error
}

// Invoke runs call and always produces a result tagged with the call's ID
// and name. Failures become structured error payloads.
func (r *Registry) Invoke(call llm.ToolCall) (res Result) {
	res.ID = call.ID
	res.Name = call.Name

	t, ok := r.tools[call.Name]
	if !ok {
		res.Payload = errorPayload(msgFunctionNotFound)
		res.Err = llm.NewError(llm.KindToolNotFound, call.Name, nil)
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Payload = errorPayload(fmt.Sprintf("tool %s failed", call.Name))
			res.Err = llm.NewError(llm.KindToolFailed, fmt.Sprint(p), nil)
		}
	}()

	for _, p := range t.decl.Params {
		if !p.Required {
			continue
		}
		if _, ok := stringArg(call.Args, p.Name); !ok {
			res.Payload = errorPayload("missing required argument: " + p.Name)
			res.Err = llm.NewError(llm.KindInvalidArguments, p.Name, nil)
			return res
		}
	}

	payload, err := t.run(r.dir, call.Args)
	res.Payload = jsonValue(payload)
	res.Err = err
	return res
}

func errorPayload(msg string) map[string]any {
	return map[string]any{"error": msg}
}

// jsonValue converts v to its generic JSON form (maps, slices, float64) so
// every backend sees the same shape.
func jsonValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return errorPayload(err.Error())
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return errorPayload(err.Error())
	}
	return out
}

func stringArg(args map[string]any, name string) (string, bool) {
	v, ok := args[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func getSchoolStats(dir Directory, _ map[string]any) (any, *llm.Error) {
	return dir.Stats(), nil
}

func searchStudent(dir Directory, args map[string]any) (any, *llm.Error) {
	name, _ := stringArg(args, "name")
	term := strings.ToLower(strings.TrimSpace(name))
	if term != "" {
		for _, st := range dir.ListStudents() {
			if strings.Contains(strings.ToLower(st.Name), term) {
				return st, nil
			}
		}
	}
	return errorPayload(msgStudentNotFound), llm.NewError(llm.KindToolLookupMiss, name, nil)
}

func searchTeacher(dir Directory, args map[string]any) (any, *llm.Error) {
	query, _ := stringArg(args, "query")
	term := strings.ToLower(strings.TrimSpace(query))
	var matches []school.Teacher
	if term != "" {
		for _, t := range dir.ListTeachers() {
			if strings.Contains(strings.ToLower(t.Name), term) ||
				strings.Contains(strings.ToLower(t.Subject), term) {
				matches = append(matches, t)
			}
		}
	}
	if len(matches) == 0 {
		return errorPayload(msgTeacherNotFound), llm.NewError(llm.KindToolLookupMiss, query, nil)
	}
	return matches, nil
}
