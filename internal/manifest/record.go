// Package manifest is C1: the in-memory form of a parsed job manifest.
//
// A Record is built from the key/value bag the external TOML parser yields
// (see internal/manifestio) and is immutable once constructed. Unknown keys
// are preserved into Options rather than rejected, so older catalog entries
// stay loadable as the manifest format grows new fields.
package manifest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Record is the validated, immutable in-memory form of one job manifest.
type Record struct {
	ID          string
	Command     string
	Description string

	Enable     bool
	Exclusive  bool
	KeepAlive  bool
	InitGroups bool

	EnvironmentVariables []string

	UID       int
	GID       int
	UserName  string
	GroupName string

	Umask uint32

	RootDirectory    string
	WorkingDirectory string

	StandardInPath  string
	StandardOutPath string
	StandardErrPath string

	Title   string
	Options []string

	Before []string
	After  []string

	// RestartAfter is the keep_alive restart delay. Zero means "use the
	// state machine's default" (spec §4.4: 10s).
	RestartAfter int
}

// MaxIDLength and MaxCommandLength mirror the original source's JOB_ID_MAX
// and JOB_ARG_MAX limits (spec §3).
const (
	MaxIDLength      = 255
	MaxCommandLength = 200000
)

// ValidationError describes the first manifest field rule that was violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FromValues builds a validated Record from a parsed key/value bag. Keys not
// recognized as manifest fields are preserved, sorted by key, into Options
// as "key=value" strings.
//
// Required: id, command. All booleans default to false except enable, which
// defaults to true.
func FromValues(values map[string]any) (*Record, error) {
	r := &Record{Enable: true}

	id, _ := values["id"].(string)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "is required"}
	}
	if len(id) > MaxIDLength {
		return nil, &ValidationError{Field: "id", Message: fmt.Sprintf("exceeds %d characters", MaxIDLength)}
	}
	if !isFilenameSafe(id) {
		return nil, &ValidationError{Field: "id", Message: "must be filename-safe"}
	}
	r.ID = id

	command, _ := values["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, &ValidationError{Field: "command", Message: "is required"}
	}
	if len(command) > MaxCommandLength {
		return nil, &ValidationError{Field: "command", Message: fmt.Sprintf("exceeds %d bytes", MaxCommandLength)}
	}
	r.Command = command

	if v, ok := values["description"].(string); ok {
		r.Description = v
	}
	if v, ok := values["title"].(string); ok {
		r.Title = v
	}
	if v, ok := values["enable"].(bool); ok {
		r.Enable = v
	}
	if v, ok := values["exclusive"].(bool); ok {
		r.Exclusive = v
	}
	if v, ok := values["keep_alive"].(bool); ok {
		r.KeepAlive = v
	}
	if v, ok := values["init_groups"].(bool); ok {
		r.InitGroups = v
	}
	if v, ok := values["root_directory"].(string); ok {
		r.RootDirectory = v
	}
	if v, ok := values["working_directory"].(string); ok {
		r.WorkingDirectory = v
	}
	if v, ok := values["standard_in_path"].(string); ok {
		r.StandardInPath = v
	}
	if v, ok := values["standard_out_path"].(string); ok {
		r.StandardOutPath = v
	}
	if v, ok := values["standard_err_path"].(string); ok {
		r.StandardErrPath = v
	}
	if v, ok := values["restart_after"]; ok {
		n, err := toInt(v)
		if err != nil {
			return nil, &ValidationError{Field: "restart_after", Message: err.Error()}
		}
		r.RestartAfter = n
	}

	if err := r.loadIdentity(values); err != nil {
		return nil, err
	}
	if err := r.loadUmask(values); err != nil {
		return nil, err
	}
	if err := r.loadStringSlice(values, "environment_variables", &r.EnvironmentVariables); err != nil {
		return nil, err
	}
	if err := r.loadStringSlice(values, "before", &r.Before); err != nil {
		return nil, err
	}
	if err := r.loadStringSlice(values, "after", &r.After); err != nil {
		return nil, err
	}

	r.Options = collectOptions(values, knownKeys)

	return r, nil
}

func (r *Record) loadIdentity(values map[string]any) error {
	_, hasUID := values["uid"]
	_, hasUserName := values["user_name"]
	if hasUID && hasUserName {
		return &ValidationError{Field: "user_name", Message: "exactly one of uid/gid or user_name/group_name may be set"}
	}
	if hasUserName {
		name, _ := values["user_name"].(string)
		r.UserName = strings.TrimSpace(name)
		if group, ok := values["group_name"].(string); ok {
			r.GroupName = strings.TrimSpace(group)
		}
		return nil
	}
	if hasUID {
		n, err := toInt(values["uid"])
		if err != nil {
			return &ValidationError{Field: "uid", Message: err.Error()}
		}
		r.UID = n
		if v, ok := values["gid"]; ok {
			g, err := toInt(v)
			if err != nil {
				return &ValidationError{Field: "gid", Message: err.Error()}
			}
			r.GID = g
		}
	}
	return nil
}

func (r *Record) loadUmask(values map[string]any) error {
	v, ok := values["umask"]
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case string:
		n, err := strconv.ParseUint(strings.TrimSpace(t), 8, 32)
		if err != nil {
			return &ValidationError{Field: "umask", Message: "must be an octal mode"}
		}
		r.Umask = uint32(n)
	case int64:
		r.Umask = uint32(t)
	case int:
		r.Umask = uint32(t)
	default:
		return &ValidationError{Field: "umask", Message: "must be a string or integer"}
	}
	return nil
}

func (r *Record) loadStringSlice(values map[string]any, key string, dst *[]string) error {
	v, ok := values[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return &ValidationError{Field: key, Message: "must be a list of strings"}
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return &ValidationError{Field: key, Message: "must be a list of strings"}
		}
		out = append(out, s)
	}
	*dst = out
	return nil
}

var knownKeys = map[string]struct{}{
	"id": {}, "command": {}, "description": {}, "enable": {}, "exclusive": {},
	"keep_alive": {}, "init_groups": {}, "environment_variables": {}, "uid": {},
	"gid": {}, "user_name": {}, "group_name": {}, "umask": {}, "root_directory": {},
	"working_directory": {}, "standard_in_path": {}, "standard_out_path": {},
	"standard_err_path": {}, "title": {}, "before": {}, "after": {}, "restart_after": {},
}

// collectOptions preserves unknown keys as "key=value" strings, sorted by
// key so Options is deterministic across re-imports of the same manifest.
func collectOptions(values map[string]any, known map[string]struct{}) []string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if _, ok := known[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("%s=%v", k, values[k]))
	}
	return out
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int64:
		return int(t), nil
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("must be an integer")
		}
		return n, nil
	default:
		return 0, fmt.Errorf("must be an integer")
	}
}

func isFilenameSafe(id string) bool {
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}
