package supervisor

import (
	"fmt"
	"os/user"
	"strconv"

	"github.com/3leaps/jobd/internal/manifest"
)

// identity is the resolved credential a child process execs under, per
// spec.md §4.5 step 1.
type identity struct {
	UID    uint32
	GID    uint32
	Groups []uint32
	Home   string
	Shell  string
}

// resolveIdentity looks up user_name (when set) or uses numeric uid/gid
// directly. init_groups additionally loads the account's supplementary
// group list from the password/group database.
func resolveIdentity(m *manifest.Record) (identity, error) {
	if m.UserName != "" {
		u, err := user.Lookup(m.UserName)
		if err != nil {
			return identity{}, fmt.Errorf("lookup user %q: %w", m.UserName, err)
		}
		uid, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return identity{}, fmt.Errorf("parse uid for %q: %w", m.UserName, err)
		}
		gid, err := strconv.ParseUint(u.Gid, 10, 32)
		if err != nil {
			return identity{}, fmt.Errorf("parse gid for %q: %w", m.UserName, err)
		}
		id := identity{UID: uint32(uid), GID: uint32(gid), Home: u.HomeDir}

		if m.InitGroups {
			groupIDs, err := u.GroupIds()
			if err != nil {
				return identity{}, fmt.Errorf("lookup supplementary groups for %q: %w", m.UserName, err)
			}
			id.Groups = make([]uint32, 0, len(groupIDs))
			for _, g := range groupIDs {
				n, err := strconv.ParseUint(g, 10, 32)
				if err != nil {
					return identity{}, fmt.Errorf("parse group id %q: %w", g, err)
				}
				id.Groups = append(id.Groups, uint32(n))
			}
		}
		return id, nil
	}

	return identity{UID: uint32(m.UID), GID: uint32(m.GID)}, nil
}

// environment builds the replacement environment for the child: exactly
// environment_variables, plus HOME/USER/LOGNAME/SHELL derived from the
// resolved identity (spec.md §4.5 step 7).
func environment(m *manifest.Record, id identity) []string {
	env := make([]string, 0, len(m.EnvironmentVariables)+4)
	env = append(env, m.EnvironmentVariables...)

	user := m.UserName
	if user == "" {
		user = strconv.FormatUint(uint64(id.UID), 10)
	}
	home := id.Home
	if home == "" {
		home = "/"
	}
	shell := id.Shell
	if shell == "" {
		shell = "/bin/sh"
	}

	env = append(env,
		"HOME="+home,
		"USER="+user,
		"LOGNAME="+user,
		"SHELL="+shell,
	)
	return env
}
