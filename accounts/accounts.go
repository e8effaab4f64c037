// Package accounts loads the managed client accounts from a YAML file.
package accounts

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"lobby-pilot/lobby"
	"lobby-pilot/winapi"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Account is one logged-in client. The client process is started outside
// the pilot; its pid is either given directly or read from PIDFile.
type Account struct {
	Name     string `yaml:"login"`
	PID      uint32 `yaml:"pid,omitempty"`
	PIDFile  string `yaml:"pidFile,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`

	procs winapi.Processes
}

func (a *Account) Login() string {
	return a.Name
}

// ProcessID returns the client's pid, or 0 when it is not known.
func (a *Account) ProcessID() uint32 {
	if a.PID != 0 {
		return a.PID
	}
	if a.PIDFile == "" {
		return 0
	}
	data, err := os.ReadFile(a.PIDFile)
	if err != nil {
		return 0
	}
	pid, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(pid)
}

// Valid reports whether the account is enabled and its client is running.
func (a *Account) Valid() bool {
	if a.Disabled {
		return false
	}
	pid := a.ProcessID()
	if pid == 0 || a.procs == nil {
		return false
	}
	return a.procs.ProcessAlive(pid)
}

type file struct {
	Accounts []*Account `yaml:"accounts"`
}

// Source is the account list in file order.
type Source struct {
	accounts []*Account
}

// Load reads the account file at path. Relative pid files resolve against
// the directory of the account file.
func Load(path string, procs winapi.Processes) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts file: %w", err)
	}
	return Parse(data, filepath.Dir(path), procs)
}

func Parse(data []byte, baseDir string, procs winapi.Processes) (*Source, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse accounts file: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Accounts))
	for i, a := range f.Accounts {
		if a == nil {
			return nil, fmt.Errorf("account #%d is empty", i+1)
		}
		a.Name = strings.TrimSpace(a.Name)
		if a.Name == "" {
			return nil, fmt.Errorf("account #%d: login is required", i+1)
		}
		if _, dup := seen[a.Name]; dup {
			return nil, fmt.Errorf("account %q is listed twice", a.Name)
		}
		seen[a.Name] = struct{}{}

		if a.PIDFile != "" && !filepath.IsAbs(a.PIDFile) && baseDir != "" {
			a.PIDFile = filepath.Join(baseDir, a.PIDFile)
		}
		a.procs = procs
	}

	return &Source{accounts: f.Accounts}, nil
}

func (s *Source) Members() []lobby.Member {
	out := make([]lobby.Member, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	return out
}

func (s *Source) Len() int {
	return len(s.accounts)
}
