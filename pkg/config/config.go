package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"

	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "mtahook"
	tableFormat = `mtahook is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Lua      Lua
	Policy   Policy
}

// Lua contains the Lua policy script configuration.
type Lua struct {
	Path string `required:"false" default:"policy.lua" desc:"Lua policy script path"`
}

// Policy contains the response policy configuration.
type Policy struct {
	DefaultAction string `required:"true" default:"accept" desc:"Action when no listener responds"`
	Simulate      bool   `required:"true" default:"true" desc:"Dry-run modifications before responding?"`
}

// Action parses DefaultAction.
func (p Policy) Action() (hook.Action, error) {
	a, err := hook.ParseAction(p.DefaultAction)
	if err != nil {
		return 0, fmt.Errorf("invalid default action: %w", err)
	}
	return a, nil
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	if err := envconfig.Process(prefix, c); err != nil {
		return nil, err
	}
	if _, err := c.Policy.Action(); err != nil {
		return nil, err
	}
	return c, nil
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	if err := usage(os.Stderr); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
}

func usage(w io.Writer) error {
	tabs := tabwriter.NewWriter(w, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		return err
	}
	return tabs.Flush()
}
