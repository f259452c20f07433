package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/inbucket/mtahook/pkg/config"
	"github.com/inbucket/mtahook/pkg/extension"
	"github.com/inbucket/mtahook/pkg/extension/luahost"
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/message"
	"github.com/inbucket/mtahook/pkg/policy"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// writeJSON writes data to out, indented when requested, followed by a newline.
func writeJSON(out io.Writer, data []byte, indent bool) error {
	if indent {
		buf := &bytes.Buffer{}
		if err := json.Indent(buf, data, "", "  "); err != nil {
			return err
		}
		data = buf.Bytes()
	}
	_, err := fmt.Fprintf(out, "%s\n", data)
	return err
}

type decodeCmd struct {
	response bool
	indent   bool
}

func (*decodeCmd) Name() string {
	return "decode"
}

func (*decodeCmd) Synopsis() string {
	return "validate a request or response, output canonical JSON"
}

func (*decodeCmd) Usage() string {
	return `decode [flags] <file|->:
	decode a hook request (or response with -response) and output it re-encoded
	exit status will be 1 if the input is invalid
`
}

func (d *decodeCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.response, "response", false, "input is a response rather than a request")
	f.BoolVar(&d.indent, "indent", false, "indent output JSON")
}

func (d *decodeCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage("input file required")
	}
	if err := d.run(f.Arg(0), os.Stdin, os.Stdout); err != nil {
		return fatal("Decode failed", err)
	}
	return subcommands.ExitSuccess
}

func (d *decodeCmd) run(name string, in io.Reader, out io.Writer) error {
	data, err := readInput(name, in)
	if err != nil {
		return err
	}

	var encoded []byte
	if d.response {
		res, err := hook.DecodeResponse(data)
		if err != nil {
			return err
		}
		encoded, err = hook.EncodeResponse(res)
		if err != nil {
			return err
		}
	} else {
		req, err := hook.DecodeRequest(data)
		if err != nil {
			return err
		}
		encoded, err = hook.EncodeRequest(req)
		if err != nil {
			return err
		}
	}

	return writeJSON(out, encoded, d.indent)
}

type evalCmd struct {
	conf     *config.Root
	script   string
	simulate bool
	indent   bool
}

func (*evalCmd) Name() string {
	return "eval"
}

func (*evalCmd) Synopsis() string {
	return "run the Lua policy against a request, output the response"
}

func (*evalCmd) Usage() string {
	return `eval [flags] <request file|->:
	decide the response to a request using the configured Lua policy script
`
}

func (e *evalCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.script, "script", e.conf.Lua.Path, "Lua policy script path")
	f.BoolVar(&e.simulate, "simulate", e.conf.Policy.Simulate,
		"apply modifications to the request before responding")
	f.BoolVar(&e.indent, "indent", false, "indent output JSON")
}

func (e *evalCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usage("request file required")
	}
	if err := e.run(log.Logger, f.Arg(0), os.Stdin, os.Stdout); err != nil {
		return fatal("Evaluation failed", err)
	}
	return subcommands.ExitSuccess
}

func (e *evalCmd) run(logger zerolog.Logger, name string, in io.Reader, out io.Writer) error {
	data, err := readInput(name, in)
	if err != nil {
		return err
	}

	extHost := extension.NewHost()
	luaHost, err := luahost.New(logger, config.Lua{Path: e.script}, extHost)
	if err != nil {
		return fmt.Errorf("loading policy script: %w", err)
	}
	if luaHost == nil {
		logger.Warn().Str("path", e.script).Msg("No policy script, using default action")
	}

	pconf := e.conf.Policy
	pconf.Simulate = e.simulate
	d, err := extension.NewDispatcher(logger, extHost, pconf)
	if err != nil {
		return err
	}
	encoded, err := d.Handle(data)
	if err != nil {
		return err
	}

	// Let after.response functions finish before exiting.
	extHost.Events.AfterResponse.Wait()
	return writeJSON(out, encoded, e.indent)
}

type applyCmd struct {
	indent bool
}

func (*applyCmd) Name() string {
	return "apply"
}

func (*applyCmd) Synopsis() string {
	return "apply a response's modifications to a request"
}

func (*applyCmd) Usage() string {
	return `apply [flags] <request file|-> <response file|->:
	output the request as the MTA would see it after applying the response
	exit status will be 1 if any modification cannot be applied
`
}

func (a *applyCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&a.indent, "indent", false, "indent output JSON")
}

func (a *applyCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		return usage("request and response files required")
	}
	if f.Arg(0) == "-" && f.Arg(1) == "-" {
		return usage("only one input may be read from stdin")
	}
	if err := a.run(f.Arg(0), f.Arg(1), os.Stdin, os.Stdout); err != nil {
		return fatal("Apply failed", err)
	}
	return subcommands.ExitSuccess
}

func (a *applyCmd) run(reqName, resName string, in io.Reader, out io.Writer) error {
	data, err := readInput(reqName, in)
	if err != nil {
		return err
	}
	req, err := hook.DecodeRequest(data)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}

	data, err = readInput(resName, in)
	if err != nil {
		return err
	}
	res, err := hook.DecodeResponse(data)
	if err != nil {
		return fmt.Errorf("response: %w", err)
	}

	modified, err := policy.Apply(req, res.Modifications)
	if err != nil {
		return err
	}
	encoded, err := hook.EncodeRequest(modified)
	if err != nil {
		return err
	}
	return writeJSON(out, encoded, a.indent)
}

type mkreqCmd struct {
	stage    string
	from     string
	to       stringsFlag
	clientIP string
	helo     string
	indent   bool
}

func (*mkreqCmd) Name() string {
	return "mkreq"
}

func (*mkreqCmd) Synopsis() string {
	return "build a request from a raw message"
}

func (*mkreqCmd) Usage() string {
	return `mkreq [flags] <message file|->:
	output a request carrying the RFC 5322 message, for testing policy scripts
`
}

func (m *mkreqCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.stage, "stage", "data", "stage: connect, ehlo, auth, mail, rcpt, or data")
	f.StringVar(&m.from, "from", "", "envelope sender")
	f.Var(&m.to, "to", "envelope recipient, may be repeated")
	f.StringVar(&m.clientIP, "client", "127.0.0.1", "client IP address")
	f.StringVar(&m.helo, "helo", "", "client HELO/EHLO name")
	f.BoolVar(&m.indent, "indent", false, "indent output JSON")
}

func (m *mkreqCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() > 1 {
		return usage("at most one message file allowed")
	}
	if err := m.run(f.Arg(0), os.Stdin, os.Stdout); err != nil {
		return fatal("Building request failed", err)
	}
	return subcommands.ExitSuccess
}

// run builds the request. The envelope is included from the mail stage onward, and the
// message only at the data stage, where name is required.
func (m *mkreqCmd) run(name string, in io.Reader, out io.Writer) error {
	stage, err := hook.ParseStage(m.stage)
	if err != nil {
		return err
	}

	req := &hook.Request{
		Context: hook.Context{
			Stage:    stage,
			Client:   hook.Client{IP: m.clientIP, ActiveConnections: 1},
			Protocol: hook.Protocol{Version: 1},
		},
	}
	if m.helo != "" {
		req.Context.Client.HELO = hook.StringPtr(m.helo)
	}

	if stage >= hook.StageMail {
		env := &hook.Envelope{From: hook.Address{Address: m.from}, To: []hook.Address{}}
		for _, to := range m.to {
			env.To = append(env.To, hook.Address{Address: to})
		}
		req.Envelope = env
	}

	if stage == hook.StageData {
		if name == "" {
			return errors.New("message file required for the data stage")
		}
		data, err := readInput(name, in)
		if err != nil {
			return err
		}
		if req.Message, err = message.FromReader(bytes.NewReader(data)); err != nil {
			return err
		}
	}

	encoded, err := hook.EncodeRequest(req)
	if err != nil {
		return err
	}
	return writeJSON(out, encoded, m.indent)
}
