/*
Package tools exposes the multisig workflow as named tools, for a command
or tool calling layer to drive.

A tool takes its arguments as a JSON object, validated against a typed
argument struct, and answers with a Result: either data and an optional
suggestion for the next step, or an error and a suggestion how to recover.
Calling a tool never panics.

Every call reads the configuration anew and resolves the ledger, the signer
and the active multisig from it.
*/
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/app"
	"github.com/iov-one/quorum/client"
	"github.com/iov-one/quorum/config"
	"github.com/iov-one/quorum/errors"
	"github.com/iov-one/quorum/x/multisig"
	amino "github.com/tendermint/go-amino"
	"github.com/tendermint/tendermint/libs/log"
)

// Result is the answer of a tool. Exactly one of Data and Error is set.
type Result struct {
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Code       uint32      `json:"code,omitempty"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// Failed returns true if the tool returned an error.
func (r *Result) Failed() bool {
	return r.Error != ""
}

// Tool is a named operation.
type Tool struct {
	Name        string
	Description string

	newArgs func() interface{}
	run     func(ctx context.Context, s *Server, args interface{}) (data interface{}, suggestion string, err error)
}

// Args returns a zero value of the argument struct of the tool. Its json
// and validate tags describe the accepted arguments.
func (t *Tool) Args() interface{} {
	return t.newArgs()
}

// Resolver builds the client context of a call from the configuration.
type Resolver func(config.Config) (client.Context, error)

// Server dispatches tool calls.
type Server struct {
	store    *config.Store
	resolve  Resolver
	cdc      *amino.Codec
	validate *validator.Validate
	bopts    []client.BroadcasterOption
	logger   log.Logger
	debug    bool
	tools    map[string]*Tool
}

// Option configures a Server.
type Option func(*Server)

// WithResolver replaces config.Resolve, for example to talk to an
// in-process ledger.
func WithResolver(r Resolver) Option {
	return func(s *Server) { s.resolve = r }
}

// WithBroadcasterOptions configures the broadcaster of every call.
func WithBroadcasterOptions(opts ...client.BroadcasterOption) Option {
	return func(s *Server) { s.bopts = append(s.bopts, opts...) }
}

// WithLogger sets the logger of the server.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithDebug makes error results carry the full error, including internal
// errors that are otherwise redacted.
func WithDebug(debug bool) Option {
	return func(s *Server) { s.debug = debug }
}

// NewServer returns a server using the configuration kept by store.
func NewServer(store *config.Store, opts ...Option) (*Server, error) {
	v, err := newValidator()
	if err != nil {
		return nil, errors.Wrap(errors.WithKind(errors.ErrHuman, err), "validator")
	}
	s := &Server{
		store:    store,
		resolve:  config.Resolve,
		cdc:      app.MakeCodec(),
		validate: v,
		logger:   log.NewNopLogger(),
		tools:    make(map[string]*Tool),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, t := range configTools() {
		s.register(t)
	}
	for _, t := range multisigTools() {
		s.register(t)
	}
	return s, nil
}

func (s *Server) register(t *Tool) {
	if _, ok := s.tools[t.Name]; ok {
		panic("tool " + t.Name + " registered twice")
	}
	s.tools[t.Name] = t
}

// Tools returns every tool, sorted by name.
func (s *Server) Tools() []*Tool {
	res := make([]*Tool, 0, len(s.tools))
	for _, t := range s.tools {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// Call runs the named tool with given JSON arguments. Empty arguments are
// the same as an empty object.
func (s *Server) Call(ctx context.Context, name string, params json.RawMessage) *Result {
	t, ok := s.tools[name]
	if !ok {
		return s.failure(name, errors.Wrapf(errors.ErrNotFound, "unknown tool %q", name))
	}
	args := t.newArgs()
	if err := s.parse(params, args); err != nil {
		return s.failure(name, err)
	}
	data, suggestion, err := s.run(ctx, t, args)
	if err != nil {
		return s.failure(name, err)
	}
	s.logger.Debug("Tool call", "tool", name)
	return &Result{Data: data, Suggestion: suggestion}
}

func (s *Server) run(ctx context.Context, t *Tool, args interface{}) (data interface{}, suggestion string, err error) {
	defer errors.Recover(&err)
	return t.run(ctx, s, args)
}

func (s *Server) parse(params json.RawMessage, target interface{}) error {
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "arguments: %s", err)
	}
	if err := s.validate.Struct(target); err != nil {
		return errors.Wrapf(errors.ErrInvalidInput, "arguments: %s", err)
	}
	return nil
}

func (s *Server) failure(name string, err error) *Result {
	code, msg := errors.ABCIInfo(err, s.debug)
	s.logger.Info("Tool failed", "tool", name, "code", code, "err", msg)
	return &Result{Error: msg, Code: code, Suggestion: suggest(err)}
}

// squad returns a squad acting with the configured context. A non empty
// multisig replaces the active one.
func (s *Server) squad(ms string) (*client.Squad, error) {
	cfg, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	env, err := s.resolve(cfg)
	if err != nil {
		return nil, err
	}
	if ms != "" {
		if env.Multisig, err = quorum.ParseAddress(ms); err != nil {
			return nil, err
		}
	}
	b := client.NewBroadcaster(env.Ledger, s.cdc, s.bopts...)
	return client.NewSquad(env, b), nil
}

// suggest returns what to try when a call failed with err.
func suggest(err error) string {
	switch {
	case errors.ErrThresholdNotMet.Is(err):
		return "Collect more approvals with APPROVE_PROPOSAL before executing."
	case errors.ErrTimeLockNotElapsed.Is(err):
		return "Wait until the time lock has elapsed, then execute again."
	case errors.ErrProposalStale.Is(err):
		return "The configuration changed since this transaction was created. Create a new transaction."
	case errors.ErrTerminalState.Is(err):
		return "The proposal is already settled. Check it with GET_PROPOSAL."
	case errors.ErrDuplicateVote.Is(err):
		return "Your vote is already recorded."
	case errors.ErrPermissionDenied.Is(err):
		return "Check the members and their permissions with GET_MULTISIG."
	case errors.ErrIndexConflict.Is(err):
		return "Another member created a transaction at the same time. Try again."
	case errors.ErrBroadcastTimeout.Is(err):
		return "The transaction may still be delivered. Check the ledger before submitting it again."
	case errors.ErrNetwork.Is(err):
		return "Check the ledger endpoint with SHOW_CONFIG or change it with CONNECTION_UPDATE."
	case errors.ErrNotFound.Is(err):
		return "Check the address or index. Use GET_PROPOSALS to list proposals."
	case errors.ErrInsufficientAmount.Is(err):
		return "Fund the account first, for example with FUND_VAULT."
	case errors.ErrInvalidInput.Is(err), errors.ErrInvalidAddress.Is(err):
		return "Check the arguments of the call."
	default:
		return ""
	}
}

func newValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	err := v.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		_, err := quorum.ParseAddress(fl.Field().String())
		return err == nil
	})
	if err != nil {
		return nil, err
	}
	err = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		_, err := multisig.ParsePermissions(fl.Field().String())
		return err == nil
	})
	return v, err
}

// parseAddress decodes an optional address.
func parseAddress(s string) (quorum.Address, error) {
	if s == "" {
		return nil, nil
	}
	return quorum.ParseAddress(s)
}

// addressString encodes an optional address.
func addressString(a quorum.Address) string {
	if len(a) == 0 {
		return ""
	}
	return a.String()
}
