package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/hanpama/recordgql/internal/eventbus"
	"github.com/hanpama/recordgql/internal/logging"
	"github.com/hanpama/recordgql/internal/metadata"
	"github.com/hanpama/recordgql/internal/otel"
	"github.com/hanpama/recordgql/internal/policy"
	"github.com/hanpama/recordgql/internal/projection"
	"github.com/hanpama/recordgql/internal/render"
)

const rootUsage = `recordgql: GraphQL field projections for metadata-described records

USAGE:
  recordgql [global flags] <command> [flags]

GLOBAL FLAGS:
  -log.level <level>       debug, info, warn or error (default: info)
  -otel.endpoint <addr>    OTLP collector endpoint
  -otel.service <name>     OpenTelemetry service name (default: recordgql)

COMMANDS:
  project          Print the field projection of an object as JSON
  render           Print the GraphQL query fetching an object's records
  validate         Check metadata for dangling relations and identifiers
  help             Show help for any command
`

const projectUsage = `project FLAGS:
  -metadata <file>      Metadata export (.json) or SDL (.graphql, .gql) (required)
  -object <name>        Object id, singular or plural name (required)
  -field <id|name>      Visible field. Repeatable
  -extra-field <id>     Additional field requested out of band
  -depth N              Relation expansion depth (default: 1)
  -policy <file>        Policy YAML (default: built-in record table policy)
  -no-policy            Apply no forced fields and no attachments
  -pretty               Indent JSON output
`

const renderUsage = `render FLAGS:
  (all project flags except -pretty)
  -one                  Render a single-record query instead of a list query
`

const validateUsage = `validate FLAGS:
  -metadata <file>      Metadata export (.json) or SDL (.graphql, .gql) (required)
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	logLevel := "info"
	otelEndpoint := ""
	otelService := "recordgql"

	global := flag.NewFlagSet("recordgql", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
	global.StringVar(&logLevel, "log.level", logLevel, "Log level")
	global.StringVar(&otelEndpoint, "otel.endpoint", otelEndpoint, "OTLP collector endpoint")
	global.StringVar(&otelService, "otel.service", otelService, "OpenTelemetry service name")
	if err := global.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, rootUsage)
		return err
	}
	remaining := global.Args()
	if len(remaining) == 0 {
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("missing command")
	}

	cmd := remaining[0]
	cmdArgs := remaining[1:]
	if cmd == "help" {
		return cmdHelp(cmdArgs, stdout)
	}

	logger, err := logging.New(logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	prev := eventbus.Current()
	eventbus.Use(eventbus.New())
	defer eventbus.Use(prev)
	defer logging.Attach(logger)()

	shutdown, err := otel.Setup(otelEndpoint, otelService)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	switch cmd {
	case "project":
		return cmdProject(cmdArgs, stdout)
	case "render":
		return cmdRender(cmdArgs, stdout)
	case "validate":
		return cmdValidate(cmdArgs, stdout)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, rootUsage)
		return nil
	}
	switch args[0] {
	case "project":
		fmt.Fprint(stdout, projectUsage)
	case "render":
		fmt.Fprint(stdout, renderUsage)
	case "validate":
		fmt.Fprint(stdout, validateUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type stringListFlag []string

func (s *stringListFlag) String() string { return "" }

func (s *stringListFlag) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// projectionFlags are shared by project and render.
type projectionFlags struct {
	metadataPath string
	object       string
	fields       stringListFlag
	extraField   string
	depth        int
	policyPath   string
	noPolicy     bool
}

func (p *projectionFlags) register(fs *flag.FlagSet) {
	p.depth = projection.DefaultDepth
	fs.StringVar(&p.metadataPath, "metadata", "", "Metadata file")
	fs.StringVar(&p.object, "object", "", "Object id or name")
	fs.Var(&p.fields, "field", "Visible field id or name")
	fs.StringVar(&p.extraField, "extra-field", "", "Additional field id")
	fs.IntVar(&p.depth, "depth", p.depth, "Relation expansion depth")
	fs.StringVar(&p.policyPath, "policy", "", "Policy YAML file")
	fs.BoolVar(&p.noPolicy, "no-policy", false, "Disable forced fields and attachments")
}

func (p *projectionFlags) check() error {
	if p.metadataPath == "" {
		return fmt.Errorf("-metadata is required")
	}
	if p.object == "" {
		return fmt.Errorf("-object is required")
	}
	if p.depth < 0 {
		return fmt.Errorf("-depth must not be negative")
	}
	return nil
}

// projected is an assembled selection with what rendering it needs.
type projected struct {
	snap        *metadata.Snapshot
	obj         *metadata.Object
	sel         projection.Selection
	attachments []policy.Attachment
}

// assemble loads metadata and policy and builds the projection.
func (p *projectionFlags) assemble(ctx context.Context) (*projected, error) {
	snap, err := metadata.LoadFile(p.metadataPath)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	cfg := policy.Default()
	switch {
	case p.noPolicy:
		cfg = &policy.Config{}
	case p.policyPath != "":
		if cfg, err = policy.LoadFile(p.policyPath); err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	a := projection.NewAssembler(snap, projection.WithConfig(cfg))
	req := projection.Request{AdditionalFieldID: p.extraField, Depth: p.depth}
	obj, ok := snap.Lookup(p.object)
	if ok {
		req.VisibleFieldIDs = fieldIDs(obj, p.fields)
	}
	sel, err := a.Assemble(ctx, p.object, req)
	if err != nil {
		return nil, err
	}
	return &projected{snap: snap, obj: obj, sel: sel, attachments: a.Attachments()}, nil
}

// fieldIDs accepts field names as well as ids; unmatched values pass
// through and are skipped by the assembler.
func fieldIDs(obj *metadata.Object, values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := obj.FieldByID(v); !ok {
			if f, ok := obj.FieldByName(v); ok {
				v = f.ID
			}
		}
		out = append(out, v)
	}
	return out
}

func cmdProject(args []string, stdout io.Writer) error {
	var pf projectionFlags
	pretty := false
	fs := flag.NewFlagSet("project", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	pf.register(fs)
	fs.BoolVar(&pretty, "pretty", pretty, "Indent JSON output")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, projectUsage)
		return err
	}
	if err := pf.check(); err != nil {
		fmt.Fprint(os.Stderr, projectUsage)
		return err
	}
	pr, err := pf.assemble(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(pr.sel)
}

func cmdRender(args []string, stdout io.Writer) error {
	var pf projectionFlags
	one := false
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	pf.register(fs)
	fs.BoolVar(&one, "one", one, "Render a single-record query")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, renderUsage)
		return err
	}
	if err := pf.check(); err != nil {
		fmt.Fprint(os.Stderr, renderUsage)
		return err
	}
	pr, err := pf.assemble(context.Background())
	if err != nil {
		return err
	}
	doc := render.FindMany(pr.snap, pr.obj, pr.sel, pr.attachments...)
	if one {
		doc = render.FindOne(pr.snap, pr.obj, pr.sel, pr.attachments...)
	}
	_, err = fmt.Fprintln(stdout, render.Format(doc))
	return err
}

func cmdValidate(args []string, stdout io.Writer) error {
	metadataPath := ""
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	fs.StringVar(&metadataPath, "metadata", metadataPath, "Metadata file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, validateUsage)
		return err
	}
	if metadataPath == "" {
		fmt.Fprint(os.Stderr, validateUsage)
		return fmt.Errorf("-metadata is required")
	}
	snap, err := metadata.LoadFile(metadataPath)
	if err != nil {
		return fmt.Errorf("load metadata: %w", err)
	}
	err = snap.Validate()
	var verr metadata.ValidationError
	if errors.As(err, &verr) {
		for _, v := range verr {
			fmt.Fprintln(stdout, v.String())
		}
		return fmt.Errorf("%d metadata violations", len(verr))
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d objects ok\n", len(snap.Objects()))
	return nil
}
