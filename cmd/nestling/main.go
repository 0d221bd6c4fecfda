package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hanpama/nestling"
	"github.com/hanpama/nestling/internal/eventbus"
	"github.com/hanpama/nestling/internal/logging"
	"github.com/hanpama/nestling/internal/otel"
	"github.com/hanpama/nestling/model"
)

const rootUsage = `nestling — typed GraphQL data-layer client tools

USAGE:
  nestling <command> [flags]

COMMANDS:
  query            Fetch rows of a table and print them as JSON
  stream           Fetch rows incrementally, printing each as it arrives
  count            Count the rows of a table
  help             Show help for any command

Connection settings come from HASURA_URL, HASURA_ADMIN_SECRET and
HASURA_ROLE; a .env file in the working directory is loaded first.
`

const queryUsage = `query FLAGS:
  -table <name>            Table name (required)
  -schema <name>           Postgres schema (default: public)
  -columns <a,b,c>         Columns to select; first one is treated as the key
                           (required)
  -where <json>            Filter as a Hasura bool expression
  -order-by <json>         Ordering, e.g. {"created_at":"desc"}
  -limit <n>               Row limit
  -offset <n>              Row offset
  -url <url>               Endpoint override
  -verbose                 Debug-log documents and dispatch attempts
  -otel.endpoint <addr>    OTLP collector endpoint
  -otel.service <name>     OpenTelemetry service name (default: nestling)
`

const streamUsage = `stream FLAGS:
  Same flags as query. Rows are decoded and printed one at a time instead
  of buffering the whole response.
`

const countUsage = `count FLAGS:
  -table <name>            Table name (required)
  -schema <name>           Postgres schema (default: public)
  -where <json>            Filter as a Hasura bool expression
  -url <url>               Endpoint override
  -verbose                 Debug-log documents and dispatch attempts
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	_ = godotenv.Load()

	global := flag.NewFlagSet("nestling", flag.ContinueOnError)
	global.SetOutput(new(bytes.Buffer)) // silence automatic output
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
	switch cmd {
	case "query":
		return cmdQuery(cmdArgs, false)
	case "stream":
		return cmdQuery(cmdArgs, true)
	case "count":
		return cmdCount(cmdArgs)
	case "help":
		return cmdHelp(cmdArgs)
	default:
		fmt.Fprint(os.Stderr, rootUsage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		fmt.Print(rootUsage)
		return nil
	}
	switch args[0] {
	case "query":
		fmt.Print(queryUsage)
	case "stream":
		fmt.Print(streamUsage)
	case "count":
		fmt.Print(countUsage)
	default:
		return fmt.Errorf("unknown help topic %q", args[0])
	}
	return nil
}

type tableFlags struct {
	table   string
	schema  string
	columns string
	where   string
	orderBy string
	limit   int
	offset  int
	url     string
	verbose bool

	otelEndpoint string
	otelService  string
}

func (tf *tableFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&tf.table, "table", "", "Table name")
	fs.StringVar(&tf.schema, "schema", "public", "Postgres schema")
	fs.StringVar(&tf.columns, "columns", "", "Columns to select")
	fs.StringVar(&tf.where, "where", "", "Filter as a Hasura bool expression")
	fs.StringVar(&tf.orderBy, "order-by", "", "Ordering")
	fs.IntVar(&tf.limit, "limit", 0, "Row limit")
	fs.IntVar(&tf.offset, "offset", 0, "Row offset")
	fs.StringVar(&tf.url, "url", "", "Endpoint override")
	fs.BoolVar(&tf.verbose, "verbose", false, "Debug-log documents and dispatch attempts")
	fs.StringVar(&tf.otelEndpoint, "otel.endpoint", "", "OTLP collector endpoint")
	fs.StringVar(&tf.otelService, "otel.service", "nestling", "OpenTelemetry service name")
}

func (tf *tableFlags) setup() (func(), error) {
	eventbus.Use(eventbus.New())

	logger := logrus.New()
	if tf.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	detach := logging.Attach(logger)

	shutdown, err := otel.Setup(tf.otelEndpoint, tf.otelService)
	if err != nil {
		detach()
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	return func() {
		_ = shutdown(context.Background())
		detach()
	}, nil
}

func (tf *tableFlags) params() (nestling.ListParams, error) {
	p := nestling.ListParams{Limit: tf.limit, Offset: tf.offset}
	if tf.where != "" {
		var w nestling.Where
		if err := json.Unmarshal([]byte(tf.where), &w); err != nil {
			return p, fmt.Errorf("invalid -where: %w", err)
		}
		p.Where = w
	}
	if tf.orderBy != "" {
		var ob any
		if err := json.Unmarshal([]byte(tf.orderBy), &ob); err != nil {
			return p, fmt.Errorf("invalid -order-by: %w", err)
		}
		p.OrderBy = ob
	}
	return p, nil
}

func (tf *tableFlags) options() []nestling.Option {
	if tf.url == "" {
		return nil
	}
	return []nestling.Option{nestling.WithConfig(nestling.Config{URL: tf.url})}
}

func cmdQuery(args []string, stream bool) error {
	var tf tableFlags
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	tf.register(fs)
	usage := queryUsage
	if stream {
		usage = streamUsage
	}
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, usage)
		return err
	}
	if tf.table == "" || tf.columns == "" {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("-table and -columns are required")
	}

	cleanup, err := tf.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	columns := strings.Split(tf.columns, ",")
	for i, c := range columns {
		columns[i] = strings.TrimSpace(c)
	}
	table := model.Dynamic(tf.schema, tf.table, columns...)
	p, err := tf.params()
	if err != nil {
		return err
	}

	selected := make([]any, len(columns))
	for i, c := range columns {
		selected[i] = c
	}

	ctx := context.Background()
	q := nestling.NewQueryFor(table, tf.options()...)
	out := json.NewEncoder(os.Stdout)

	if stream {
		rows, err := q.Many(p).Yielding(ctx, selected...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var row model.Row
			if err := rows.Scan(&row); err != nil {
				return err
			}
			if err := out.Encode(row); err != nil {
				return err
			}
		}
		return rows.Err()
	}

	rows, err := q.Many(p).Returning(ctx, selected...)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := out.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func cmdCount(args []string) error {
	var tf tableFlags
	fs := flag.NewFlagSet("count", flag.ContinueOnError)
	fs.SetOutput(new(bytes.Buffer))
	tf.register(fs)
	if err := fs.Parse(args); err != nil {
		fmt.Fprint(os.Stderr, countUsage)
		return err
	}
	if tf.table == "" {
		fmt.Fprint(os.Stderr, countUsage)
		return fmt.Errorf("-table is required")
	}

	cleanup, err := tf.setup()
	if err != nil {
		return err
	}
	defer cleanup()

	table := model.Dynamic(tf.schema, tf.table)
	p, err := tf.params()
	if err != nil {
		return err
	}

	q := nestling.NewQueryFor(table, tf.options()...)
	count, err := q.Aggregate(p).Count(context.Background(), nil)
	if err != nil {
		return err
	}
	fmt.Println(count)
	return nil
}
