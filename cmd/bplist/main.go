// Command bplist converts binary property lists to XML, JSON or YAML.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	flags "github.com/jessevdk/go-flags"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	yaml "gopkg.in/yaml.v2"

	bplist "github.com/zdypro888/go-bplist"
)

var log = logging.MustGetLogger("bplist")

var stderrFormat = logging.MustStringFormatter(
	`%{time:15:04:05.000} %{module} %{level:.4s} ▶ %{message}`,
)

type options struct {
	Format      string `short:"f" long:"format" description:"output format" choice:"xml" choice:"json" choice:"yaml" default:"xml"`
	Keyed       bool   `short:"k" long:"keyed" description:"unarchive NSKeyedArchiver contents (json and yaml only)"`
	Trailer     string `long:"trailer" description:"trailer layout" choice:"auto" choice:"counts" choice:"corefoundation" default:"auto"`
	StrictCount bool   `long:"strict-count" description:"fail when the object count differs from the trailer"`
	Output      string `short:"o" long:"output" description:"write to this file instead of stdout"`
	LogLevel    string `long:"log-level" env:"BPLIST_LOG_LEVEL" description:"CRITICAL, ERROR, WARNING, NOTICE, INFO or DEBUG" default:"WARNING"`

	Args struct {
		Files []string `positional-arg-name:"FILE" required:"yes"`
	} `positional-args:"yes"`
}

var trailerLayouts = map[string]bplist.TrailerLayout{
	"auto":           bplist.TrailerLayoutAuto,
	"counts":         bplist.TrailerLayoutCounts,
	"corefoundation": bplist.TrailerLayoutCoreFoundation,
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := setupLogging(opts.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(&opts, os.Stdout); err != nil {
		log.Critical(err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	lvl, err := logging.LogLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), stderrFormat)
	leveled := logging.AddModuleLevel(backend)
	leveled.SetLevel(lvl, "")
	logging.SetBackend(leveled)
	return nil
}

// run converts every file concurrently and writes the results in argument
// order.
func run(opts *options, stdout io.Writer) error {
	if opts.Keyed && opts.Format == "xml" {
		return errors.New("--keyed needs --format json or yaml")
	}
	layout, ok := trailerLayouts[opts.Trailer]
	if !ok {
		return errors.Errorf("unknown trailer layout %q", opts.Trailer)
	}
	decoderOpts := []bplist.DecoderOption{
		bplist.WithTrailerLayout(layout),
		bplist.WithStrictObjectCount(opts.StrictCount),
	}

	outputs := make([][]byte, len(opts.Args.Files))
	var g errgroup.Group
	for i, name := range opts.Args.Files {
		i, name := i, name
		g.Go(func() error {
			out, err := convertFile(name, opts, decoderOpts)
			if err != nil {
				return errors.Wrap(err, name)
			}
			outputs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if opts.Output == "" {
		return writeOutputs(stdout, outputs)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return errors.Wrap(err, "create output")
	}
	return writeAndClose(f, outputs)
}

func writeOutputs(w io.Writer, outputs [][]byte) error {
	for _, out := range outputs {
		if _, err := w.Write(out); err != nil {
			return errors.Wrap(err, "write output")
		}
	}
	return nil
}

// writeAndClose writes outputs to w and closes it. A failed close is
// reported unless the write already failed.
func writeAndClose(w io.WriteCloser, outputs [][]byte) (err error) {
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, "close output")
		}
	}()
	return writeOutputs(w, outputs)
}

func convertFile(name string, opts *options, decoderOpts []bplist.DecoderOption) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table, err := bplist.NewDecoder(f, decoderOpts...).Decode()
	if err != nil {
		return nil, err
	}
	log.Debugf("%s: %d objects, top object %d, %d-byte references", name, table.Len(), table.TopIndex(), table.Trailer().RefSize)

	if opts.Format == "xml" {
		var buf bytes.Buffer
		if err := bplist.WriteXML(&buf, table); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	var value interface{}
	if opts.Keyed {
		value, err = bplist.Unarchive(table)
	} else {
		value, err = table.Interface(table.TopIndex())
	}
	if err != nil {
		return nil, err
	}
	switch opts.Format {
	case "json":
		out, err := json.MarshalIndent(value, "", "\t")
		if err != nil {
			return nil, errors.Wrap(err, "encode json")
		}
		return append(out, '\n'), nil
	case "yaml":
		out, err := yaml.Marshal(value)
		if err != nil {
			return nil, errors.Wrap(err, "encode yaml")
		}
		return append([]byte("---\n"), out...), nil
	}
	return nil, errors.Errorf("unknown format %q", opts.Format)
}
