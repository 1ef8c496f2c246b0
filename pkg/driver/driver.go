// Package driver runs whole listings through the decompiler: it splits the
// input into classes, lifts and generates them on a worker pool and writes
// the results back in listing order.
package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/golang/glog"

	"nascdec/pkg/config"
	"nascdec/pkg/errors"
	"nascdec/pkg/lexer"
	"nascdec/pkg/parser"
	"nascdec/pkg/regression"
	"nascdec/pkg/source"
	"nascdec/pkg/symbols"
)

const debugDriver = false

func debugPrintf(format string, args ...interface{}) {
	if debugDriver {
		fmt.Printf(format, args...)
	}
}

// Options carries the lifter and generator settings for one class.
type Options struct {
	Lifter  []parser.Option
	Emitter []parser.EmitterOption
}

// OptionsFromConfig translates the [Lifter] and [Emitter] sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Lifter: []parser.Option{parser.WithIncrementWindow(cfg.Lifter.IncrementWindow)},
		Emitter: []parser.EmitterOption{
			parser.WithImplicitReceivers(cfg.Emitter.ImplicitReceivers...),
			parser.WithConstantPrefix(cfg.Emitter.ConstantPrefix),
			parser.WithUnprefixedDomains(cfg.Emitter.UnprefixedDomains...),
		},
	}
}

// DecompileClass lifts one class listing and generates its source.
func DecompileClass(resolver symbols.Resolver, listing *lexer.ClassListing, opts Options) (*parser.ClassDeclaration, string, errors.DecompileError) {
	class, err := parser.NewParser(resolver, opts.Lifter...).ParseClass(listing)
	if err != nil {
		return nil, "", err
	}
	return class, parser.NewNASCEmitter(opts.Emitter...).Emit(class), nil
}

// Driver decompiles listings with one configuration and symbol database.
type Driver struct {
	cfg      config.Config
	resolver symbols.Resolver
	opts     Options

	// Regression, when set, records or checks a checksum per class.
	Regression *regression.Store
}

// New creates a driver. The resolver must be safe for concurrent use when
// cfg.Run.Workers is above one.
func New(cfg config.Config, resolver symbols.Resolver) *Driver {
	return &Driver{cfg: cfg, resolver: resolver, opts: OptionsFromConfig(&cfg)}
}

// Decompile runs every class of src and writes the generated source to w in
// the configured encoding. A failing class is reported and skipped; the
// returned error is reserved for I/O failures and cancellation.
func Decompile(ctx context.Context, cfg config.Config, resolver symbols.Resolver, src *source.SourceFile, w io.Writer) (*Report, error) {
	return New(cfg, resolver).Decompile(ctx, src, w)
}

// Decompile runs every class of src and writes the generated source to w.
func (d *Driver) Decompile(ctx context.Context, src *source.SourceFile, w io.Writer) (*Report, error) {
	out, err := NewOutputWriter(w, d.cfg.Run.Encoding)
	if err != nil {
		return nil, err
	}

	report := &Report{Source: src}
	lifter := append([]parser.Option{parser.WithSource(src)}, d.opts.Lifter...)
	opts := Options{Lifter: lifter, Emitter: d.opts.Emitter}

	pool := newWorkerPool(d.cfg.Run.Workers, func(job *classJob) *classResult {
		return d.process(job, opts)
	})
	if err := pool.Start(ctx); err != nil {
		return nil, err
	}

	collected := make(chan error, 1)
	go func() {
		collected <- collect(pool.Results(), func(result *classResult) error {
			return d.emit(out, result, report)
		})
	}()

	submitErr := d.split(src, report, pool.Submit)
	poolErr := pool.Shutdown()
	emitErr := <-collected
	closeErr := out.Close()
	report.Stats = pool.Stats()

	for _, err := range []error{emitErr, closeErr, submitErr, poolErr} {
		if err != nil {
			return report, err
		}
	}
	return report, nil
}

// split tokenizes src and submits one job per class_end.
func (d *Driver) split(src *source.SourceFile, report *Report, submit func(*classJob) error) error {
	tok := lexer.NewTokenizer()
	tok.OnMalformed = func(err *errors.MalformedInstructionError) {
		err.Source = src
		glog.Warningf("%s:%d: %s", src.DisplayPath(), err.Line, err.Msg)
		report.Warnings = append(report.Warnings, err)
	}

	index := 0
	for i, raw := range src.Lines() {
		line := lexer.Sanitize(raw)
		if line == "" {
			continue
		}

		ins := tok.Tokenize(line, i+1)
		switch {
		case ins.Is(lexer.CLASS):
			tok.SetHead(ins)
		case ins.Is(lexer.CLASS_END):
			if tok.Head() == nil || !tok.Head().Is(lexer.CLASS) {
				glog.Warningf("%s:%d: class_end without class", src.DisplayPath(), ins.Line)
				tok.Reset()
				continue
			}
			listing := lexer.NewClassListing(tok.Head())
			// next class starts a fresh sequence so workers never see it
			tok.Reset()

			job := &classJob{Index: index, Listing: listing, Ignored: d.cfg.IsIgnored(listing.Name)}
			index++
			debugPrintf("[Driver] submit %d %s (%d instructions)\n", job.Index, listing.Name, listing.Len())
			if err := submit(job); err != nil {
				return err
			}
		}
	}
	return nil
}

// process decompiles one job. A panic in the lifter fails only this class.
func (d *Driver) process(job *classJob, opts Options) (result *classResult) {
	start := time.Now()
	result = &classResult{Index: job.Index, Name: job.Listing.Name, Ignored: job.Ignored}
	if head := job.Listing.Head(); head != nil {
		result.Line = head.Line
	}
	if job.Ignored {
		return result
	}

	defer func() {
		if r := recover(); r != nil {
			result.Class, result.Code = nil, ""
			result.Err = &errors.MalformedInstructionError{
				Position: errors.Position{Line: result.Line, Class: result.Name},
				Msg:      fmt.Sprintf("lifter panic: %v", r),
			}
		}
		result.Duration = time.Since(start)
	}()

	result.Class, result.Code, result.Err = DecompileClass(d.resolver, job.Listing, opts)
	return result
}

// emit writes one result in listing order and feeds the regression store.
func (d *Driver) emit(out io.Writer, result *classResult, report *Report) error {
	entry := ClassReport{
		Name:     result.Name,
		Line:     result.Line,
		Err:      result.Err,
		Duration: result.Duration,
	}

	var code string
	switch {
	case result.Ignored:
		entry.Status = StatusIgnored
		glog.Warningf("skipping ignored class %s", result.Name)
	case result.Err != nil:
		entry.Status = StatusFailed
		glog.Errorf("decompile %s: %v", result.Name, result.Err)
	default:
		entry.Status = StatusOK
		code = result.Code
		glog.Infof("decompiled %s in %s", result.Name, result.Duration)
	}

	if d.Regression != nil {
		status, err := d.check(result, code)
		if err != nil {
			return err
		}
		entry.Regression = status
	}
	report.Classes = append(report.Classes, entry)

	if entry.Status != StatusOK {
		return nil
	}
	_, err := io.WriteString(out, code)
	return err
}

func (d *Driver) check(result *classResult, code string) (regression.Status, error) {
	if result.Ignored || result.Err != nil {
		if err := d.Regression.Skip(); err != nil {
			return "", err
		}
		if result.Err != nil && d.Regression.Mode() == regression.ModeTest {
			return regression.StatusFailed, nil
		}
		return regression.StatusSkipped, nil
	}
	return d.Regression.Record(code)
}

// Classes splits src into class listings without decompiling them.
func Classes(src *source.SourceFile) []*lexer.ClassListing {
	tok := lexer.NewTokenizer()
	for i, raw := range src.Lines() {
		if line := lexer.Sanitize(raw); line != "" {
			tok.Tokenize(line, i+1)
		}
	}
	return lexer.SplitClasses(tok.Head())
}

// FindClass returns the listing of the named class.
func FindClass(src *source.SourceFile, name string) (*lexer.ClassListing, error) {
	for _, listing := range Classes(src) {
		if listing.Name == name {
			return listing, nil
		}
	}
	return nil, fmt.Errorf("class %q not found in %s", name, src.DisplayPath())
}

// ReadListing loads a listing file, decoding UTF-16LE when it carries a BOM.
// The path "-" reads standard input.
func ReadListing(path string) (*source.SourceFile, error) {
	if path == "-" {
		return readListing(os.Stdin, source.NewStdinSource)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readListing(f, func(text string) *source.SourceFile {
		return source.FromFile(path, text)
	})
}

func readListing(r io.Reader, wrap func(string) *source.SourceFile) (*source.SourceFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text, err := symbols.DecodeText(data)
	if err != nil {
		return nil, err
	}
	return wrap(text), nil
}
