// Package build turns scenario sources into the scripts uploaded to the platform.
//
// JavaScript sources are taken verbatim. TypeScript sources are passed to an
// external compiler command which must print the compiled script to stdout.
// Every compiled script is also written to the dist directory so that the
// exact uploaded bytes can be inspected.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/roach88/callscript/internal/model"
)

// Builder compiles named scenarios.
type Builder interface {
	Compile(ctx context.Context, names []string) ([]model.Scenario, error)
}

// Error reports a scenario that could not be built.
type Error struct {
	Scenario string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("build %s: %s: %v", e.Scenario, e.Message, e.Err)
	}
	return fmt.Sprintf("build %s: %s", e.Scenario, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// sourceExts lists the recognised source extensions in lookup order.
var sourceExts = []string{".ts", ".js"}

// FileBuilder compiles scenarios from SourceDir into DistDir.
type FileBuilder struct {
	SourceDir string
	DistDir   string

	// TypeScriptCommand is the compiler argv; the source path is appended.
	TypeScriptCommand []string

	Logger *slog.Logger
}

var _ Builder = (*FileBuilder)(nil)

// Compile builds the named scenarios in order and stops at the first failure.
func (b *FileBuilder) Compile(ctx context.Context, names []string) ([]model.Scenario, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]model.Scenario, 0, len(names))
	for _, name := range names {
		src, err := b.findSource(name)
		if err != nil {
			return nil, err
		}

		var script []byte
		switch filepath.Ext(src) {
		case ".ts":
			script, err = b.compileTypeScript(ctx, name, src)
		default:
			script, err = os.ReadFile(src)
			if err != nil {
				err = &Error{Scenario: name, Message: "read source", Err: err}
			}
		}
		if err != nil {
			return nil, err
		}

		if b.DistDir != "" {
			if err := writeDist(b.DistDir, name, script); err != nil {
				return nil, &Error{Scenario: name, Message: "write output", Err: err}
			}
		}
		logger.Debug("scenario built", "scenario", name, "source", src, "bytes", len(script))
		out = append(out, model.Scenario{Name: name, Script: script})
	}
	return out, nil
}

func (b *FileBuilder) findSource(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", &Error{Scenario: name, Message: "invalid scenario name"}
	}
	for _, ext := range sourceExts {
		path := filepath.Join(b.SourceDir, name+ext)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", &Error{Scenario: name, Message: "stat source", Err: err}
		}
	}
	return "", &Error{Scenario: name, Message: fmt.Sprintf("no source found in %s", b.SourceDir)}
}

func (b *FileBuilder) compileTypeScript(ctx context.Context, name, src string) ([]byte, error) {
	if len(b.TypeScriptCommand) == 0 {
		return nil, &Error{Scenario: name, Message: "no typescript_command configured"}
	}
	argv := append(append([]string(nil), b.TypeScriptCommand[1:]...), src)
	cmd := exec.CommandContext(ctx, b.TypeScriptCommand[0], argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = "compiler failed"
		}
		return nil, &Error{Scenario: name, Message: msg, Err: err}
	}
	return stdout.Bytes(), nil
}

func writeDist(dir, name string, script []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".js"), script, 0o644)
}
