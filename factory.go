package torchext

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BuilderFactory selects a Builder per extension and runs batches.
//
//	factory := torchext.NewBuilderFactory()
//	results, err := factory.BuildAllExtensions(ctx, config, extensions)
//
// Registration is not synchronized; register custom builders before the
// factory is shared.
type BuilderFactory struct {
	builders []Builder
}

// NewBuilderFactory creates a factory with the CMake builder registered.
func NewBuilderFactory() *BuilderFactory {
	factory := &BuilderFactory{}
	factory.Register(&CmakeBuilder{})
	return factory
}

// Register adds a new builder to the factory.
//
// Builders are checked in the order they are registered.
// Not thread-safe. Register all builders before concurrent use.
func (f *BuilderFactory) Register(builder Builder) {
	f.builders = append(f.builders, builder)
}

// BuilderFor returns the first builder whose CanBuild accepts ext.SourceDir.
func (f *BuilderFactory) BuilderFor(ext Extension) (Builder, error) {
	for _, builder := range f.builders {
		if builder.CanBuild(ext.SourceDir) {
			return builder, nil
		}
	}

	return nil, fmt.Errorf("no builder found for extension %s in %s", ext.Name, ext.SourceDir)
}

// ListBuilders returns a copy of all registered builders.
func (f *BuilderFactory) ListBuilders() []Builder {
	return append([]Builder{}, f.builders...)
}

// BuildAllExtensions builds extensions one after another, in order.
//
// A preflight first runs CheckTools for every selected builder; a missing
// cmake fails the batch with a single result whose error names every
// extension. Afterwards each extension gets its own result. A canceled
// context stops the batch, and so does a failure when
// config.StopOnFailure is set. The first error is returned alongside the
// results collected so far.
func (f *BuilderFactory) BuildAllExtensions(ctx context.Context, config *BuildConfig, extensions []Extension) ([]*BuildResult, error) {
	if len(extensions) == 0 {
		return nil, nil
	}

	if err := f.preflight(extensions); err != nil {
		return []*BuildResult{{
			Error:               err,
			MissingDependencies: missingDependencies(err),
		}}, err
	}

	logger := config.logger()
	start := time.Now()

	var (
		results  []*BuildResult
		firstErr error
		failed   int
	)
	record := func(result *BuildResult) {
		results = append(results, result)
		if result.Success {
			return
		}
		failed++
		if firstErr == nil {
			firstErr = result.Error
		}
	}

	for _, ext := range extensions {
		if err := ctx.Err(); err != nil {
			record(&BuildResult{Extension: ext.Name, Error: err})
			break
		}

		record(f.buildOne(ctx, config, ext))

		if failed > 0 && config.StopOnFailure {
			break
		}
	}

	logger.Info("Extension batch finished",
		zap.Int("built", len(results)-failed),
		zap.Int("failed", failed),
		zap.Int("skipped", len(extensions)-len(results)),
		zap.Duration("duration", time.Since(start)))

	return results, firstErr
}

// buildOne always returns a result with Error set when Success is false.
func (f *BuilderFactory) buildOne(ctx context.Context, config *BuildConfig, ext Extension) *BuildResult {
	builder, err := f.BuilderFor(ext)
	if err != nil {
		return &BuildResult{Extension: ext.Name, Error: err}
	}

	config.logger().Info("Building extension",
		zap.String("extension", ext.Name),
		zap.String("builder", builder.Name()),
		zap.String("source_dir", ext.SourceDir))

	result, err := builder.Build(ctx, config, ext)
	if result == nil {
		result = &BuildResult{Extension: ext.Name}
	}
	if err != nil {
		result.Success = false
		if result.Error == nil {
			result.Error = err
		}
	}
	if !result.Success && result.Error == nil {
		result.Error = fmt.Errorf("%s build of %s reported failure", builder.Name(), ext.Name)
	}
	return result
}

// preflight runs CheckTools once per selected builder, so a missing tool is
// reported against every extension that needs it rather than only the first.
func (f *BuilderFactory) preflight(extensions []Extension) error {
	type batch struct {
		checker ToolChecker
		exts    []Extension
	}

	var batches []*batch
	byBuilder := make(map[Builder]*batch)
	for _, ext := range extensions {
		builder, err := f.BuilderFor(ext)
		if err != nil {
			continue
		}
		checker, ok := builder.(ToolChecker)
		if !ok {
			continue
		}
		b, seen := byBuilder[builder]
		if !seen {
			b = &batch{checker: checker}
			byBuilder[builder] = b
			batches = append(batches, b)
		}
		b.exts = append(b.exts, ext)
	}

	for _, b := range batches {
		err := b.checker.CheckTools()
		if err == nil {
			continue
		}
		if errors.Is(err, ErrCMakeNotFound) {
			return cmakeMissing(b.exts)
		}

		var missing *MissingToolsError
		if errors.As(err, &missing) {
			return &DependencyError{
				Name:   strings.Join(missing.Names(), ", "),
				Detail: fmt.Sprintf("%v, needed by: %s", err, extensionNames(b.exts)),
				Err:    err,
			}
		}
		return err
	}
	return nil
}
