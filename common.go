package torchext

import "context"

// runCommonBuild runs plan, configure, build and find in order and stops at
// the first failing step. The returned result always names the extension;
// Success is set only when every step succeeded. A PlanFunc error means no
// subprocess was started.
func runCommonBuild(ctx context.Context, config *BuildConfig, ext Extension, steps CommonBuildSteps) (*BuildResult, error) {
	result := &BuildResult{
		Extension: ext.Name,
		Success:   false,
		Output:    []string{},
	}

	// Step 1: Resolve everything before touching the filesystem
	plan, err := steps.PlanFunc(ctx, config, ext)
	if err != nil {
		result.Error = err
		return result, err
	}

	// Step 2: Configure/prepare the build
	if err := steps.ConfigureFunc(ctx, config, plan, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 3: Build/compile the extension
	if err := steps.BuildFunc(ctx, config, plan, result); err != nil {
		result.Error = err
		return result, err
	}

	// Step 4: Find the built extension files
	extensions, err := steps.FindFunc(plan)
	if err != nil {
		result.Error = err
		return result, err
	}

	result.Extensions = extensions
	result.Success = true
	return result, nil
}
