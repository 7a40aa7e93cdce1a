package common

import (
	"context"
	"fmt"

	"tailorcv/internal/errors"
)

// CreateInputFunc defines how to create the specific AI input from file contents.
type CreateInputFunc[Input any] func(contents []string) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// AIOperationFunc is any AI operation taking a context.
type AIOperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// Runner holds what file-based AI commands share.
type Runner struct {
	Logger *errors.Logger
	Files  *FileProcessor
	Output *OutputHandler
}

// RunAICommand reads the files, builds the input, runs the operation and
// writes its formatted result.
func RunAICommand[Input, Output any](
	ctx context.Context,
	r Runner,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	aiOperation AIOperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) (Output, error) {
	var zero Output
	contents, err := r.Files.ValidateAndReadFiles(args...)
	if err != nil {
		return zero, err
	}

	input, err := createInput(contents)
	if err != nil {
		return zero, fmt.Errorf("failed to create input from file contents: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := aiOperation(ctx, input)
	if err != nil {
		return zero, err
	}

	return result, r.Output.HandleOutput(result, cmdConfig)
}
