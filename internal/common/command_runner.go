package common

import (
	"context"
	"fmt"

	"artyats/internal/errors"
	"artyats/internal/extract"
)

// CreateInputFunc builds the operation input from the extracted document texts.
type CreateInputFunc[Input any] func(texts []string) (Input, error)

// LogDetailsFunc defines how to log the start of an operation.
type LogDetailsFunc[Input any] func(input Input, cfg CommandConfig)

// OperationFunc runs one orchestrator operation.
type OperationFunc[Input, Output any] func(context.Context, Input) (Output, error)

// RunDocumentCommand extracts the argument documents, runs op on the input
// built from them and writes the formatted result.
func RunDocumentCommand[Input, Output any](
	ctx context.Context,
	logger *errors.Logger,
	extractor *extract.Extractor,
	cmdConfig CommandConfig,
	args []string,
	createInput CreateInputFunc[Input],
	op OperationFunc[Input, Output],
	logDetails LogDetailsFunc[Input],
) error {
	fileProcessor := NewFileProcessor(extractor, logger)
	outputHandler := NewOutputHandler(logger)

	// Fail on a bad output path before spending a model call.
	if err := fileProcessor.ValidateOutputFile(cmdConfig.OutputFile); err != nil {
		return err
	}

	texts, err := fileProcessor.ReadDocuments(ctx, args...)
	if err != nil {
		return err
	}

	input, err := createInput(texts)
	if err != nil {
		return fmt.Errorf("failed to create input from documents: %w", err)
	}

	if logDetails != nil {
		logDetails(input, cmdConfig)
	}

	result, err := op(ctx, input)
	if err != nil {
		return err
	}

	return outputHandler.HandleOutput(result, cmdConfig)
}
