package config

// applyOperationDefaults applies global defaults to operation-specific configuration
func (c *Config) applyOperationDefaults(opCfg *OperationAIConfig) {
	if opCfg.Provider == "" {
		opCfg.Provider = c.AI.Provider
	}
	if opCfg.Model == "" {
		opCfg.Model = c.AI.Model
	}
	if opCfg.Timeout == nil {
		timeout := c.AI.Timeout
		opCfg.Timeout = &timeout
	}
	if opCfg.APIKey == "" {
		opCfg.APIKey = c.AI.APIKey
	}
	if opCfg.MaxRetries == nil {
		retries := c.AI.MaxRetries
		opCfg.MaxRetries = &retries
	}
	if opCfg.Temperature == nil {
		temperature := c.AI.Temperature
		opCfg.Temperature = &temperature
	}
	if opCfg.UseSystemPrompts == nil {
		use := c.AI.UseSystemPrompts
		opCfg.UseSystemPrompts = &use
	}
	if opCfg.Prompt.System == "" && opCfg.Prompt.SystemFile == "" {
		opCfg.Prompt.System = c.AI.Prompt.System
		opCfg.Prompt.SystemFile = c.AI.Prompt.SystemFile
	}
}

// rawOperation returns the operation section exactly as configured.
func (c *Config) rawOperation(operation string) OperationAIConfig {
	switch operation {
	case OperationScore:
		return c.AI.Score
	case OperationSuggest:
		return c.AI.Suggest
	case OperationRationale:
		return c.AI.Rationale
	case OperationChat:
		return c.AI.Chat
	case OperationFeedback:
		return c.AI.Feedback
	case OperationRevise:
		return c.AI.Revise
	default:
		return OperationAIConfig{}
	}
}

// GetOperationConfig returns the AI configuration for an operation with every
// unset field filled from the global ai.* values. Unknown names yield the
// global configuration.
func (c *Config) GetOperationConfig(operation string) OperationAIConfig {
	opCfg := c.rawOperation(operation)
	c.applyOperationDefaults(&opCfg)
	return opCfg
}

// PromptFor returns the instruction and system prompt overrides for an
// operation. Empty strings mean the built-in text is used.
func (c *Config) PromptFor(operation string) (instructions, system string) {
	opCfg := c.GetOperationConfig(operation)
	loaded := c.loadedPrompts[operation]
	instructions = resolvePrompt(loaded.Instructions, opCfg.Prompt.Instructions)
	system = resolvePrompt(loaded.System, opCfg.Prompt.System)
	return instructions, system
}

// resolvePrompt picks file content over inline configuration.
func resolvePrompt(loadedFromFile, fromConfig string) string {
	if loadedFromFile != "" {
		return loadedFromFile
	}
	return fromConfig
}
