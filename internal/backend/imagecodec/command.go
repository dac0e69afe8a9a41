package imagecodec

import (
	"fmt"
	"image"
	"sort"
)

// Command transforms a decoded image before it is JPEG-encoded.
type Command interface {
	Name() string
	Execute(img image.Image) (image.Image, error)
}

// CommandFactory builds a command from its YAML parameters.
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig is one entry of the pre-encode pipeline in the configuration file.
type CommandConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

// CommandRegistry manages the registration and creation of image commands
type CommandRegistry struct {
	factories map[string]CommandFactory
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		factories: make(map[string]CommandFactory),
	}
}

// Register adds a command factory to the registry
func (r *CommandRegistry) Register(name string, factory CommandFactory) error {
	if name == "" {
		return fmt.Errorf("command name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("command factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("command %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a command by name with the given parameters
func (r *CommandRegistry) Create(name string, params map[string]any) (Command, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown command: %s", name)
	}

	command, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create command %s: %w", name, err)
	}

	return command, nil
}

// IsRegistered checks if a command with the given name is registered
func (r *CommandRegistry) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// RegisteredNames returns all registered command names, sorted
func (r *CommandRegistry) RegisteredNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildPipeline creates the configured commands in order.
func (r *CommandRegistry) BuildPipeline(configs []CommandConfig) ([]Command, error) {
	pipeline := make([]Command, 0, len(configs))
	for i, cfg := range configs {
		command, err := r.Create(cfg.Name, cfg.Params)
		if err != nil {
			return nil, fmt.Errorf("pipeline step %d: %w", i, err)
		}
		pipeline = append(pipeline, command)
	}
	return pipeline, nil
}

// DefaultRegistry is a global registry instance with the built-in commands pre-registered
var DefaultRegistry = NewCommandRegistry()
