package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/keyfleet/internal/fleet"
)

// instancesFile is the on-disk shape of the fleet membership list.
type instancesFile struct {
	Instances []fleet.Descriptor `yaml:"instances"`
}

// LoadInstances reads the ordered worker descriptor list. Order matters:
// it fixes each worker's partition ordinal for the run.
func LoadInstances(path string) ([]fleet.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read instances file: %w", err)
	}

	var f instancesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instances file: %w", err)
	}
	if len(f.Instances) == 0 {
		return nil, fmt.Errorf("instances file %s lists no workers", path)
	}

	seen := make(map[string]bool, len(f.Instances))
	for i, d := range f.Instances {
		if d.Name == "" {
			return nil, fmt.Errorf("instance %d has no name", i)
		}
		if d.Project == "" {
			return nil, fmt.Errorf("instance %q has no project", d.Name)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("duplicate instance name %q", d.Name)
		}
		seen[d.Name] = true
		if f.Instances[i].Zone == "" {
			f.Instances[i].Zone = "us-central1-a"
		}
		if f.Instances[i].User == "" {
			f.Instances[i].User = "cloudshell"
		}
	}
	return f.Instances, nil
}

// Init creates example configuration and instances files.
func Init(configPath, instancesPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Keyspace: KeyspaceConfig{Start: DefaultKeyspaceStart, End: DefaultKeyspaceEnd},
		Solver: SolverConfig{
			BinaryName: DefaultBinaryName,
			PuzzleFile: DefaultPuzzleFile,
			Mode:       DefaultMode,
		},
		Fleet:  FleetConfig{InstancesFile: instancesPath},
		Server: ServerConfig{Enabled: true, Addr: DefaultServerAddr},
		Notify: map[string]string{
			"telegram_bot_token": "${TELEGRAM_BOT_TOKEN}",
			"telegram_chat_id":   "${TELEGRAM_CHAT_ID}",
		},
	}
	example.applyDefaults()

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	if _, err := os.Stat(instancesPath); err == nil && !force {
		return nil
	}
	instances := instancesFile{Instances: []fleet.Descriptor{
		{Name: "puzzle-solver-1", Project: "my-project-1", Zone: "us-central1-a", User: "cloudshell"},
		{Name: "puzzle-solver-2", Project: "my-project-2", Zone: "europe-west1-b", User: "cloudshell"},
	}}
	data, err = yaml.Marshal(&instances)
	if err != nil {
		return fmt.Errorf("failed to marshal instances: %w", err)
	}
	if err := os.WriteFile(instancesPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write instances file: %w", err)
	}
	return nil
}
