// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Stellven/KBSkills/internal/secrets"
	"github.com/Stellven/KBSkills/pkg/types"
)

const defaultConfigFile = "kbskills.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up directories, the API key and a config file",
	Long: `Init creates data_dir/graph, data_dir/index and skills_dir, stores the
LLM provider API key under the secrets directory, and writes the resolved
configuration (without API keys) to kbskills.yaml, or to --config when set.

Without --api-key, init prompts for the key when stdin is a terminal; an
empty answer skips storing it. An existing config file is kept unless
--force is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := initOptions{
			SecretsDir: rootFlag("secrets-dir"),
			ConfigPath: rootFlag("config"),
		}
		opts.APIKey, _ = cmd.Flags().GetString("api-key")
		opts.Force, _ = cmd.Flags().GetBool("force")

		if opts.APIKey == "" {
			key, err := promptAPIKey(cmd.ErrOrStderr(), cfg.LLM.Provider)
			if err != nil {
				return err
			}
			opts.APIKey = key
		}
		return runInit(cmd.OutOrStdout(), cfg, opts)
	},
}

func init() {
	initCmd.Flags().String("api-key", "", "API key of the configured LLM provider")
	initCmd.Flags().Bool("force", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

type initOptions struct {
	APIKey     string
	SecretsDir string

	// ConfigPath defaults to kbskills.yaml in the working directory.
	ConfigPath string
	Force      bool
}

func rootFlag(name string) string {
	v, _ := rootCmd.PersistentFlags().GetString(name)
	return v
}

func runInit(w io.Writer, c types.Config, opts initOptions) error {
	dirs := []string{
		filepath.Join(c.DataDir, "graph"),
		filepath.Join(c.DataDir, "index"),
		filepath.Dir(c.Retrieval.IndexPath),
		c.SkillsDir,
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", d)
		}
	}

	if opts.APIKey != "" {
		path, err := secrets.Save(opts.SecretsDir, secrets.KeyForProvider(c.LLM.Provider), opts.APIKey)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "API key saved to %s\n", path)
	}

	path := opts.ConfigPath
	if path == "" {
		path = defaultConfigFile
	}
	if err := writeConfigFile(c, path, opts.Force); err != nil {
		return err
	}

	fmt.Fprintf(w, "Configuration saved to %s\n", path)
	fmt.Fprintf(w, "Data directory: %s\n", c.DataDir)
	fmt.Fprintf(w, "Skills directory: %s\n", c.SkillsDir)
	return nil
}

// writeConfigFile writes c as YAML. API keys are left out; they belong in
// the secrets directory.
func writeConfigFile(c types.Config, path string, force bool) error {
	c.LLM.APIKey = ""
	c.Embedding.APIKey = ""
	c.Retrieval.APIKey = ""

	v := viper.New()
	setDefaults(v, c)
	v.Set("llm.retry_delay", c.LLM.RetryDelay.String())
	v.Set("retrieval.timeout", c.Retrieval.Timeout.String())

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", path)
	}
	if force {
		return errors.Wrapf(v.WriteConfigAs(path), "writing %s", path)
	}

	err := v.SafeWriteConfigAs(path)
	var exists viper.ConfigFileAlreadyExistsError
	if errors.As(err, &exists) {
		return errors.Errorf("config file %s already exists, use --force to overwrite", path)
	}
	return errors.Wrapf(err, "writing %s", path)
}

// promptAPIKey reads a key without echo when stdin is a terminal.
func promptAPIKey(w io.Writer, provider string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}
	fmt.Fprintf(w, "%s API key (empty to skip): ", provider)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", errors.Wrap(err, "reading API key")
	}
	return strings.TrimSpace(string(b)), nil
}
