package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kwlee0220/mdt-workflow-argo/internal/compiler"
	"github.com/kwlee0220/mdt-workflow-argo/internal/config"
	"github.com/kwlee0220/mdt-workflow-argo/internal/model"
)

func (c *CLI) newScriptCmd() *cobra.Command {
	var endpoint, image string

	cmd := &cobra.Command{
		Use:   "script <model-file>",
		Short: "Print the Argo workflow document for a model file",
		Long: "Compile a task-graph model read from a JSON or YAML file into an Argo\n" +
			"Workflow document and print it as YAML. Nothing is submitted.",
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			tgm, err := model.ParseFile(args[0])
			if err != nil {
				return err
			}
			wf, err := compiler.Compile(tgm, endpoint, image)
			if err != nil {
				return err
			}
			out, err := compiler.RenderYAML(wf)
			if err != nil {
				return err
			}
			if _, err := c.out.Write(out); err != nil {
				return fmt.Errorf("write script: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&endpoint, "mdt-endpoint", config.DefaultMDTEndpoint,
		"MDT instance manager endpoint passed to the workflow")
	cmd.Flags().StringVar(&image, "client-image", config.DefaultClientImage,
		"Container image of the MDT task runner")
	return cmd
}
