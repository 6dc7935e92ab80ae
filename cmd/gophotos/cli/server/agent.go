package server

import (
	"context"
	"fmt"

	"github.com/mwantia/gophotos/internal/agent"
	"github.com/spf13/cobra"

	config "github.com/mwantia/gophotos/internal/config/server"
)

func NewAgentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Start the GoPhotos agent",
		Long:  `Start the GoPhotos agent: scheduled mirror sync, push notifications and the local API.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServerConfig()
			if err != nil {
				return fmt.Errorf("failed to load server configuration: %w", err)
			}

			return agent.NewAgent(cfg).Serve(context.Background())
		},
	}

	return cmd
}
