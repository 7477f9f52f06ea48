package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tileverse/rangereader/backend/register"
	"github.com/tileverse/rangereader/provider"
)

func newReadCmd() *cobra.Command {
	var (
		offset       int64
		length       int64
		providerID   string
		blockAligned bool
		blockSize    int
		memCache     bool
	)

	cmd := &cobra.Command{
		Use:   "read <uri>",
		Short: "Read one range from a URI and write it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := provider.NewRegistry()
			register.All(reg)
			factory := provider.NewFactory(reg)

			cfg := provider.Config{
				URI:        args[0],
				ProviderID: providerID,
				Values: map[string]any{
					provider.ParamMemoryCacheEnabled:      memCache,
					provider.ParamMemoryCacheBlockAligned: blockAligned,
					provider.ParamMemoryCacheBlockSize:    blockSize,
				},
			}

			ctx := context.Background()
			r, err := factory.Create(ctx, cfg)
			if err != nil {
				return fmt.Errorf("creating reader: %w", err)
			}
			defer r.Close()

			buf, err := r.ReadRange(ctx, offset, length)
			if err != nil {
				return fmt.Errorf("reading range %d+%d: %w", offset, length, err)
			}
			_, err = cmd.OutOrStdout().Write(buf.Bytes())
			return err
		},
	}

	cmd.Flags().Int64Var(&offset, "offset", 0, "byte offset to read from")
	cmd.Flags().Int64Var(&length, "length", 0, "number of bytes to read")
	cmd.Flags().StringVar(&providerID, "provider", "", "force a specific provider ID instead of auto-selecting")
	cmd.Flags().BoolVar(&memCache, "memory-cache", false, "wrap the reader with an in-memory cache")
	cmd.Flags().BoolVar(&blockAligned, "block-aligned", false, "enable block-aligned caching (requires --block-size)")
	cmd.Flags().IntVar(&blockSize, "block-size", 0, "block size in bytes for block-aligned caching")

	return cmd
}
