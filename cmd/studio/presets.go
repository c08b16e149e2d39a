package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/content-studio/internal/types"
)

func newPresetsCmd(a *app) *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List content types and sample prompts",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			presets := types.Presets()
			if contentType != "" {
				ct, err := types.ParseContentType(contentType)
				if err != nil {
					return err
				}
				presets = map[types.ContentType]types.ContentPreset{ct: presets[ct]}
			}
			a.printer.PrintPresets(presets)
			return nil
		},
	}
	cmd.Flags().StringVarP(&contentType, "type", "t", "", "Only show one content type")
	return cmd
}
