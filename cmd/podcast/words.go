package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-podcast/internal/podcast"
	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

func newWordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "words MINUTES",
		Short: "Print the target word count for a length in minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes := podcast.ResolveMinutes(protocol.ParseMinutes(args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "%s minutes -> %d words\n",
				strconv.FormatFloat(minutes, 'f', -1, 64), podcast.TargetWords(minutes))
			return nil
		},
	}
}
