package main

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/edustack/doubtsolver/internal/answer"
	"github.com/edustack/doubtsolver/internal/vector"
)

var (
	askOwner      string
	askFrameID    string
	askTopK       int
	askSubject    string
	askDifficulty string
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with retrieval-grounded generation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if askOwner == "" {
			return eris.New("--owner is required")
		}
		question := strings.Join(args, " ")

		filter, err := vector.NewFilter(askSubject, askDifficulty)
		if err != nil {
			return eris.New("--subject and --difficulty cannot be combined")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		doubt, err := env.Answerer.Answer(cmd.Context(), answer.Request{
			OwnerID:  askOwner,
			Question: question,
			FrameID:  askFrameID,
			TopK:     askTopK,
			Filter:   filter,
		})
		if err != nil {
			return err
		}

		if doubt.Explanation != "" {
			fmt.Println(doubt.Explanation)
			fmt.Println()
		}
		for i, step := range doubt.Steps {
			fmt.Printf("%d. %s\n", i+1, step)
		}
		if len(doubt.Steps) > 0 {
			fmt.Println()
		}
		fmt.Printf("Answer: %s\n", doubt.FinalAnswer)
		fmt.Printf("Confidence: %.2f\n", doubt.Confidence)
		if doubt.MermaidCode != "" {
			fmt.Printf("\nDiagram:\n%s\n", doubt.MermaidCode)
		}
		fmt.Printf("\nRecord: %s (%dms)\n", doubt.ID, doubt.DurationMS)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askOwner, "owner", "", "owner user id (required)")
	askCmd.Flags().StringVar(&askFrameID, "frame", "", "seed the question with a processed frame's text")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "retrieved context size (default from config)")
	askCmd.Flags().StringVar(&askSubject, "subject", "", "restrict retrieved context to a subject")
	askCmd.Flags().StringVar(&askDifficulty, "difficulty", "", "restrict retrieved context to a difficulty level")
	rootCmd.AddCommand(askCmd)
}
