package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/chunker"
	"github.com/edustack/doubtsolver/internal/model"
	"github.com/edustack/doubtsolver/internal/vector"
)

var (
	indexSubject    string
	indexTopic      string
	indexDifficulty string
	indexChunkSize  int
	indexOverlap    int
)

var indexCmd = &cobra.Command{
	Use:   "index [files...]",
	Short: "Chunk, embed, and index reference material for retrieval",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ch := chunker.New(indexChunkSize, indexOverlap)
		total := 0

		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return eris.Wrapf(err, "index: read %s", path)
			}

			chunks := ch.Split(string(data), model.ChunkMetadata{
				Subject:    indexSubject,
				Topic:      indexTopic,
				Difficulty: indexDifficulty,
				Source:     filepath.Base(path),
			})
			if len(chunks) == 0 {
				zap.L().Warn("no chunks produced", zap.String("file", path))
				continue
			}

			points := make([]vector.Point, 0, len(chunks))
			for _, c := range chunks {
				vec, err := env.Embedder.Embed(ctx, c.Text)
				if err != nil {
					return eris.Wrapf(err, "index: embed %s chunk %d", path, c.Metadata.Index)
				}
				points = append(points, vector.Point{ID: c.ID, Vector: vec, Payload: c})
			}

			if err := env.Index.Upsert(ctx, points); err != nil {
				return eris.Wrapf(err, "index: upsert %s", path)
			}

			total += len(points)
			zap.L().Info("indexed file",
				zap.String("file", path),
				zap.Int("chunks", len(points)),
			)
		}

		count, err := env.Index.Count(ctx)
		if err != nil {
			zap.L().Warn("index count failed", zap.Error(err))
			count = -1
		}
		fmt.Printf("indexed %d chunks from %d files (index total: %d)\n", total, len(args), count)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexSubject, "subject", "", "subject tag for the indexed material")
	indexCmd.Flags().StringVar(&indexTopic, "topic", "", "topic tag for the indexed material")
	indexCmd.Flags().StringVar(&indexDifficulty, "difficulty", "", "difficulty tag for the indexed material")
	indexCmd.Flags().IntVar(&indexChunkSize, "chunk-size", 0, "chunk size in characters (0 for default)")
	indexCmd.Flags().IntVar(&indexOverlap, "overlap", -1, "chunk overlap in characters (-1 for default)")
	rootCmd.AddCommand(indexCmd)
}
