package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/edustack/doubtsolver/internal/ingest"
	"github.com/edustack/doubtsolver/internal/model"
)

var (
	ingestOwner       string
	ingestKind        string
	ingestConcurrency int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [files...]",
	Short: "Upload and process question images or PDF documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if ingestOwner == "" {
			return eris.New("--owner is required")
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		g, gctx := errgroup.WithContext(cmd.Context())
		g.SetLimit(ingestConcurrency)

		var succeeded, failed atomic.Int64

		for _, path := range args {
			g.Go(func() error {
				log := zap.L().With(zap.String("file", path))

				data, err := os.ReadFile(path)
				if err != nil {
					failed.Add(1)
					log.Error("read failed", zap.Error(err))
					return nil
				}

				frame, err := env.Ingester.Ingest(gctx, ingest.Request{
					OwnerID:  ingestOwner,
					Kind:     kindForFile(path),
					Data:     data,
					Filename: filepath.Base(path),
				})
				if err != nil {
					failed.Add(1)
					log.Error("ingest failed", zap.Error(err))
					return nil
				}

				succeeded.Add(1)
				log.Info("ingested",
					zap.String("frame_id", frame.ID),
					zap.String("status", string(frame.Status)),
					zap.Strings("tags", frame.Tags),
				)
				fmt.Printf("%s\t%s\t%s\n", path, frame.ID, frame.Status)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "ingest batch")
		}

		zap.L().Info("ingest complete",
			zap.Int64("succeeded", succeeded.Load()),
			zap.Int64("failed", failed.Load()),
		)
		if failed.Load() > 0 {
			return eris.Errorf("%d of %d files failed", failed.Load(), succeeded.Load()+failed.Load())
		}
		return nil
	},
}

// kindForFile maps a file extension onto a frame kind. An explicit
// --kind flag wins.
func kindForFile(path string) model.FrameKind {
	if ingestKind != "" {
		return model.FrameKind(ingestKind)
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return model.FrameKindDocument
	}
	return model.FrameKindImage
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "owner user id (required)")
	ingestCmd.Flags().StringVar(&ingestKind, "kind", "", "frame kind override (image, document)")
	ingestCmd.Flags().IntVar(&ingestConcurrency, "concurrency", 4, "parallel uploads")
	rootCmd.AddCommand(ingestCmd)
}
