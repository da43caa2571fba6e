package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/embedder"
	"github.com/kozaktomas/face-sentry/internal/identity"
	"github.com/kozaktomas/face-sentry/internal/store"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var registerCmd = &cobra.Command{
	Use:   "register <name> <image>...",
	Short: "Enroll a person from one or more face images",
	Long: `Enroll a person from face images. Each image must contain exactly one
face; its embedding is added to the person's bank, ranked by the
detector's quality score.

Registering under a name that already exists reinforces the existing
person. An image that closely resembles a different known person is
refused to prevent accidental duplicate identities.

Example:
  face-sentry register "Jan Novak" photos/jan-*.jpg`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().Int("parallel", 4, "Number of images to embed in parallel")
}

// embedImages runs the embedding server over all images in parallel and
// returns one observation per image, skipping images where detection fails.
func embedImages(ctx context.Context, emb *embedder.Client, paths []string, maxImageSize, parallel int) ([]identity.Observation, error) {
	bar := progressbar.Default(int64(len(paths)), "embedding")

	var mu sync.Mutex
	var obs []identity.Observation
	var skipped []string

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)

	for _, path := range paths {
		g.Go(func() error {
			defer bar.Add(1)

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			data, err = embedder.Downscale(data, maxImageSize)
			if err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}

			face, err := emb.DetectSingleFace(ctx, data)
			if err != nil {
				mu.Lock()
				skipped = append(skipped, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil
			}

			mu.Lock()
			obs = append(obs, identity.Observation{Vector: face.Embedding, Quality: face.Quality()})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, s := range skipped {
		fmt.Printf("Skipped %s\n", s)
	}
	return obs, nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	name := args[0]
	paths := args[1:]
	parallel := mustGetInt(cmd, "parallel")

	cfg := config.Load()
	ctx := context.Background()

	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	emb := embedder.NewClient(cfg.Embedder.URL)

	obs, err := embedImages(ctx, emb, paths, cfg.Embedder.MaxImageSize, parallel)
	if err != nil {
		return err
	}
	if len(obs) == 0 {
		return errors.New("no usable face found in the given images")
	}

	person, outcomes, err := svc.Register(ctx, name, obs)
	if err != nil {
		var dup *identity.DuplicateIdentityError
		if errors.As(err, &dup) {
			return fmt.Errorf("refused: face matches existing person %d (%q) with similarity %.3f; "+
				"use that name to reinforce, or remove the person first", dup.PersonID, dup.Name, dup.Similarity)
		}
		return err
	}

	inserted := 0
	for _, o := range outcomes {
		if o.Status != store.Rejected {
			inserted++
		}
	}
	fmt.Printf("Done! Person %d (%q): %d of %d embeddings accepted\n",
		person.ID, person.Name, inserted, len(outcomes))
	return nil
}
