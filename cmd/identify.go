package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/kozaktomas/face-sentry/internal/embedder"
	"github.com/spf13/cobra"
)

var identifyCmd = &cobra.Command{
	Use:   "identify <image>",
	Short: "Identify the faces in an image",
	Long: `Identify every face in an image against the enrolled persons.
This is a one-shot matcher verdict, independent of the temporal
consensus used for the live active-person state.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
}

func runIdentify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading image: %w", err)
	}
	data, err = embedder.Downscale(data, cfg.Embedder.MaxImageSize)
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	emb := embedder.NewClient(cfg.Embedder.URL)
	resp, err := emb.DetectFaces(ctx, data)
	if err != nil {
		return fmt.Errorf("embedding server: %w", err)
	}
	if resp.FacesCount == 0 {
		fmt.Println("No faces detected.")
		return nil
	}

	for _, face := range resp.Faces {
		match, err := svc.Identify(face.Embedding)
		if err != nil {
			return err
		}
		if match == nil {
			fmt.Printf("Face %d: unknown (confidence %.2f)\n",
				face.FaceIndex, svc.DisplayConfidence(match))
			continue
		}
		marker := ""
		if match.HighConfidence {
			marker = " [high confidence]"
		}
		fmt.Printf("Face %d: %s (person %d, similarity %.3f, %d embeddings)%s\n",
			face.FaceIndex, match.Name, match.PersonID, match.Similarity, match.BankSize, marker)
	}
	return nil
}
