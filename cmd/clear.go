package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all persons and embeddings",
	Long: `Remove every person and every stored embedding and reset the
active-person session. This cannot be undone.`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
}

func confirmAction(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	response, _ := reader.ReadString('\n')
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func runClear(cmd *cobra.Command, args []string) error {
	skipConfirm := mustGetBool(cmd, "yes")

	cfg := config.Load()
	ctx := context.Background()

	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	summaries, err := svc.Persons(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("Database is already empty.")
		return nil
	}

	if !skipConfirm && !confirmAction(fmt.Sprintf("Remove all %d person(s)? [y/N]: ", len(summaries))) {
		fmt.Println("Cancelled.")
		return nil
	}

	if err := svc.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("Database cleared")
	return nil
}
