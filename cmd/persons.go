package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kozaktomas/face-sentry/internal/config"
	"github.com/spf13/cobra"
)

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "Manage enrolled persons",
}

var personsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled persons with their bank sizes",
	RunE:  runPersonsList,
}

var personsRenameCmd = &cobra.Command{
	Use:   "rename <id> <new-name>",
	Short: "Rename a person",
	Args:  cobra.ExactArgs(2),
	RunE:  runPersonsRename,
}

var personsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a person and its embedding bank",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonsRemove,
}

func init() {
	rootCmd.AddCommand(personsCmd)
	personsCmd.AddCommand(personsListCmd)
	personsCmd.AddCommand(personsRenameCmd)
	personsCmd.AddCommand(personsRemoveCmd)
}

func parsePersonID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid person id %q", raw)
	}
	return id, nil
}

func runPersonsList(cmd *cobra.Command, args []string) error {
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
		fmt.Println("No persons enrolled.")
		return nil
	}

	total := 0
	for _, s := range summaries {
		fmt.Printf("%4d  %-30s %3d embeddings  (since %s)\n",
			s.Person.ID, s.Person.Name, s.BankSize, s.Person.CreatedAt.Format("2006-01-02"))
		total += s.BankSize
	}
	fmt.Printf("\n%d person(s), %d embedding(s) total\n", len(summaries), total)
	return nil
}

func runPersonsRename(cmd *cobra.Command, args []string) error {
	id, err := parsePersonID(args[0])
	if err != nil {
		return err
	}
	name := args[1]

	cfg := config.Load()
	ctx := context.Background()

	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.RenamePerson(ctx, id, name); err != nil {
		return err
	}
	fmt.Printf("Renamed person %d to %q\n", id, name)
	return nil
}

func runPersonsRemove(cmd *cobra.Command, args []string) error {
	id, err := parsePersonID(args[0])
	if err != nil {
		return err
	}

	cfg := config.Load()
	ctx := context.Background()

	svc, st, err := openService(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := svc.RemovePerson(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Removed person %d\n", id)
	return nil
}
