package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	contentCmd := &cobra.Command{Use: "content-types", Short: "Content type operations"}

	registerCmd := &cobra.Command{
		Use:   "register NAME KIND",
		Short: "Register a content type (kind: post or taxonomy)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"name": args[0], "kind": args[1]}
			data, err := doPostJSON("/api/content-types", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	contentCmd.AddCommand(registerCmd)

	var kind string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered content types",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/content-types"
			if kind != "" {
				path = fmt.Sprintf("%s?kind=%s", path, kind)
			}
			data, err := doGet(path)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&kind, "kind", "k", "", "Filter by kind (post, taxonomy)")
	contentCmd.AddCommand(listCmd)

	rootCmd.AddCommand(contentCmd)
}
